/*
Package indexing implements the per-batch document indexing pipeline:
parallel per-document extraction (tokenization, facet-value collection,
proximity windowing up to index.MaxDistance), a single-threaded merge into
batch-wide del/add posting sets, a write pass into pkg/index, and a
words_fst/prefix_fst rebuild when the vocabulary changed.

The worker-pool/channel/WaitGroup shape is grounded on the bounded-memory
bulk indexers found elsewhere in the retrieved pack, adapted to emit
roaring-bitmap del/add records instead of in-memory posting maps.

Editor (editor.go) is the opaque collaborator behind the documentEdition
task kind.
*/
package indexing
