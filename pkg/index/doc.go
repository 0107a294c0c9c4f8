/*
Package index implements the per-index storage layer described by the data
model: one pkg/kv.Env per index directory with a bucket per sub-database
(documents, external_docids, fields, word_docids, exact_word_docids,
word_prefix_docids, word_pair_proximity_docids, word_position_docids,
word_field_id_docids, field_id_word_count_docids, facet_id_string_docids,
facet_id_f64_docids, facet_id_exists_docids, facet_id_is_null_docids,
facet_id_is_empty_docids, field_id_docid_facet_f64s,
field_id_docid_facet_strings, meta).

Word and facet postings are github.com/RoaringBitmap/roaring/v2 bitmaps
(pkg/bitmap), merged via del/add pairs so a single batch can both remove and
add a document's contribution to a posting list. words_fst and prefix_fst
are github.com/blevesearch/vellum automata rebuilt wholesale by pkg/indexing
whenever a batch changes the vocabulary (pkg/index/fst.go).

Facet postings are stored as a flat, sorted-key bucket instead of the
original facet-tree layout; see DESIGN.md for why a balanced tree brings no
benefit over bbolt's own cursor ordering at this scale.
*/
package index
