/*
Package vector implements the similarity-search collaborators: an Embedder
interface (text to embedding vector) and a Store backed by
github.com/coder/hnsw's approximate nearest-neighbor graph, the same
Embedder/VectorStore split used for semantic indexing elsewhere in the
retrieved pack, adapted from per-chunk code search to per-document
similarity search.

StaticEmbedder is the bundled dependency-free Embedder; a production
deployment would implement Embedder against a real model server instead.
*/
package vector
