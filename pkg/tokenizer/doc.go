/*
Package tokenizer turns document field text into the word sequence the
indexing pipeline extracts word_docids, word_prefix_docids, and
word_pair_proximity_docids postings from, using
github.com/blevesearch/segment's Unicode word-boundary segmenter.
*/
package tokenizer
