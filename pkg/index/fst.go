package index

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/blevesearch/vellum"
)

// words_fst and prefix_fst are rebuilt wholesale from the current vocabulary
// whenever a batch touches the word set, the same streaming-rebuild
// strategy as the posting lists: vellum builders require keys in sorted
// order, so the fast path is always "collect distinct words, sort, build".

// BuildWordsFST constructs an FST over words (already deduplicated, any
// order) and returns its serialized bytes for storage under the
// "words_fst" meta key.
func BuildWordsFST(words []string) ([]byte, error) {
	sorted := append([]string(nil), words...)
	sort.Strings(sorted)

	var buf bytes.Buffer
	builder, err := vellum.New(&buf, nil)
	if err != nil {
		return nil, fmt.Errorf("index: new fst builder: %w", err)
	}
	var last string
	for i, w := range sorted {
		if i > 0 && w == last {
			continue // vellum requires strictly increasing keys
		}
		if err := builder.Insert([]byte(w), uint64(i)); err != nil {
			return nil, fmt.Errorf("index: fst insert %q: %w", w, err)
		}
		last = w
	}
	if err := builder.Close(); err != nil {
		return nil, fmt.Errorf("index: close fst builder: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildPrefixFST is the same construction applied to the set of distinct
// prefixes (of a fixed length, per the data model's prefix-search support).
func BuildPrefixFST(prefixes []string) ([]byte, error) {
	return BuildWordsFST(prefixes)
}

// LoadFST deserializes previously built FST bytes.
func LoadFST(data []byte) (*vellum.FST, error) {
	if len(data) == 0 {
		return nil, nil
	}
	return vellum.Load(data)
}

// Contains reports whether word is present in the FST.
func Contains(fst *vellum.FST, word string) (bool, error) {
	if fst == nil {
		return false, nil
	}
	_, found, err := fst.Get([]byte(word))
	return found, err
}

// PrefixMatches returns every key in the FST with the given prefix, used to
// expand a prefix search into its member words when the caller needs the
// actual matches rather than the merged word_prefix_docids posting list.
func PrefixMatches(fst *vellum.FST, prefix string) ([]string, error) {
	if fst == nil {
		return nil, nil
	}
	end := prefixUpperBound(prefix)
	it, err := fst.Iterator([]byte(prefix), end)
	if errors.Is(err, vellum.ErrIteratorDone) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for {
		k, _ := it.Current()
		out = append(out, string(k))
		if err := it.Next(); err != nil {
			if errors.Is(err, vellum.ErrIteratorDone) {
				break
			}
			return nil, err
		}
	}
	return out, nil
}

// prefixUpperBound returns the smallest byte string that is not itself
// prefixed by prefix, i.e. the exclusive end key for a prefix range scan.
// A prefix of all 0xFF bytes has no finite upper bound; nil (open-ended)
// is returned in that case.
func prefixUpperBound(prefix string) []byte {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] != 0xFF {
			out := make([]byte, i+1)
			copy(out, b[:i+1])
			out[i]++
			return out
		}
	}
	return nil
}
