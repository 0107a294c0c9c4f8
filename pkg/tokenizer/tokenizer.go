// Package tokenizer splits document text into the word sequence the
// indexing pipeline extracts postings from, using Unicode word-boundary
// segmentation instead of a naive whitespace split so CJK text and
// punctuation-adjacent words tokenize the way the rest of the pack's
// search engines do it.
package tokenizer

import (
	"strings"
	"unicode"

	"github.com/blevesearch/segment"
)

// Token is one word position within a field's text, 0-indexed, used to
// compute the proximity between two words for word_pair_proximity_docids.
type Token struct {
	Word     string
	Position int
}

// Tokenize splits text into its lowercased word tokens, skipping
// punctuation and whitespace segments. Position counts only word segments,
// matching the proximity windowing the indexing pipeline performs over
// MAX_DISTANCE positions.
func Tokenize(text string) []Token {
	segmenter := segment.NewWordSegmenterDirect([]byte(text))
	var tokens []Token
	pos := 0
	for segmenter.Segment() {
		switch segmenter.Type() {
		case segment.Letter, segment.Number, segment.Kana, segment.Ideo:
		default:
			continue
		}
		word := strings.ToLower(string(segmenter.Bytes()))
		if word == "" {
			continue
		}
		tokens = append(tokens, Token{Word: word, Position: pos})
		pos++
	}
	return tokens
}

// Prefixes returns every non-empty prefix of word up to maxLen runes,
// feeding word_prefix_docids construction.
func Prefixes(word string, maxLen int) []string {
	runes := []rune(word)
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}
	out := make([]string, 0, len(runes))
	for i := 1; i <= len(runes); i++ {
		out = append(out, string(runes[:i]))
	}
	return out
}

// IsWordRune reports whether r should be considered part of a word by
// callers doing their own lightweight scanning (the filter grammar's
// identifier lexer, for instance).
func IsWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
