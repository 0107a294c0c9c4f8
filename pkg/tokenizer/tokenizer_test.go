package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizeSkipsPunctuationAndLowercases(t *testing.T) {
	tokens := Tokenize("The Shawshank Redemption, 1994!")

	var words []string
	for _, tok := range tokens {
		words = append(words, tok.Word)
	}

	require.Equal(t, []string{"the", "shawshank", "redemption", "1994"}, words)
}

func TestTokenizePositionsAreSequential(t *testing.T) {
	tokens := Tokenize("one two three")
	require.Len(t, tokens, 3)
	for i, tok := range tokens {
		require.Equal(t, i, tok.Position)
	}
}

func TestPrefixes(t *testing.T) {
	require.Equal(t, []string{"s", "sh", "sha"}, Prefixes("shawshank", 3))
	require.Equal(t, []string{"r", "re"}, Prefixes("re", 5))
}
