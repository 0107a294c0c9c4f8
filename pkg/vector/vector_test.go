package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticEmbedderIsDeterministic(t *testing.T) {
	e := NewStaticEmbedder(8)
	v1, err := e.EmbedBatch(context.Background(), []string{"hello world"})
	require.NoError(t, err)
	v2, err := e.EmbedBatch(context.Background(), []string{"hello world"})
	require.NoError(t, err)
	require.Equal(t, v1, v2)
	require.Len(t, v1[0], 8)
}

func TestStoreAddSearchDelete(t *testing.T) {
	e := NewStaticEmbedder(16)
	s := NewStore()

	vecs, err := e.EmbedBatch(context.Background(), []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.NoError(t, s.Add(context.Background(), []string{"a", "b", "c"}, vecs))
	require.Equal(t, 3, s.Count())

	results, err := s.Search(vecs[0], 1)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, results)

	require.NoError(t, s.Delete(context.Background(), []string{"a"}))
	require.Equal(t, 2, s.Count())
}
