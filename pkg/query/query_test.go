package query

import (
	"context"
	"testing"

	"github.com/cuemby/strata/pkg/index"
	"github.com/cuemby/strata/pkg/indexing"
	"github.com/cuemby/strata/pkg/types"
	"github.com/cuemby/strata/pkg/vector"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *index.Index {
	t.Helper()
	idx, err := index.Open(t.TempDir(), "movies")
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	require.NoError(t, idx.PutSettings(types.Settings{
		FilterableAttributes: types.NewSet([]string{"year"}),
	}))
	return idx
}

func seedMovies(t *testing.T, idx *index.Index) {
	t.Helper()
	p := indexing.New(idx, indexing.Config{Workers: 2})
	_, _, err := p.Apply(context.Background(), []indexing.DocumentChange{
		{Kind: indexing.ChangeInsertOrUpdate, ExternalID: "tt0111161", Document: types.Document{
			"title": "The Shawshank Redemption",
			"year":  1994.0,
		}},
		{Kind: indexing.ChangeInsertOrUpdate, ExternalID: "tt0068646", Document: types.Document{
			"title": "The Godfather",
			"year":  1972.0,
		}},
	})
	require.NoError(t, err)
}

func TestSearchMatchesByWord(t *testing.T) {
	idx := newTestIndex(t)
	seedMovies(t, idx)

	e := New(idx)
	result, err := e.Search(Request{Query: "shawshank"})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	require.Equal(t, "The Shawshank Redemption", result.Hits[0].Document["title"])
}

func TestSearchWithFilter(t *testing.T) {
	idx := newTestIndex(t)
	seedMovies(t, idx)

	e := New(idx)
	result, err := e.Search(Request{Query: "the", Filter: "year > 1990"})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	require.Equal(t, "The Shawshank Redemption", result.Hits[0].Document["title"])
}

func TestSearchEmptyQueryReturnsAll(t *testing.T) {
	idx := newTestIndex(t)
	seedMovies(t, idx)

	e := New(idx)
	result, err := e.Search(Request{})
	require.NoError(t, err)
	require.Len(t, result.Hits, 2)
}

func TestFacetSearchCountsDistinctValues(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.PutSettings(types.Settings{
		FilterableAttributes: types.NewSet([]string{"genre"}),
	}))

	e := New(idx)
	p := indexing.New(idx, indexing.Config{Workers: 1})
	_, _, applyErr := p.Apply(context.Background(), []indexing.DocumentChange{
		{Kind: indexing.ChangeInsertOrUpdate, ExternalID: "1", Document: types.Document{"genre": "drama"}},
		{Kind: indexing.ChangeInsertOrUpdate, ExternalID: "2", Document: types.Document{"genre": "drama"}},
		{Kind: indexing.ChangeInsertOrUpdate, ExternalID: "3", Document: types.Document{"genre": "crime"}},
	})
	require.NoError(t, applyErr)

	values, err := e.FacetSearch("genre")
	require.NoError(t, err)

	byValue := make(map[string]int)
	for _, v := range values {
		byValue[v.Value] = v.Count
	}
	require.Equal(t, 2, byValue["drama"])
	require.Equal(t, 1, byValue["crime"])
}

func TestSimilarReturnsNearestNeighbor(t *testing.T) {
	idx := newTestIndex(t)
	seedMovies(t, idx)

	store := vector.NewStore()
	embedder := vector.NewStaticEmbedder(16)
	vecs, err := embedder.EmbedBatch(context.Background(), []string{
		"The Shawshank Redemption", "The Godfather",
	})
	require.NoError(t, err)
	require.NoError(t, store.Add(context.Background(), []string{"tt0111161", "tt0068646"}, vecs))

	e := New(idx)
	result, err := e.Similar(store, "tt0111161", 1)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	require.Equal(t, "The Godfather", result.Hits[0].Document["title"])
}
