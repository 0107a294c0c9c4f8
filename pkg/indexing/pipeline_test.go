package indexing

import (
	"context"
	"testing"

	"github.com/cuemby/strata/pkg/index"
	"github.com/cuemby/strata/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestApplyIndexesWordsAndFacets(t *testing.T) {
	idx, err := index.Open(t.TempDir(), "movies")
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.PutSettings(types.Settings{
		FilterableAttributes: types.NewSet([]string{"year"}),
	}))

	p := New(idx, Config{Workers: 2})

	indexed, deleted, err := p.Apply(context.Background(), []DocumentChange{
		{Kind: ChangeInsertOrUpdate, ExternalID: "tt0111161", Document: types.Document{
			"title": "The Shawshank Redemption",
			"year":  1994.0,
		}},
		{Kind: ChangeInsertOrUpdate, ExternalID: "tt0068646", Document: types.Document{
			"title": "The Godfather",
			"year":  1972.0,
		}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, indexed)
	require.Equal(t, 0, deleted)

	bm, err := idx.WordDocids("shawshank")
	require.NoError(t, err)
	require.Equal(t, uint64(1), bm.GetCardinality())

	fieldID, err := idx.FieldID("year")
	require.NoError(t, err)
	range1994, err := idx.FacetNumberRangeDocids(fieldID, 1990, 1995)
	require.NoError(t, err)
	require.Equal(t, uint64(1), range1994.GetCardinality())

	wordsFST, err := idx.WordsFSTBytes()
	require.NoError(t, err)
	require.NotEmpty(t, wordsFST)
}

func TestApplyDeletionRemovesDocument(t *testing.T) {
	idx, err := index.Open(t.TempDir(), "movies")
	require.NoError(t, err)
	defer idx.Close()

	p := New(idx, Config{Workers: 1})

	_, _, err = p.Apply(context.Background(), []DocumentChange{
		{Kind: ChangeInsertOrUpdate, ExternalID: "tt0111161", Document: types.Document{"title": "Shawshank"}},
	})
	require.NoError(t, err)

	docID, found, err := idx.ExternalDocID("tt0111161")
	require.NoError(t, err)
	require.True(t, found)

	indexed, deleted, err := p.Apply(context.Background(), []DocumentChange{
		{Kind: ChangeDeletion, ExternalID: "tt0111161"},
	})
	require.NoError(t, err)
	require.Equal(t, 0, indexed)
	require.Equal(t, 1, deleted)

	_, found, err = idx.GetDocument(docID)
	require.NoError(t, err)
	require.False(t, found)

	bm, err := idx.WordDocids("shawshank")
	require.NoError(t, err)
	require.Equal(t, uint64(0), bm.GetCardinality())
}

func TestApplyUpdateCleansUpStalePostings(t *testing.T) {
	idx, err := index.Open(t.TempDir(), "movies")
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.PutSettings(types.Settings{
		FilterableAttributes: types.NewSet([]string{"genre"}),
	}))

	p := New(idx, Config{Workers: 1})

	_, _, err = p.Apply(context.Background(), []DocumentChange{
		{Kind: ChangeInsertOrUpdate, ExternalID: "tt0111161", Document: types.Document{
			"title": "Alpha", "genre": "drama",
		}},
	})
	require.NoError(t, err)

	_, _, err = p.Apply(context.Background(), []DocumentChange{
		{Kind: ChangeInsertOrUpdate, ExternalID: "tt0111161", Document: types.Document{
			"title": "Beta", "genre": "comedy",
		}},
	})
	require.NoError(t, err)

	alphaBM, err := idx.WordDocids("alpha")
	require.NoError(t, err)
	require.Equal(t, uint64(0), alphaBM.GetCardinality())

	betaBM, err := idx.WordDocids("beta")
	require.NoError(t, err)
	require.Equal(t, uint64(1), betaBM.GetCardinality())

	fieldID, err := idx.FieldID("genre")
	require.NoError(t, err)
	dramaBM, err := idx.FacetStringDocids(fieldID, "drama")
	require.NoError(t, err)
	require.Equal(t, uint64(0), dramaBM.GetCardinality())

	comedyBM, err := idx.FacetStringDocids(fieldID, "comedy")
	require.NoError(t, err)
	require.Equal(t, uint64(1), comedyBM.GetCardinality())
}

func TestFieldSetEditorAssignsField(t *testing.T) {
	editor := FieldSetEditor{Field: "status", Value: "archived"}
	edited, ok, err := editor.Edit(types.Document{"title": "Shawshank"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "archived", edited["status"])
	require.Equal(t, "Shawshank", edited["title"])
}
