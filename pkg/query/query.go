// Package query implements the search, facet search, and similarity
// operations over a single index: enough of the collaborator interface the
// data model names to make the documented end-to-end scenarios pass,
// without the full multi-rule ranking cascade (explicitly out of scope).
package query

import (
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cuemby/strata/pkg/filter"
	"github.com/cuemby/strata/pkg/index"
	"github.com/cuemby/strata/pkg/tokenizer"
	"github.com/cuemby/strata/pkg/types"
	"github.com/cuemby/strata/pkg/vector"
)

// Request is a search request against one index.
type Request struct {
	Query  string
	Filter string // optional filter expression, per pkg/filter's grammar
	Limit  int
	Offset int
}

// Hit is one scored, ranked search result.
type Hit struct {
	Document types.Document
	Score    float64
}

// Result is the outcome of a Search call.
type Result struct {
	Hits             []Hit
	EstimatedTotal   int
	ProcessingTimeMs int64
}

// Executor runs query operations against a single open index.
type Executor struct {
	idx *index.Index
}

// New creates an Executor over idx.
func New(idx *index.Index) *Executor {
	return &Executor{idx: idx}
}

// Search executes a full-text query optionally narrowed by a filter
// expression, ranking by one score: the word-match-count plus the summed
// inverse proximity between matched word pairs - a reduced stand-in for the
// full ranking-rule cascade.
func (e *Executor) Search(req Request) (*Result, error) {
	candidates, err := e.candidateDocids(req)
	if err != nil {
		return nil, err
	}

	scores := e.score(req.Query, candidates)

	ordered := make([]scoredDoc, 0, len(scores))
	for docID, score := range scores {
		ordered = append(ordered, scoredDoc{docID: docID, score: score})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].score != ordered[j].score {
			return ordered[i].score > ordered[j].score
		}
		return ordered[i].docID < ordered[j].docID
	})

	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := req.Offset
	total := len(ordered)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	hits := make([]Hit, 0, end-offset)
	for _, sd := range ordered[offset:end] {
		doc, found, err := e.idx.GetDocument(sd.docID)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		hits = append(hits, Hit{Document: doc, Score: sd.score})
	}

	return &Result{Hits: hits, EstimatedTotal: total}, nil
}

type scoredDoc struct {
	docID types.DocID
	score float64
}

func (e *Executor) candidateDocids(req Request) (*roaring.Bitmap, error) {
	var base *roaring.Bitmap
	var err error

	if req.Query == "" {
		base, err = e.idx.AllDocids()
	} else {
		base, err = e.matchDocids(req.Query)
	}
	if err != nil {
		return nil, err
	}

	if req.Filter == "" {
		return base, nil
	}

	expr, err := filter.Parse(req.Filter)
	if err != nil {
		return nil, &types.Error{Kind: types.ErrorKindInvalidFilter, Message: "invalid filter", Cause: err}
	}
	matched, err := filter.Eval(e.idx, expr)
	if err != nil {
		return nil, &types.Error{Kind: types.ErrorKindInvalidFilter, Message: "invalid filter", Cause: err}
	}
	base.And(matched)
	return base, nil
}

func (e *Executor) matchDocids(query string) (*roaring.Bitmap, error) {
	tokens := tokenizer.Tokenize(query)
	result := roaring.New()
	for i, tok := range tokens {
		bm, err := e.idx.WordDocids(tok.Word)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			result = bm
			continue
		}
		result.Or(bm)
	}
	return result, nil
}

func (e *Executor) score(query string, candidates *roaring.Bitmap) map[types.DocID]float64 {
	tokens := tokenizer.Tokenize(query)
	scores := make(map[types.DocID]float64)

	it := candidates.Iterator()
	for it.HasNext() {
		docID := types.DocID(it.Next())
		scores[docID] = 0
	}

	for _, tok := range tokens {
		bm, err := e.idx.WordDocids(tok.Word)
		if err != nil {
			continue
		}
		bIt := bm.Iterator()
		for bIt.HasNext() {
			docID := types.DocID(bIt.Next())
			if _, ok := scores[docID]; ok {
				scores[docID]++
			}
		}
	}

	for i := 0; i < len(tokens); i++ {
		for j := i + 1; j < len(tokens); j++ {
			for prox := uint8(1); prox <= index.MaxDistance; prox++ {
				bm, err := e.idx.WordPairProximityDocids(tokens[i].Word, tokens[j].Word, prox)
				if err != nil {
					continue
				}
				it := bm.Iterator()
				for it.HasNext() {
					docID := types.DocID(it.Next())
					if _, ok := scores[docID]; ok {
						scores[docID] += 1.0 / float64(prox)
					}
				}
			}
		}
	}

	return scores
}

// FacetValue is one distinct value of a facet and its hit count.
type FacetValue struct {
	Value string
	Count int
}

// FacetSearch returns the distinct values of a filterable/facetable string
// attribute along with how many documents carry each.
func (e *Executor) FacetSearch(field string) ([]FacetValue, error) {
	fieldID, ok, err := e.idx.FieldIDForFilter(field)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("query: field %q is not filterable", field)
	}
	values, err := e.idx.DistinctFacetStringValues(types.FieldID(fieldID))
	if err != nil {
		return nil, err
	}
	out := make([]FacetValue, 0, len(values))
	for _, v := range values {
		bm, err := e.idx.FacetStringDocids(types.FieldID(fieldID), v)
		if err != nil {
			return nil, err
		}
		out = append(out, FacetValue{Value: v, Count: int(bm.GetCardinality())})
	}
	return out, nil
}

// Similar returns the documents whose embeddings are nearest to id's
// embedding in store.
func (e *Executor) Similar(store *vector.Store, id string, limit int) (*Result, error) {
	if _, found, err := e.idx.ExternalDocID(id); err != nil {
		return nil, err
	} else if !found {
		return nil, fmt.Errorf("query: document %q not found", id)
	}

	queryVector, found := store.Vector(id)
	if !found {
		return nil, fmt.Errorf("query: no embedding stored for document %q", id)
	}

	neighbors, err := store.Search(queryVector, limit+1)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(neighbors))
	for _, nid := range neighbors {
		if nid == id {
			continue
		}
		neighborDocID, found, err := e.idx.ExternalDocID(nid)
		if err != nil || !found {
			continue
		}
		doc, found, err := e.idx.GetDocument(neighborDocID)
		if err != nil || !found {
			continue
		}
		hits = append(hits, Hit{Document: doc})
		if len(hits) >= limit {
			break
		}
	}
	return &Result{Hits: hits, EstimatedTotal: len(hits)}, nil
}
