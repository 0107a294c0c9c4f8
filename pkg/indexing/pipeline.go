// Package indexing implements the extract -> sort-merge -> write pipeline
// that turns a batch of document changes into the posting-list, facet, and
// FST mutations pkg/index stores, plus the documentEdition script-editing
// hook.
package indexing

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/cuemby/strata/pkg/bitmap"
	"github.com/cuemby/strata/pkg/index"
	"github.com/cuemby/strata/pkg/tokenizer"
	"github.com/cuemby/strata/pkg/types"

	"github.com/RoaringBitmap/roaring/v2"
)

// ChangeKind distinguishes the two document mutations a batch can carry.
type ChangeKind int

const (
	ChangeInsertOrUpdate ChangeKind = iota
	ChangeDeletion
)

// DocumentChange is one document mutation within a batch: either an
// insertion/update carrying the new document content, or a deletion naming
// only the external id. Document is the full final document content the
// caller wants stored - pkg/engine has already applied replaceDocuments/
// updateDocuments merge semantics before building this.
type DocumentChange struct {
	Kind       ChangeKind
	ExternalID string
	Document   types.Document // nil for ChangeDeletion
}

// Config controls the pipeline's concurrency.
type Config struct {
	Workers int
}

// postings is everything one document version (old or new) contributes to
// every sub-database the extraction stage populates.
type postings struct {
	words           map[string]struct{}
	prefixes        map[string]struct{}
	exactWords      map[string]struct{}
	proximities     map[proximityPair]struct{}
	wordPositions   map[wordPositionKey]struct{}
	wordFieldIDs    map[wordFieldKey]struct{}
	fieldWordCounts map[fieldWordCountKey]struct{}
	facetStrings    map[facetKey]struct{}
	facetNumbers    map[facetNumKey]struct{}
	facetExists     map[types.FieldID]struct{}
	facetIsNull     map[types.FieldID]struct{}
	facetIsEmpty    map[types.FieldID]struct{}
	forwardStrings  map[types.FieldID]string
	forwardNumbers  map[types.FieldID]float64
}

type proximityPair struct {
	w1, w2    string
	proximity uint8
}

type wordPositionKey struct {
	word     string
	position uint16
}

type wordFieldKey struct {
	word    string
	fieldID types.FieldID
}

type fieldWordCountKey struct {
	fieldID types.FieldID
	count   uint16
}

type facetKey struct {
	fieldID types.FieldID
	value   string
}

type facetNumKey struct {
	fieldID types.FieldID
	value   float64
}

func newPostings() *postings {
	return &postings{
		words:           make(map[string]struct{}),
		prefixes:        make(map[string]struct{}),
		exactWords:      make(map[string]struct{}),
		proximities:     make(map[proximityPair]struct{}),
		wordPositions:   make(map[wordPositionKey]struct{}),
		wordFieldIDs:    make(map[wordFieldKey]struct{}),
		fieldWordCounts: make(map[fieldWordCountKey]struct{}),
		facetStrings:    make(map[facetKey]struct{}),
		facetNumbers:    make(map[facetNumKey]struct{}),
		facetExists:     make(map[types.FieldID]struct{}),
		facetIsNull:     make(map[types.FieldID]struct{}),
		facetIsEmpty:    make(map[types.FieldID]struct{}),
		forwardStrings:  make(map[types.FieldID]string),
		forwardNumbers:  make(map[types.FieldID]float64),
	}
}

// extractPostings computes every posting doc contributes, field id interning
// included. It is run once for a document's new content and, when the
// document already existed, once more for its prior content, so the merge
// stage can tell exactly which keys need a docid removed versus added
// instead of assuming a batch-wide deletion bitmap covers every key.
func extractPostings(idx *index.Index, doc types.Document) (*postings, error) {
	out := newPostings()

	for fieldName, value := range doc {
		fieldID, err := idx.FieldID(fieldName)
		if err != nil {
			return nil, err
		}
		out.facetExists[fieldID] = struct{}{}

		if value == nil {
			out.facetIsNull[fieldID] = struct{}{}
			continue
		}

		switch v := value.(type) {
		case string:
			if v == "" {
				out.facetIsEmpty[fieldID] = struct{}{}
			}
			tokens := tokenizer.Tokenize(v)
			for _, tok := range tokens {
				out.words[tok.Word] = struct{}{}
				for _, pfx := range tokenizer.Prefixes(tok.Word, 4) {
					out.prefixes[pfx] = struct{}{}
				}
				if tok.Position >= 0 && tok.Position <= 0xFFFF {
					out.wordPositions[wordPositionKey{tok.Word, uint16(tok.Position)}] = struct{}{}
				}
				out.wordFieldIDs[wordFieldKey{tok.Word, fieldID}] = struct{}{}
			}
			for i := 0; i < len(tokens); i++ {
				for j := i + 1; j < len(tokens) && tokens[j].Position-tokens[i].Position <= index.MaxDistance; j++ {
					proximity := uint8(tokens[j].Position - tokens[i].Position)
					if proximity == 0 {
						continue
					}
					out.proximities[proximityPair{tokens[i].Word, tokens[j].Word, proximity}] = struct{}{}
				}
			}
			if len(tokens) > 0 {
				count := len(tokens)
				if count > 0xFFFF {
					count = 0xFFFF
				}
				out.fieldWordCounts[fieldWordCountKey{fieldID, uint16(count)}] = struct{}{}
			}
			if len(tokens) == 1 && tokens[0].Word == strings.ToLower(strings.TrimSpace(v)) {
				out.exactWords[tokens[0].Word] = struct{}{}
			}
			out.facetStrings[facetKey{fieldID, v}] = struct{}{}
			out.forwardStrings[fieldID] = v
		case float64:
			out.facetNumbers[facetNumKey{fieldID, v}] = struct{}{}
			out.forwardNumbers[fieldID] = v
		case []interface{}:
			if len(v) == 0 {
				out.facetIsEmpty[fieldID] = struct{}{}
			}
		case map[string]interface{}:
			if len(v) == 0 {
				out.facetIsEmpty[fieldID] = struct{}{}
			}
		}
	}

	return out, nil
}

// extraction is the per-document output of the extraction stage: what the
// document's new content (add) contributes and, if it already existed under
// this external id, what its prior content (del) had contributed -
// everything in del must be subtracted from its posting-list keys even if
// this batch happens to touch none of the same keys via add.
type extraction struct {
	docID   types.DocID
	add     *postings // nil for a pure deletion
	del     *postings // nil if the external id was new to this index
	deleted bool
}

// Pipeline applies a batch of document changes to one index.
type Pipeline struct {
	idx    *index.Index
	config Config
}

// New creates a pipeline over idx. A zero Workers value defaults to
// runtime.GOMAXPROCS(0), the same bounded-parallelism default the worker
// pools elsewhere in this codebase use.
func New(idx *index.Index, cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Pipeline{idx: idx, config: cfg}
}

// Apply runs the full pipeline over changes: parallel extraction, a single
// merge pass building the batch-wide per-key del/add sets, a single write
// pass into pkg/index, a forward-facet-table pass, and a words_fst/
// prefix_fst rebuild if the vocabulary changed.
func (p *Pipeline) Apply(ctx context.Context, changes []DocumentChange) (indexed int, deleted int, err error) {
	if len(changes) == 0 {
		return 0, 0, nil
	}

	extractions, err := p.extract(ctx, changes)
	if err != nil {
		return 0, 0, err
	}

	merged := merge(extractions)

	if err := p.write(merged); err != nil {
		return 0, 0, err
	}
	if err := p.writeForward(extractions); err != nil {
		return 0, 0, err
	}

	if merged.vocabularyChanged {
		if err := p.rebuildFSTs(); err != nil {
			return 0, 0, fmt.Errorf("indexing: rebuild fsts: %w", err)
		}
	}

	for _, e := range extractions {
		if e.deleted {
			deleted++
		} else {
			indexed++
		}
	}
	return indexed, deleted, nil
}

func (p *Pipeline) extract(ctx context.Context, changes []DocumentChange) ([]*extraction, error) {
	in := make(chan DocumentChange)
	out := make(chan *extraction, len(changes))
	errCh := make(chan error, p.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < p.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for change := range in {
				e, err := p.extractOne(change)
				if err != nil {
					select {
					case errCh <- err:
					default:
					}
					continue
				}
				out <- e
			}
		}()
	}

	go func() {
		defer close(in)
		for _, c := range changes {
			select {
			case in <- c:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	var results []*extraction
	for e := range out {
		results = append(results, e)
	}
	select {
	case err := <-errCh:
		return nil, err
	default:
	}
	return results, nil
}

func (p *Pipeline) extractOne(change DocumentChange) (*extraction, error) {
	docID, created, err := p.idx.AllocDocID(change.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("indexing: alloc docid for %q: %w", change.ExternalID, err)
	}

	e := &extraction{docID: docID}

	if !created {
		oldDoc, hadOld, err := p.idx.GetDocument(docID)
		if err != nil {
			return nil, fmt.Errorf("indexing: read prior document for %q: %w", change.ExternalID, err)
		}
		if hadOld {
			old, err := extractPostings(p.idx, oldDoc)
			if err != nil {
				return nil, err
			}
			e.del = old
		}
	}

	if change.Kind == ChangeDeletion {
		e.deleted = true
		return e, p.idx.DeleteDocument(docID)
	}

	if err := p.idx.PutDocument(docID, change.Document); err != nil {
		return nil, err
	}

	add, err := extractPostings(p.idx, change.Document)
	if err != nil {
		return nil, err
	}
	e.add = add

	return e, nil
}

// mergedBatch is the batch-wide accumulation of per-document extractions,
// grouped by posting-list key with separate del/add sides so a key that
// only ever appears in a deletion (never in an addition within the same
// batch) still gets its stale docid subtracted.
type mergedBatch struct {
	wordsAdd, wordsDel                     map[string]*roaring.Bitmap
	prefixesAdd, prefixesDel               map[string]*roaring.Bitmap
	exactWordsAdd, exactWordsDel           map[string]*roaring.Bitmap
	proximitiesAdd, proximitiesDel         map[proximityPair]*roaring.Bitmap
	wordPositionsAdd, wordPositionsDel     map[wordPositionKey]*roaring.Bitmap
	wordFieldIDsAdd, wordFieldIDsDel       map[wordFieldKey]*roaring.Bitmap
	fieldWordCountsAdd, fieldWordCountsDel map[fieldWordCountKey]*roaring.Bitmap
	facetStringsAdd, facetStringsDel       map[facetKey]*roaring.Bitmap
	facetNumbersAdd, facetNumbersDel       map[facetNumKey]*roaring.Bitmap
	facetExistsAdd, facetExistsDel         map[types.FieldID]*roaring.Bitmap
	facetIsNullAdd, facetIsNullDel         map[types.FieldID]*roaring.Bitmap
	facetIsEmptyAdd, facetIsEmptyDel       map[types.FieldID]*roaring.Bitmap
	vocabularyChanged                      bool
}

func addDoc[K comparable](set map[K]*roaring.Bitmap, key K, docID types.DocID) {
	bm, ok := set[key]
	if !ok {
		bm = roaring.New()
		set[key] = bm
	}
	bm.Add(uint32(docID))
}

func unionKeys[K comparable](a, b map[K]*roaring.Bitmap) []K {
	seen := make(map[K]struct{}, len(a)+len(b))
	keys := make([]K, 0, len(a)+len(b))
	for k := range a {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	for k := range b {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	return keys
}

func merge(extractions []*extraction) *mergedBatch {
	m := &mergedBatch{
		wordsAdd: map[string]*roaring.Bitmap{}, wordsDel: map[string]*roaring.Bitmap{},
		prefixesAdd: map[string]*roaring.Bitmap{}, prefixesDel: map[string]*roaring.Bitmap{},
		exactWordsAdd: map[string]*roaring.Bitmap{}, exactWordsDel: map[string]*roaring.Bitmap{},
		proximitiesAdd: map[proximityPair]*roaring.Bitmap{}, proximitiesDel: map[proximityPair]*roaring.Bitmap{},
		wordPositionsAdd: map[wordPositionKey]*roaring.Bitmap{}, wordPositionsDel: map[wordPositionKey]*roaring.Bitmap{},
		wordFieldIDsAdd: map[wordFieldKey]*roaring.Bitmap{}, wordFieldIDsDel: map[wordFieldKey]*roaring.Bitmap{},
		fieldWordCountsAdd: map[fieldWordCountKey]*roaring.Bitmap{}, fieldWordCountsDel: map[fieldWordCountKey]*roaring.Bitmap{},
		facetStringsAdd: map[facetKey]*roaring.Bitmap{}, facetStringsDel: map[facetKey]*roaring.Bitmap{},
		facetNumbersAdd: map[facetNumKey]*roaring.Bitmap{}, facetNumbersDel: map[facetNumKey]*roaring.Bitmap{},
		facetExistsAdd: map[types.FieldID]*roaring.Bitmap{}, facetExistsDel: map[types.FieldID]*roaring.Bitmap{},
		facetIsNullAdd: map[types.FieldID]*roaring.Bitmap{}, facetIsNullDel: map[types.FieldID]*roaring.Bitmap{},
		facetIsEmptyAdd: map[types.FieldID]*roaring.Bitmap{}, facetIsEmptyDel: map[types.FieldID]*roaring.Bitmap{},
	}

	apply := func(p *postings, docID types.DocID, add bool) {
		if p == nil {
			return
		}
		words, prefixes, exact := m.wordsAdd, m.prefixesAdd, m.exactWordsAdd
		prox, pos, wf, fwc := m.proximitiesAdd, m.wordPositionsAdd, m.wordFieldIDsAdd, m.fieldWordCountsAdd
		fs, fn := m.facetStringsAdd, m.facetNumbersAdd
		fe, fnull, fempty := m.facetExistsAdd, m.facetIsNullAdd, m.facetIsEmptyAdd
		if !add {
			words, prefixes, exact = m.wordsDel, m.prefixesDel, m.exactWordsDel
			prox, pos, wf, fwc = m.proximitiesDel, m.wordPositionsDel, m.wordFieldIDsDel, m.fieldWordCountsDel
			fs, fn = m.facetStringsDel, m.facetNumbersDel
			fe, fnull, fempty = m.facetExistsDel, m.facetIsNullDel, m.facetIsEmptyDel
		}
		if len(p.words) > 0 {
			m.vocabularyChanged = true
		}
		for w := range p.words {
			addDoc(words, w, docID)
		}
		for pfx := range p.prefixes {
			addDoc(prefixes, pfx, docID)
		}
		for w := range p.exactWords {
			addDoc(exact, w, docID)
		}
		for pair := range p.proximities {
			addDoc(prox, pair, docID)
		}
		for k := range p.wordPositions {
			addDoc(pos, k, docID)
		}
		for k := range p.wordFieldIDs {
			addDoc(wf, k, docID)
		}
		for k := range p.fieldWordCounts {
			addDoc(fwc, k, docID)
		}
		for k := range p.facetStrings {
			addDoc(fs, k, docID)
		}
		for k := range p.facetNumbers {
			addDoc(fn, k, docID)
		}
		for fieldID := range p.facetExists {
			addDoc(fe, fieldID, docID)
		}
		for fieldID := range p.facetIsNull {
			addDoc(fnull, fieldID, docID)
		}
		for fieldID := range p.facetIsEmpty {
			addDoc(fempty, fieldID, docID)
		}
	}

	for _, e := range extractions {
		apply(e.del, e.docID, false)
		apply(e.add, e.docID, true)
	}
	return m
}

func (p *Pipeline) write(m *mergedBatch) error {
	for _, w := range unionKeys(m.wordsAdd, m.wordsDel) {
		if err := p.idx.ApplyWordPosting(w, bitmap.DelAdd{Del: m.wordsDel[w], Add: m.wordsAdd[w]}); err != nil {
			return fmt.Errorf("indexing: write word posting %q: %w", w, err)
		}
	}
	for _, pfx := range unionKeys(m.prefixesAdd, m.prefixesDel) {
		if err := p.idx.ApplyWordPrefixPosting(pfx, bitmap.DelAdd{Del: m.prefixesDel[pfx], Add: m.prefixesAdd[pfx]}); err != nil {
			return fmt.Errorf("indexing: write prefix posting %q: %w", pfx, err)
		}
	}
	for _, w := range unionKeys(m.exactWordsAdd, m.exactWordsDel) {
		if err := p.idx.ApplyExactWordPosting(w, bitmap.DelAdd{Del: m.exactWordsDel[w], Add: m.exactWordsAdd[w]}); err != nil {
			return fmt.Errorf("indexing: write exact word posting %q: %w", w, err)
		}
	}
	for _, pair := range unionKeys(m.proximitiesAdd, m.proximitiesDel) {
		d := bitmap.DelAdd{Del: m.proximitiesDel[pair], Add: m.proximitiesAdd[pair]}
		if err := p.idx.ApplyWordPairProximityPosting(pair.w1, pair.w2, pair.proximity, d); err != nil {
			return fmt.Errorf("indexing: write proximity posting: %w", err)
		}
	}
	for _, k := range unionKeys(m.wordPositionsAdd, m.wordPositionsDel) {
		d := bitmap.DelAdd{Del: m.wordPositionsDel[k], Add: m.wordPositionsAdd[k]}
		if err := p.idx.ApplyWordPositionPosting(k.word, k.position, d); err != nil {
			return fmt.Errorf("indexing: write word position posting: %w", err)
		}
	}
	for _, k := range unionKeys(m.wordFieldIDsAdd, m.wordFieldIDsDel) {
		d := bitmap.DelAdd{Del: m.wordFieldIDsDel[k], Add: m.wordFieldIDsAdd[k]}
		if err := p.idx.ApplyWordFieldIDPosting(k.word, k.fieldID, d); err != nil {
			return fmt.Errorf("indexing: write word field-id posting: %w", err)
		}
	}
	for _, k := range unionKeys(m.fieldWordCountsAdd, m.fieldWordCountsDel) {
		d := bitmap.DelAdd{Del: m.fieldWordCountsDel[k], Add: m.fieldWordCountsAdd[k]}
		if err := p.idx.ApplyFieldWordCountPosting(k.fieldID, k.count, d); err != nil {
			return fmt.Errorf("indexing: write field word-count posting: %w", err)
		}
	}
	for _, k := range unionKeys(m.facetStringsAdd, m.facetStringsDel) {
		d := bitmap.DelAdd{Del: m.facetStringsDel[k], Add: m.facetStringsAdd[k]}
		if err := p.idx.ApplyFacetStringPosting(k.fieldID, k.value, d); err != nil {
			return fmt.Errorf("indexing: write facet string posting: %w", err)
		}
	}
	for _, k := range unionKeys(m.facetNumbersAdd, m.facetNumbersDel) {
		d := bitmap.DelAdd{Del: m.facetNumbersDel[k], Add: m.facetNumbersAdd[k]}
		if err := p.idx.ApplyFacetNumberPosting(k.fieldID, k.value, d); err != nil {
			return fmt.Errorf("indexing: write facet number posting: %w", err)
		}
	}
	for _, fieldID := range unionKeys(m.facetExistsAdd, m.facetExistsDel) {
		d := bitmap.DelAdd{Del: m.facetExistsDel[fieldID], Add: m.facetExistsAdd[fieldID]}
		if err := p.idx.ApplyFacetExistsPosting(fieldID, d); err != nil {
			return fmt.Errorf("indexing: write facet exists posting: %w", err)
		}
	}
	for _, fieldID := range unionKeys(m.facetIsNullAdd, m.facetIsNullDel) {
		d := bitmap.DelAdd{Del: m.facetIsNullDel[fieldID], Add: m.facetIsNullAdd[fieldID]}
		if err := p.idx.ApplyFacetIsNullPosting(fieldID, d); err != nil {
			return fmt.Errorf("indexing: write facet is-null posting: %w", err)
		}
	}
	for _, fieldID := range unionKeys(m.facetIsEmptyAdd, m.facetIsEmptyDel) {
		d := bitmap.DelAdd{Del: m.facetIsEmptyDel[fieldID], Add: m.facetIsEmptyAdd[fieldID]}
		if err := p.idx.ApplyFacetIsEmptyPosting(fieldID, d); err != nil {
			return fmt.Errorf("indexing: write facet is-empty posting: %w", err)
		}
	}
	return nil
}

// writeForward maintains field_id_docid_facet_f64s/_strings, the forward
// per-document facet tables SortAttribute reads: each extraction's del side
// is removed before its add side (if any) is written, so a field that
// changed type (string to number or vice versa) or disappeared entirely
// never leaves a stale forward entry behind.
func (p *Pipeline) writeForward(extractions []*extraction) error {
	for _, e := range extractions {
		if e.del != nil {
			for fieldID := range e.del.forwardStrings {
				if err := p.idx.DeleteDocFacetString(fieldID, e.docID); err != nil {
					return err
				}
			}
			for fieldID := range e.del.forwardNumbers {
				if err := p.idx.DeleteDocFacetNumber(fieldID, e.docID); err != nil {
					return err
				}
			}
		}
		if e.add != nil {
			for fieldID, v := range e.add.forwardStrings {
				if err := p.idx.PutDocFacetString(fieldID, e.docID, v); err != nil {
					return err
				}
			}
			for fieldID, v := range e.add.forwardNumbers {
				if err := p.idx.PutDocFacetNumber(fieldID, e.docID, v); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (p *Pipeline) rebuildFSTs() error {
	words, err := p.idx.AllWords()
	if err != nil {
		return err
	}
	wordsFST, err := index.BuildWordsFST(words)
	if err != nil {
		return err
	}
	if err := p.idx.PutWordsFSTBytes(wordsFST); err != nil {
		return err
	}

	prefixSet := make(map[string]struct{})
	for _, w := range words {
		for _, pfx := range tokenizer.Prefixes(w, 4) {
			prefixSet[pfx] = struct{}{}
		}
	}
	prefixes := make([]string, 0, len(prefixSet))
	for pfx := range prefixSet {
		prefixes = append(prefixes, pfx)
	}
	prefixFST, err := index.BuildPrefixFST(prefixes)
	if err != nil {
		return err
	}
	return p.idx.PutPrefixFSTBytes(prefixFST)
}
