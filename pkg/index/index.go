// Package index implements the per-index storage layer: one pkg/kv.Env per
// index directory holding every sub-database named by the data model
// (word and facet postings, the documents store, the id maps, and the
// word/prefix FSTs).
package index

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cuemby/strata/pkg/bitmap"
	"github.com/cuemby/strata/pkg/kv"
	"github.com/cuemby/strata/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketDocuments       = []byte("documents")         // docid (BE4) -> json Document
	bucketExternalDocids  = []byte("external_docids")   // external id string -> docid (BE4)
	bucketFieldIDs        = []byte("fields")             // field name -> field id (BE2)
	bucketWordDocids      = []byte("word_docids")        // word -> roaring bitmap
	bucketExactWordDocids = []byte("exact_word_docids")  // word -> roaring bitmap (whole-field exact matches)
	bucketWordPrefixDocids = []byte("word_prefix_docids") // prefix -> roaring bitmap
	bucketWordPairProximity = []byte("word_pair_proximity_docids") // w1\x00w2\x00prox(1) -> roaring bitmap
	bucketWordPositionDocids = []byte("word_position_docids")   // word\x00position(BE2) -> roaring bitmap
	bucketWordFieldIDDocids  = []byte("word_field_id_docids")    // word\x00fieldID(BE2) -> roaring bitmap
	bucketFieldWordCountDocids = []byte("field_id_word_count_docids") // fieldID(BE2)+count(BE2) -> roaring bitmap
	bucketFacetStrings    = []byte("facet_id_string_docids") // fieldID(BE2)\x00value -> roaring bitmap
	bucketFacetNumbers    = []byte("facet_id_f64_docids")    // fieldID(BE2)+sortableF64(8) -> roaring bitmap
	bucketFacetExists     = []byte("facet_id_exists_docids")  // fieldID(BE2) -> roaring bitmap
	bucketFacetIsNull     = []byte("facet_id_is_null_docids") // fieldID(BE2) -> roaring bitmap
	bucketFacetIsEmpty    = []byte("facet_id_is_empty_docids") // fieldID(BE2) -> roaring bitmap
	bucketFacetDocFloats  = []byte("field_id_docid_facet_f64s")   // fieldID(BE2)+docID(BE4) -> float64 bits (BE8)
	bucketFacetDocStrings = []byte("field_id_docid_facet_strings") // fieldID(BE2)+docID(BE4) -> raw string bytes
	bucketMeta            = []byte("meta")               // small scalars: primary_key, next_docid, settings
)

var allBuckets = [][]byte{
	bucketDocuments, bucketExternalDocids, bucketFieldIDs,
	bucketWordDocids, bucketExactWordDocids, bucketWordPrefixDocids, bucketWordPairProximity,
	bucketWordPositionDocids, bucketWordFieldIDDocids, bucketFieldWordCountDocids,
	bucketFacetStrings, bucketFacetNumbers,
	bucketFacetExists, bucketFacetIsNull, bucketFacetIsEmpty,
	bucketFacetDocFloats, bucketFacetDocStrings,
	bucketMeta,
}

var (
	keyPrimaryKey = []byte("primary_key")
	keyNextDocID  = []byte("next_docid")
	keyNextField  = []byte("next_field_id")
	keySettings   = []byte("settings")
	keyWordsFST   = []byte("words_fst")
	keyPrefixFST  = []byte("prefix_fst")
)

// MaxDistance bounds the proximity window the indexing pipeline records
// between two words: word pairs further apart than this are not linked in
// word_pair_proximity_docids at all.
const MaxDistance = 8

// Index is one index's storage: a dedicated bbolt environment plus the
// small amount of in-process bookkeeping (primary key, field ids) that
// doesn't warrant its own transaction per access.
type Index struct {
	UID string
	env *kv.Env
}

// Open opens (creating if absent) the index database for uid under
// indexDir/uid/data.bolt.
func Open(indexDir, uid string) (*Index, error) {
	env, err := kv.Open(filepath.Join(indexDir, uid, "data.bolt"), allBuckets...)
	if err != nil {
		return nil, fmt.Errorf("index %s: open: %w", uid, err)
	}
	return &Index{UID: uid, env: env}, nil
}

// Close releases the index's database handle.
func (idx *Index) Close() error { return idx.env.Close() }

// Env exposes the underlying environment for pkg/snapshot's CopyToPath use.
func (idx *Index) Env() *kv.Env { return idx.env }

func be4(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func be2(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

// PrimaryKey returns the inferred or configured primary key field name, or
// "" if the index has no documents yet.
func (idx *Index) PrimaryKey() (string, error) {
	var pk string
	err := idx.env.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get(keyPrimaryKey)
		pk = string(v)
		return nil
	})
	return pk, err
}

// SetPrimaryKey records the primary key field name, replacing any name
// stored before (an indexUpdate task reassigns it this way).
func (idx *Index) SetPrimaryKey(name string) error {
	return idx.env.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keyPrimaryKey, []byte(name))
	})
}

// FieldID returns the interned id for name, assigning a new one if this is
// the first time the field has been seen.
func (idx *Index) FieldID(name string) (types.FieldID, error) {
	var id types.FieldID
	err := idx.env.Update(func(tx *bolt.Tx) error {
		fields := tx.Bucket(bucketFieldIDs)
		if v := fields.Get([]byte(name)); v != nil {
			id = types.FieldID(binary.BigEndian.Uint16(v))
			return nil
		}
		meta := tx.Bucket(bucketMeta)
		var next uint16
		if v := meta.Get(keyNextField); v != nil {
			next = binary.BigEndian.Uint16(v) + 1
		}
		if err := meta.Put(keyNextField, be2(next)); err != nil {
			return err
		}
		id = types.FieldID(next)
		return fields.Put([]byte(name), be2(next))
	})
	return id, err
}

// AllocDocID assigns a fresh, never-reused internal document id for
// externalID, or returns the existing one if externalID is already known.
func (idx *Index) AllocDocID(externalID string) (types.DocID, bool, error) {
	var id types.DocID
	var created bool
	err := idx.env.Update(func(tx *bolt.Tx) error {
		ext := tx.Bucket(bucketExternalDocids)
		if v := ext.Get([]byte(externalID)); v != nil {
			id = types.DocID(binary.BigEndian.Uint32(v))
			return nil
		}
		meta := tx.Bucket(bucketMeta)
		var next uint32
		if v := meta.Get(keyNextDocID); v != nil {
			next = binary.BigEndian.Uint32(v) + 1
		}
		if err := meta.Put(keyNextDocID, be4(next)); err != nil {
			return err
		}
		id = types.DocID(next)
		created = true
		return ext.Put([]byte(externalID), be4(next))
	})
	return id, created, err
}

// ExternalDocID looks up the internal docid previously assigned to
// externalID, if any.
func (idx *Index) ExternalDocID(externalID string) (types.DocID, bool, error) {
	var id types.DocID
	var found bool
	err := idx.env.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketExternalDocids).Get([]byte(externalID))
		if v == nil {
			return nil
		}
		found = true
		id = types.DocID(binary.BigEndian.Uint32(v))
		return nil
	})
	return id, found, err
}

// PutDocument stores or overwrites the document content at docID.
func (idx *Index) PutDocument(docID types.DocID, doc types.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("index %s: marshal document: %w", idx.UID, err)
	}
	return idx.env.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDocuments).Put(be4(uint32(docID)), data)
	})
}

// GetDocument fetches a document by internal id.
func (idx *Index) GetDocument(docID types.DocID) (types.Document, bool, error) {
	var doc types.Document
	var found bool
	err := idx.env.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketDocuments).Get(be4(uint32(docID)))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &doc)
	})
	return doc, found, err
}

// DeleteDocument removes a document's stored content. Posting-list cleanup
// is the indexing pipeline's responsibility (it knows which postings
// referenced the document).
func (idx *Index) DeleteDocument(docID types.DocID) error {
	return idx.env.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDocuments).Delete(be4(uint32(docID)))
	})
}

// NumberOfDocuments returns the document count, used by stats and metrics.
func (idx *Index) NumberOfDocuments() (int64, error) {
	var n int64
	err := idx.env.View(func(tx *bolt.Tx) error {
		n = int64(tx.Bucket(bucketDocuments).Stats().KeyN)
		return nil
	})
	return n, err
}

// SizeBytes returns the on-disk footprint of the index's database file.
func (idx *Index) SizeBytes() (int64, error) {
	return idx.env.Size()
}

// ApplyWordPosting merges a del/add pair into word_docids[word].
func (idx *Index) ApplyWordPosting(word string, d bitmap.DelAdd) error {
	return idx.applyPosting(bucketWordDocids, []byte(word), d)
}

// ApplyWordPrefixPosting merges a del/add pair into word_prefix_docids[prefix].
func (idx *Index) ApplyWordPrefixPosting(prefix string, d bitmap.DelAdd) error {
	return idx.applyPosting(bucketWordPrefixDocids, []byte(prefix), d)
}

// ApplyWordPairProximityPosting merges a del/add pair into
// word_pair_proximity_docids[w1,w2,proximity]. proximity must be in
// [1, MaxDistance].
func (idx *Index) ApplyWordPairProximityPosting(w1, w2 string, proximity uint8, d bitmap.DelAdd) error {
	return idx.applyPosting(bucketWordPairProximity, proximityKey(w1, w2, proximity), d)
}

// ApplyExactWordPosting merges a del/add pair into exact_word_docids[word],
// the subset of word_docids where the whole field value is exactly word.
func (idx *Index) ApplyExactWordPosting(word string, d bitmap.DelAdd) error {
	return idx.applyPosting(bucketExactWordDocids, []byte(word), d)
}

// ApplyWordPositionPosting merges a del/add pair into
// word_position_docids[word, position].
func (idx *Index) ApplyWordPositionPosting(word string, position uint16, d bitmap.DelAdd) error {
	return idx.applyPosting(bucketWordPositionDocids, wordUint16Key(word, position), d)
}

// ApplyWordFieldIDPosting merges a del/add pair into
// word_field_id_docids[word, fieldID].
func (idx *Index) ApplyWordFieldIDPosting(word string, fieldID types.FieldID, d bitmap.DelAdd) error {
	return idx.applyPosting(bucketWordFieldIDDocids, wordUint16Key(word, uint16(fieldID)), d)
}

// ApplyFieldWordCountPosting merges a del/add pair into
// field_id_word_count_docids[fieldID, count].
func (idx *Index) ApplyFieldWordCountPosting(fieldID types.FieldID, count uint16, d bitmap.DelAdd) error {
	return idx.applyPosting(bucketFieldWordCountDocids, append(be2(uint16(fieldID)), be2(count)...), d)
}

func wordUint16Key(word string, n uint16) []byte {
	k := make([]byte, 0, len(word)+3)
	k = append(k, []byte(word)...)
	k = append(k, 0)
	return append(k, be2(n)...)
}

func proximityKey(w1, w2 string, proximity uint8) []byte {
	k := make([]byte, 0, len(w1)+len(w2)+3)
	k = append(k, []byte(w1)...)
	k = append(k, 0)
	k = append(k, []byte(w2)...)
	k = append(k, 0)
	k = append(k, proximity)
	return k
}

func (idx *Index) applyPosting(bucket, key []byte, d bitmap.DelAdd) error {
	return idx.env.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		existing := b.Get(key)
		out, err := bitmap.Apply(existing, d)
		if err != nil {
			return err
		}
		if out == nil {
			return b.Delete(key)
		}
		return b.Put(key, out)
	})
}

// WordDocids returns the posting list for an exact word match.
func (idx *Index) WordDocids(word string) (*roaring.Bitmap, error) {
	return idx.getPosting(bucketWordDocids, []byte(word))
}

// WordPrefixDocids returns the posting list for a prefix match.
func (idx *Index) WordPrefixDocids(prefix string) (*roaring.Bitmap, error) {
	return idx.getPosting(bucketWordPrefixDocids, []byte(prefix))
}

// WordPairProximityDocids returns documents where w1 and w2 co-occur within
// exactly proximity positions of each other.
func (idx *Index) WordPairProximityDocids(w1, w2 string, proximity uint8) (*roaring.Bitmap, error) {
	return idx.getPosting(bucketWordPairProximity, proximityKey(w1, w2, proximity))
}

// ExactWordDocids returns the posting list for an exact whole-field match.
func (idx *Index) ExactWordDocids(word string) (*roaring.Bitmap, error) {
	return idx.getPosting(bucketExactWordDocids, []byte(word))
}

// WordPositionDocids returns documents where word occurs at exactly position.
func (idx *Index) WordPositionDocids(word string, position uint16) (*roaring.Bitmap, error) {
	return idx.getPosting(bucketWordPositionDocids, wordUint16Key(word, position))
}

// WordFieldIDDocids returns documents where word occurs within fieldID. No
// ranking step in pkg/query reads it.
func (idx *Index) WordFieldIDDocids(word string, fieldID types.FieldID) (*roaring.Bitmap, error) {
	return idx.getPosting(bucketWordFieldIDDocids, wordUint16Key(word, uint16(fieldID)))
}

// FieldWordCountDocids returns documents whose fieldID value tokenizes to
// exactly count words. No ranking step in pkg/query reads it.
func (idx *Index) FieldWordCountDocids(fieldID types.FieldID, count uint16) (*roaring.Bitmap, error) {
	return idx.getPosting(bucketFieldWordCountDocids, append(be2(uint16(fieldID)), be2(count)...))
}

func (idx *Index) getPosting(bucket, key []byte) (*roaring.Bitmap, error) {
	var bm *roaring.Bitmap
	err := idx.env.View(func(tx *bolt.Tx) error {
		var err error
		bm, err = bitmap.Decode(tx.Bucket(bucket).Get(key))
		return err
	})
	return bm, err
}

// facet posting lists are stored as a flat sorted-key bucket rather than the
// level-indexed facet tree the original storage layout uses: bbolt's
// bucket cursor already gives an ordered range scan over the encoded
// values, which is what the tree structure exists to provide, so the
// balanced-tree indirection is unneeded here (see DESIGN.md).

// ApplyFacetStringPosting merges a del/add pair into
// facet_id_string_docids[fieldID, value].
func (idx *Index) ApplyFacetStringPosting(fieldID types.FieldID, value string, d bitmap.DelAdd) error {
	return idx.applyPosting(bucketFacetStrings, facetStringKey(fieldID, value), d)
}

// ApplyFacetNumberPosting merges a del/add pair into
// facet_id_f64_docids[fieldID, value].
func (idx *Index) ApplyFacetNumberPosting(fieldID types.FieldID, value float64, d bitmap.DelAdd) error {
	return idx.applyPosting(bucketFacetNumbers, facetNumberKey(fieldID, value), d)
}

// ApplyFacetExistsPosting merges a del/add pair into
// facet_id_exists_docids[fieldID]: every document that carries fieldID at
// all, regardless of its value. The filter grammar has no EXISTS operator,
// so no filter reads this bucket.
func (idx *Index) ApplyFacetExistsPosting(fieldID types.FieldID, d bitmap.DelAdd) error {
	return idx.applyPosting(bucketFacetExists, be2(uint16(fieldID)), d)
}

// ApplyFacetIsNullPosting merges a del/add pair into
// facet_id_is_null_docids[fieldID].
func (idx *Index) ApplyFacetIsNullPosting(fieldID types.FieldID, d bitmap.DelAdd) error {
	return idx.applyPosting(bucketFacetIsNull, be2(uint16(fieldID)), d)
}

// ApplyFacetIsEmptyPosting merges a del/add pair into
// facet_id_is_empty_docids[fieldID].
func (idx *Index) ApplyFacetIsEmptyPosting(fieldID types.FieldID, d bitmap.DelAdd) error {
	return idx.applyPosting(bucketFacetIsEmpty, be2(uint16(fieldID)), d)
}

// FacetExistsDocids returns every document that carries fieldID.
func (idx *Index) FacetExistsDocids(fieldID types.FieldID) (*roaring.Bitmap, error) {
	return idx.getPosting(bucketFacetExists, be2(uint16(fieldID)))
}

// FacetIsNullDocids returns every document whose fieldID value is JSON null.
func (idx *Index) FacetIsNullDocids(fieldID types.FieldID) (*roaring.Bitmap, error) {
	return idx.getPosting(bucketFacetIsNull, be2(uint16(fieldID)))
}

// FacetIsEmptyDocids returns every document whose fieldID value is an empty
// string, array, or object.
func (idx *Index) FacetIsEmptyDocids(fieldID types.FieldID) (*roaring.Bitmap, error) {
	return idx.getPosting(bucketFacetIsEmpty, be2(uint16(fieldID)))
}

func docFacetKey(fieldID types.FieldID, docID types.DocID) []byte {
	k := make([]byte, 0, 6)
	k = append(k, be2(uint16(fieldID))...)
	return append(k, be4(uint32(docID))...)
}

// PutDocFacetNumber stores fieldID's numeric value for docID in the forward
// per-document facet table, overwriting any previous value.
func (idx *Index) PutDocFacetNumber(fieldID types.FieldID, docID types.DocID, value float64) error {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(value))
	return idx.env.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFacetDocFloats).Put(docFacetKey(fieldID, docID), b)
	})
}

// DeleteDocFacetNumber removes fieldID's forward numeric value for docID.
func (idx *Index) DeleteDocFacetNumber(fieldID types.FieldID, docID types.DocID) error {
	return idx.env.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFacetDocFloats).Delete(docFacetKey(fieldID, docID))
	})
}

// DocFacetNumber reads fieldID's forward numeric value for docID, used by
// SortAttribute.
func (idx *Index) DocFacetNumber(fieldID types.FieldID, docID types.DocID) (float64, bool, error) {
	var v float64
	var found bool
	err := idx.env.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketFacetDocFloats).Get(docFacetKey(fieldID, docID))
		if data == nil {
			return nil
		}
		found = true
		v = math.Float64frombits(binary.BigEndian.Uint64(data))
		return nil
	})
	return v, found, err
}

// PutDocFacetString stores fieldID's string value for docID in the forward
// per-document facet table, overwriting any previous value.
func (idx *Index) PutDocFacetString(fieldID types.FieldID, docID types.DocID, value string) error {
	return idx.env.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFacetDocStrings).Put(docFacetKey(fieldID, docID), []byte(value))
	})
}

// DeleteDocFacetString removes fieldID's forward string value for docID.
func (idx *Index) DeleteDocFacetString(fieldID types.FieldID, docID types.DocID) error {
	return idx.env.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFacetDocStrings).Delete(docFacetKey(fieldID, docID))
	})
}

// DocFacetString reads fieldID's forward string value for docID.
func (idx *Index) DocFacetString(fieldID types.FieldID, docID types.DocID) (string, bool, error) {
	var v string
	var found bool
	err := idx.env.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketFacetDocStrings).Get(docFacetKey(fieldID, docID))
		if data == nil {
			return nil
		}
		found = true
		v = string(data)
		return nil
	})
	return v, found, err
}

// SortAttribute returns docID's value for fieldID from the forward facet
// tables, the numeric value first and else the string value. pkg/query does
// not call it; search results are not sorted by attribute.
func (idx *Index) SortAttribute(fieldID types.FieldID, docID types.DocID) (interface{}, bool, error) {
	if v, found, err := idx.DocFacetNumber(fieldID, docID); err != nil {
		return nil, false, err
	} else if found {
		return v, true, nil
	}
	if v, found, err := idx.DocFacetString(fieldID, docID); err != nil {
		return nil, false, err
	} else if found {
		return v, true, nil
	}
	return nil, false, nil
}

func facetStringKey(fieldID types.FieldID, value string) []byte {
	k := make([]byte, 0, 2+1+len(value))
	k = append(k, be2(uint16(fieldID))...)
	k = append(k, 0)
	return append(k, []byte(value)...)
}

func facetNumberKey(fieldID types.FieldID, value float64) []byte {
	k := make([]byte, 0, 2+8)
	k = append(k, be2(uint16(fieldID))...)
	return append(k, sortableFloat64(value)...)
}

// sortableFloat64 encodes a float64 so that unsigned big-endian byte
// comparison matches numeric ordering, the standard bit-flip trick.
func sortableFloat64(f float64) []byte {
	bits := math.Float64bits(f)
	if f >= 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, bits)
	return b
}

// FacetStringDocids returns the posting list for fieldID == value.
func (idx *Index) FacetStringDocids(fieldID types.FieldID, value string) (*roaring.Bitmap, error) {
	return idx.getPosting(bucketFacetStrings, facetStringKey(fieldID, value))
}

// FacetNumberRangeDocids returns the union of postings for fieldID with a
// numeric value in [min, max], using the bucket's natural byte ordering to
// scan only the matching range.
func (idx *Index) FacetNumberRangeDocids(fieldID types.FieldID, min, max float64) (*roaring.Bitmap, error) {
	result := roaring.New()
	start := facetNumberKey(fieldID, min)
	end := facetNumberKey(fieldID, max)
	err := idx.env.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketFacetNumbers).Cursor()
		for k, v := c.Seek(start); k != nil && compareBytes(k, end) <= 0; k, v = c.Next() {
			if len(k) < 2 || !bytesEqual(k[:2], be2(uint16(fieldID))) {
				continue
			}
			bm, err := bitmap.Decode(v)
			if err != nil {
				return err
			}
			result.Or(bm)
		}
		return nil
	})
	return result, err
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func bytesEqual(a, b []byte) bool { return compareBytes(a, b) == 0 }

// DistinctFacetStringValues returns every distinct value stored for
// fieldID, sorted, used by the facet-search operation.
func (idx *Index) DistinctFacetStringValues(fieldID types.FieldID) ([]string, error) {
	prefix := append(be2(uint16(fieldID)), 0)
	var values []string
	err := idx.env.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketFacetStrings).Cursor()
		for k, _ := c.Seek(prefix); k != nil && len(k) >= len(prefix) && bytesEqual(k[:len(prefix)], prefix); k, _ = c.Next() {
			values = append(values, string(k[len(prefix):]))
		}
		return nil
	})
	sort.Strings(values)
	return values, err
}

// Settings reads the persisted index settings, or the zero value if none
// have been set yet.
func (idx *Index) Settings() (types.Settings, error) {
	var s types.Settings
	err := idx.env.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get(keySettings)
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &s)
	})
	return s, err
}

// PutSettings persists the full settings document (the caller has already
// merged any tri-state updates).
func (idx *Index) PutSettings(s types.Settings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return idx.env.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keySettings, data)
	})
}

// FieldIDForFilter implements pkg/filter.Reader: it resolves name to its
// interned field id only if name is listed in FilterableAttributes.
func (idx *Index) FieldIDForFilter(name string) (uint16, bool, error) {
	settings, err := idx.Settings()
	if err != nil {
		return 0, false, err
	}
	filterable, ok := settings.FilterableAttributes.Value()
	if !ok {
		return 0, false, nil
	}
	allowed := false
	for _, f := range filterable {
		if f == name {
			allowed = true
			break
		}
	}
	if !allowed {
		return 0, false, nil
	}
	id, err := idx.FieldID(name)
	if err != nil {
		return 0, false, err
	}
	return uint16(id), true, nil
}

// FacetStringDocidsByID implements pkg/filter.Reader over a raw field id.
func (idx *Index) FacetStringDocidsByID(fieldID uint16, value string) (*roaring.Bitmap, error) {
	return idx.FacetStringDocids(types.FieldID(fieldID), value)
}

// FacetNumberRangeDocidsByID implements pkg/filter.Reader over a raw field id.
func (idx *Index) FacetNumberRangeDocidsByID(fieldID uint16, min, max float64) (*roaring.Bitmap, error) {
	return idx.FacetNumberRangeDocids(types.FieldID(fieldID), min, max)
}

// AllDocids returns the set of every document id currently stored, used as
// the universe for filter negation and for an empty/no-op filter.
func (idx *Index) AllDocids() (*roaring.Bitmap, error) {
	bm := roaring.New()
	err := idx.env.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDocuments).ForEach(func(k, _ []byte) error {
			bm.Add(binary.BigEndian.Uint32(k))
			return nil
		})
	})
	return bm, err
}

// WordsFSTBytes returns the serialized words_fst, or nil if none has been
// built yet (an empty index).
func (idx *Index) WordsFSTBytes() ([]byte, error) {
	return idx.getMeta(keyWordsFST)
}

// PutWordsFSTBytes persists a freshly rebuilt words_fst.
func (idx *Index) PutWordsFSTBytes(data []byte) error {
	return idx.putMeta(keyWordsFST, data)
}

// PrefixFSTBytes returns the serialized prefix_fst, or nil if none has been
// built yet.
func (idx *Index) PrefixFSTBytes() ([]byte, error) {
	return idx.getMeta(keyPrefixFST)
}

// PutPrefixFSTBytes persists a freshly rebuilt prefix_fst.
func (idx *Index) PutPrefixFSTBytes(data []byte) error {
	return idx.putMeta(keyPrefixFST, data)
}

// AllWords returns every distinct key currently in word_docids, used to
// rebuild words_fst after a batch.
func (idx *Index) AllWords() ([]string, error) {
	var words []string
	err := idx.env.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWordDocids).ForEach(func(k, _ []byte) error {
			words = append(words, string(k))
			return nil
		})
	})
	return words, err
}

func (idx *Index) getMeta(key []byte) ([]byte, error) {
	var v []byte
	err := idx.env.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket(bucketMeta).Get(key); data != nil {
			v = append([]byte(nil), data...)
		}
		return nil
	})
	return v, err
}

func (idx *Index) putMeta(key, value []byte) error {
	return idx.env.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(key, value)
	})
}
