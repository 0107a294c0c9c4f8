// Package bitmap provides small helpers around compressed posting lists so
// every sub-database in pkg/index serializes and merges roaring.Bitmap
// values the same way.
package bitmap

import "github.com/RoaringBitmap/roaring/v2"

// Decode deserializes a roaring bitmap from its on-disk representation. A
// nil or empty input decodes to an empty bitmap rather than an error, since
// a missing posting-list key means "no documents" throughout pkg/index.
func Decode(data []byte) (*roaring.Bitmap, error) {
	bm := roaring.New()
	if len(data) == 0 {
		return bm, nil
	}
	if err := bm.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return bm, nil
}

// Encode serializes bm to its compressed on-disk representation.
func Encode(bm *roaring.Bitmap) ([]byte, error) {
	return bm.MarshalBinary()
}

// DelAdd is the del/add pair the indexing pipeline produces for every
// posting-list mutation: del is removed from the existing bitmap, then add
// is unioned in, in that order, so a document that is both deleted and
// re-added within the same batch ends up present.
type DelAdd struct {
	Del *roaring.Bitmap
	Add *roaring.Bitmap
}

// Apply merges d into the bitmap decoded from existing, returning the new
// encoded bytes, or nil if the result is empty (callers should delete the
// key rather than store an empty bitmap).
func Apply(existing []byte, d DelAdd) ([]byte, error) {
	bm, err := Decode(existing)
	if err != nil {
		return nil, err
	}
	if d.Del != nil {
		bm.AndNot(d.Del)
	}
	if d.Add != nil {
		bm.Or(d.Add)
	}
	if bm.IsEmpty() {
		return nil, nil
	}
	return Encode(bm)
}
