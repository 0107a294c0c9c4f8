package filter

import (
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	fields map[string]uint16
	string_ map[uint16]map[string][]uint32
	numbers map[uint16]map[uint32]float64
	all     []uint32
}

func (f *fakeReader) FieldIDForFilter(field string) (uint16, bool, error) {
	id, ok := f.fields[field]
	return id, ok, nil
}

func (f *fakeReader) FacetStringDocidsByID(fieldID uint16, value string) (*roaring.Bitmap, error) {
	bm := roaring.New()
	bm.AddMany(f.string_[fieldID][value])
	return bm, nil
}

func (f *fakeReader) FacetNumberRangeDocidsByID(fieldID uint16, min, max float64) (*roaring.Bitmap, error) {
	bm := roaring.New()
	for doc, v := range f.numbers[fieldID] {
		if v >= min && v <= max {
			bm.Add(doc)
		}
	}
	return bm, nil
}

func (f *fakeReader) AllDocids() (*roaring.Bitmap, error) {
	bm := roaring.New()
	bm.AddMany(f.all)
	return bm, nil
}

func newTestReader() *fakeReader {
	return &fakeReader{
		fields: map[string]uint16{"genre": 0, "year": 1},
		string_: map[uint16]map[string][]uint32{
			0: {"drama": {1, 2}, "comedy": {3}},
		},
		numbers: map[uint16]map[uint32]float64{
			1: {1: 1994, 2: 1999, 3: 2020},
		},
		all: []uint32{1, 2, 3},
	}
}

func TestEvalEquality(t *testing.T) {
	expr, err := Parse(`genre = "drama"`)
	require.NoError(t, err)

	result, err := Eval(newTestReader(), expr)
	require.NoError(t, err)
	require.ElementsMatch(t, []uint32{1, 2}, result.ToArray())
}

func TestEvalAnd(t *testing.T) {
	expr, err := Parse(`genre = "drama" AND year > 1995`)
	require.NoError(t, err)

	result, err := Eval(newTestReader(), expr)
	require.NoError(t, err)
	require.ElementsMatch(t, []uint32{2}, result.ToArray())
}

func TestEvalOr(t *testing.T) {
	expr, err := Parse(`genre = "comedy" OR year < 1995`)
	require.NoError(t, err)

	result, err := Eval(newTestReader(), expr)
	require.NoError(t, err)
	require.ElementsMatch(t, []uint32{1, 3}, result.ToArray())
}

func TestEvalUnfilterableFieldErrors(t *testing.T) {
	expr, err := Parse(`rating = "R"`)
	require.NoError(t, err)

	_, err = Eval(newTestReader(), expr)
	require.Error(t, err)
}
