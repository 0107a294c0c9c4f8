package bitmap

import (
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	bm := roaring.New()
	bm.AddMany([]uint32{1, 5, 9, 1000})

	data, err := Encode(bm)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	require.True(t, bm.Equals(decoded))
}

func TestDecodeEmptyBytes(t *testing.T) {
	bm, err := Decode(nil)
	require.NoError(t, err)
	require.True(t, bm.IsEmpty())
}

func TestApplyDelThenAdd(t *testing.T) {
	existing := roaring.New()
	existing.AddMany([]uint32{1, 2, 3})
	existingBytes, err := Encode(existing)
	require.NoError(t, err)

	del := roaring.New()
	del.Add(2)
	add := roaring.New()
	add.Add(4)

	out, err := Apply(existingBytes, DelAdd{Del: del, Add: add})
	require.NoError(t, err)

	result, err := Decode(out)
	require.NoError(t, err)
	require.ElementsMatch(t, []uint32{1, 3, 4}, result.ToArray())
}

func TestApplyResultingEmptyReturnsNil(t *testing.T) {
	existing := roaring.New()
	existing.Add(1)
	existingBytes, err := Encode(existing)
	require.NoError(t, err)

	del := roaring.New()
	del.Add(1)

	out, err := Apply(existingBytes, DelAdd{Del: del})
	require.NoError(t, err)
	require.Nil(t, out)
}
