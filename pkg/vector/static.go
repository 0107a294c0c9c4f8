package vector

import (
	"context"
	"hash/fnv"
	"math"
)

// StaticEmbedder is a deterministic, dependency-free Embedder used in tests
// and as the default when no real embedding backend is configured: it
// hashes each text into a fixed-size unit vector rather than calling out to
// a model. It is not semantically meaningful, only stable and dimension-
// correct, the narrowest real implementation of the interface.
type StaticEmbedder struct {
	dims int
}

// NewStaticEmbedder returns a StaticEmbedder producing vectors of the given
// dimensionality.
func NewStaticEmbedder(dims int) *StaticEmbedder {
	return &StaticEmbedder{dims: dims}
}

// Dimensions returns the configured vector length.
func (e *StaticEmbedder) Dimensions() int { return e.dims }

// EmbedBatch hashes each text into a deterministic unit vector.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *StaticEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.dims)
	h := fnv.New64a()
	var sum float64
	for i := range vec {
		_, _ = h.Write([]byte{byte(i)})
		_, _ = h.Write([]byte(text))
		v := float64(h.Sum64()%10000) / 10000.0
		vec[i] = float32(v)
		sum += v * v
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
