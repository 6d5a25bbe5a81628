package similarity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosine_SymmetricAndSelf(t *testing.T) {
	a := []float32{0.3, -1.2, 4, 0.01}
	b := []float32{2, 0.5, -0.7, 9}

	assert.Equal(t, Cosine(a, b), Cosine(b, a))
	assert.InDelta(t, 1.0, Cosine(a, a), 1e-6)
	assert.InDelta(t, -1.0, Cosine(a, []float32{-0.3, 1.2, -4, -0.01}), 1e-6)
}

func TestCosine_ZeroVectorIsFinite(t *testing.T) {
	zero := make([]float32, 4)
	s := Cosine(zero, []float32{1, 2, 3, 4})
	assert.False(t, math.IsNaN(s))
	assert.False(t, math.IsInf(s, 0))
	assert.Equal(t, 0.0, s)

	assert.Equal(t, 0.0, Cosine(zero, zero))
	assert.Equal(t, 0.0, Cosine(nil, nil))
}

func TestCosine_MismatchedLengthsUseShorter(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{1, 0, 5, 5}
	assert.InDelta(t, 1.0, Cosine(a, b), 1e-6)
	assert.Equal(t, Cosine(a, b), Cosine(b, a))
}

func TestTopK(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{0, 1},     // 0.0
		{1, 0.1},   // ~0.995
		nil,        // no vector
		{1, 1},     // ~0.707
		{1, 0.05},  // ~0.9988
	}

	got := TopK(query, candidates, 2, 0.7)
	assert.Len(t, got, 2)
	assert.Equal(t, 4, got[0].Index)
	assert.Equal(t, 1, got[1].Index)

	assert.Empty(t, TopK(query, candidates, 5, 0.9999))
	assert.Nil(t, TopK(query, candidates, 0, 0))
}
