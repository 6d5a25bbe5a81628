package similarity

import (
	"math"
	"sort"
)

// Epsilon keeps Cosine finite when either vector is all zeros.
const Epsilon = 1e-8

// Cosine returns dot(a,b) / (|a|*|b| + Epsilon). Vectors of different length
// are compared over the shorter length.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, aa, bb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		aa += x * x
		bb += y * y
	}
	return dot / (math.Sqrt(aa)*math.Sqrt(bb) + Epsilon)
}

// Scored is a candidate index with its similarity to a query.
type Scored struct {
	Index int
	Score float64
}

// TopK scores every candidate against query and keeps at most k with a score
// of at least minScore, best first. Nil candidates are skipped.
func TopK(query []float32, candidates [][]float32, k int, minScore float64) []Scored {
	if k <= 0 {
		return nil
	}

	var out []Scored
	for i, c := range candidates {
		if c == nil {
			continue
		}
		if s := Cosine(query, c); s >= minScore {
			out = append(out, Scored{Index: i, Score: s})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out
}
