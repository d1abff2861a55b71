// Package vectorstore holds the vector math shared by the index backends
// and the retriever. Backends live in sub-packages: memory (brute force),
// qdrant (REST) and pgvector (PostgreSQL).
package vectorstore

import "math"

// Dot returns the dot product over the shorter of the two vectors.
func Dot(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm returns the L2 norm.
func Norm(a []float32) float64 {
	return math.Sqrt(Dot(a, a))
}

// Cosine returns the cosine similarity, or 0 when either vector is zero.
func Cosine(a, b []float32) float64 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// Normalize returns an L2-normalized copy of v.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	n := Norm(v)
	if n == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}
