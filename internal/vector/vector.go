// Package vector holds the similarity arithmetic used by search.
package vector

import "math"

// Epsilon is added to each norm so degenerate vectors score 0 instead of NaN.
const Epsilon = 1e-9

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Dot returns the dot product of a and b, which must have equal length.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Cosine returns dot(a,b) / ((|a|+eps)(|b|+eps)).
func Cosine(a, b []float32) float64 {
	return Dot(a, b) / ((Norm(a) + Epsilon) * (Norm(b) + Epsilon))
}

// CosineWithNorm is Cosine with the norm of a precomputed, for scans that
// compare one query against many vectors.
func CosineWithNorm(a []float32, normA float64, b []float32) float64 {
	return Dot(a, b) / ((normA + Epsilon) * (Norm(b) + Epsilon))
}
