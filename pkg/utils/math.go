package utils

import "math"

// L2Norm returns the Euclidean norm of x, accumulated in float64.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// NormalizeL2 scales x in place to unit length and reports whether it could.
// A zero vector is left unchanged.
func NormalizeL2(x []float32) bool {
	n := L2Norm(x)
	if n == 0 {
		return false
	}
	inv := 1 / n
	for i := range x {
		x[i] = float32(float64(x[i]) * inv)
	}
	return true
}
