// Package distance provides the distance metrics used for similarity
// ranking. Kernels are portable pure-Go implementations; distances are
// oriented so that smaller always means closer.
package distance

import (
	"fmt"
	"math"
	"slices"
)

// NormEpsilon is added to the L2 norm during normalization to avoid a
// division by zero on the zero vector.
const NormEpsilon = 1e-32

// Metric represents the distance metric used for vector comparison.
type Metric int

const (
	// MetricL2 is the squared Euclidean distance.
	MetricL2 Metric = iota
	// MetricCosine is the cosine distance (1 - cosine similarity).
	MetricCosine
	// MetricInnerProduct is the inner product distance (1 - dot product).
	MetricInnerProduct
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "l2"
	case MetricCosine:
		return "cosine"
	case MetricInnerProduct:
		return "ip"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseMetric parses the persisted textual form of a metric.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "l2":
		return MetricL2, nil
	case "cosine":
		return MetricCosine, nil
	case "ip":
		return MetricInnerProduct, nil
	default:
		return 0, fmt.Errorf("unknown distance metric %q", s)
	}
}

// Func computes the distance between two vectors of equal length.
// Smaller results mean closer vectors.
type Func func(a, b []float32) float32

// Provider returns the distance function for the given metric.
//
// For MetricCosine the returned kernel assumes both inputs are already
// L2-normalized, which reduces cosine distance to 1-dot. Callers that hold
// unnormalized vectors must pass them through Normalize first.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricL2:
		return SquaredL2, nil
	case MetricCosine, MetricInnerProduct:
		return OneMinusDot, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two
// vectors. Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// OneMinusDot calculates 1 - dot(a, b). Over L2-normalized inputs this is
// the cosine distance.
func OneMinusDot(a, b []float32) float32 {
	return 1 - Dot(a, b)
}

// NormalizeInPlace L2-normalizes v in place using v / (||v|| + epsilon).
// A zero vector stays (numerically) zero instead of trapping.
func NormalizeInPlace(v []float32) {
	norm := float32(math.Sqrt(float64(Dot(v, v))))
	inv := 1 / (norm + NormEpsilon)
	for i := range v {
		v[i] *= inv
	}
}

// Normalize returns an L2-normalized copy of v.
func Normalize(v []float32) []float32 {
	out := slices.Clone(v)
	NormalizeInPlace(out)
	return out
}
