package estimator

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// degenerateThreshold is the weight-sum floor below which a weight vector is
// treated as carrying no signal (spec.md §4.6, §7 DegenerateWeights).
const degenerateThreshold = 1e-30

// weightedSample is the single centralized categorical-draw primitive
// spec.md §4.6 requires for determinism: given nonnegative weights w, draw
// an index proportional to w via inverse-CDF sampling. If the weights sum to
// less than degenerateThreshold, it falls back to a uniform draw over the
// same index range (spec.md §7 DegenerateWeights).
func weightedSample(w []float64, rng *rand.Rand) int {
	sum := floats.Sum(w)
	if sum < degenerateThreshold {
		return rng.Intn(len(w))
	}

	u := rng.Float64() * sum
	var cum float64
	for i, wi := range w {
		cum += wi
		if cum >= u {
			return i
		}
	}
	// Floating-point rounding can leave u fractionally above the final
	// cumulative sum; return the last index rather than panic.
	return len(w) - 1
}
