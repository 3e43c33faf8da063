package decline

import "math"

// DimensionlessTime returns di·t.
func DimensionlessTime(t []float64, di float64) []float64 {
	out := make([]float64, len(t))
	for i, ti := range t {
		out[i] = di * ti
	}
	return out
}

// DimensionlessRate returns q/qi with qi floored at 1e-12.
func DimensionlessRate(q []float64, qi float64) []float64 {
	qi = math.Max(qi, eps)
	out := make([]float64, len(q))
	for i, qv := range q {
		out[i] = qv / qi
	}
	return out
}
