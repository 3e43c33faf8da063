package decline

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Quadrature densities for the families without a closed-form cumulative.
const (
	StretchedExponentialGridPoints = 400
	DuongGridPoints                = 500
)

// trapezoidCumulative integrates rate on a uniform grid of n points over
// [0, max(t)], accumulates the trapezoids and interpolates onto t.
func trapezoidCumulative(t []float64, n int, rate func([]float64) []float64) []float64 {
	if len(t) == 0 {
		return []float64{}
	}
	if n < 2 {
		n = 2
	}

	grid := make([]float64, n)
	floats.Span(grid, 0, floats.Max(t))

	qt := rate(grid)
	cum := make([]float64, n)
	for i := 1; i < n; i++ {
		cum[i] = cum[i-1] + 0.5*(qt[i]+qt[i-1])*(grid[i]-grid[i-1])
	}

	out := make([]float64, len(t))
	for i, ti := range t {
		out[i] = interpolate(ti, grid, cum)
	}
	return out
}

// interpolate evaluates the piecewise-linear function through (xs, ys) at x,
// clamping to the end values outside [xs[0], xs[len-1]]. xs must be ascending.
func interpolate(x float64, xs, ys []float64) float64 {
	last := len(xs) - 1
	switch {
	case x <= xs[0]:
		return ys[0]
	case x >= xs[last]:
		return ys[last]
	}

	lo, hi := 0, last
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if xs[mid] <= x {
			lo = mid
		} else {
			hi = mid
		}
	}
	span := xs[hi] - xs[lo]
	if span <= 0 {
		return ys[lo]
	}
	w := (x - xs[lo]) / span
	return ys[lo] + w*(ys[hi]-ys[lo])
}

type stretchedExponential struct {
	gridPoints int
}

func (s stretchedExponential) Spec() Spec {
	return Spec{
		Name:        StretchedExponential,
		ParamOrder:  []string{"qi", "tau", "n"},
		Lower:       []float64{1e-8, 1e-8, 0.05},
		Upper:       []float64{1e6, 1e4, 2.0},
		Integration: Trapezoid,
		GridPoints:  s.gridPoints,
	}
}

// Rate is qi·exp(-(t/tau)^n).
func (stretchedExponential) Rate(t []float64, p Params) []float64 {
	qi, tau, n := p["qi"], p["tau"], p["n"]
	tau = math.Max(tau, eps)
	out := make([]float64, len(t))
	for i, ti := range t {
		x := math.Max(ti/tau, 0)
		out[i] = qi * math.Exp(-math.Pow(x, n))
	}
	return out
}

// Cumulative has no closed form here; it is integrated numerically.
func (s stretchedExponential) Cumulative(t []float64, p Params) []float64 {
	return trapezoidCumulative(t, s.gridPoints, func(g []float64) []float64 {
		return s.Rate(g, p)
	})
}

type duong struct {
	gridPoints int
}

func (d duong) Spec() Spec {
	return Spec{
		Name:        Duong,
		ParamOrder:  []string{"q1", "a", "m"},
		Lower:       []float64{1e-8, -5.0, 0.01},
		Upper:       []float64{1e6, 5.0, 0.999},
		Integration: Trapezoid,
		GridPoints:  d.gridPoints,
	}
}

// Rate is q1·(t+1)^(-m)·exp(a/(1-m)·((t+1)^(1-m)-1)).
func (duong) Rate(t []float64, p Params) []float64 {
	q1, a, m := p["q1"], p["a"], p["m"]
	oneMinusM := 1.0 - m
	out := make([]float64, len(t))
	for i, ti := range t {
		tp1 := math.Max(ti+1.0, eps)
		out[i] = q1 * math.Pow(tp1, -m) * math.Exp((a/oneMinusM)*(math.Pow(tp1, oneMinusM)-1.0))
	}
	return out
}

// Cumulative has no closed form here; it is integrated numerically.
func (d duong) Cumulative(t []float64, p Params) []float64 {
	return trapezoidCumulative(t, d.gridPoints, func(g []float64) []float64 {
		return d.Rate(g, p)
	})
}
