package decline

import "math"

// harmonicTolerance is the |b-1| window in which the hyperbolic cumulative
// switches to the harmonic log form to avoid a 0/0.
const harmonicTolerance = 1e-7

// exponentialTolerance is the b below which the hyperbolic cumulative uses the
// exponential form; (1+b·di·t)^(-1/b) loses precision as b approaches zero.
const exponentialTolerance = 1e-8

type arpsExponential struct{}

func (arpsExponential) Spec() Spec {
	return Spec{
		Name:       ArpsExponential,
		ParamOrder: []string{"qi", "di"},
		Lower:      []float64{1e-8, 1e-8},
		Upper:      []float64{1e6, 10.0},
	}
}

// Rate is qi·exp(-di·t).
func (arpsExponential) Rate(t []float64, p Params) []float64 {
	qi, di := p["qi"], p["di"]
	out := make([]float64, len(t))
	for i, ti := range t {
		out[i] = qi * math.Exp(-di*ti)
	}
	return out
}

func (arpsExponential) Cumulative(t []float64, p Params) []float64 {
	return exponentialCumulative(t, p["qi"], p["di"])
}

type arpsHarmonic struct{}

func (arpsHarmonic) Spec() Spec {
	return Spec{
		Name:       ArpsHarmonic,
		ParamOrder: []string{"qi", "di"},
		Lower:      []float64{1e-8, 1e-8},
		Upper:      []float64{1e6, 10.0},
	}
}

// Rate is qi/(1+di·t).
func (arpsHarmonic) Rate(t []float64, p Params) []float64 {
	qi, di := p["qi"], p["di"]
	out := make([]float64, len(t))
	for i, ti := range t {
		out[i] = qi / math.Max(1.0+di*ti, eps)
	}
	return out
}

func (arpsHarmonic) Cumulative(t []float64, p Params) []float64 {
	return harmonicCumulative(t, p["qi"], p["di"])
}

type arpsHyperbolic struct{}

func (arpsHyperbolic) Spec() Spec {
	return Spec{
		Name:       ArpsHyperbolic,
		ParamOrder: []string{"qi", "di", "b"},
		Lower:      []float64{1e-8, 1e-8, 1e-6},
		Upper:      []float64{1e6, 10.0, 1.999},
	}
}

// Rate is qi/(1+b·di·t)^(1/b).
func (arpsHyperbolic) Rate(t []float64, p Params) []float64 {
	qi, di, b := p["qi"], p["di"], p["b"]
	inv := 1.0 / math.Max(b, eps)
	out := make([]float64, len(t))
	for i, ti := range t {
		x := math.Max(1.0+b*di*ti, eps)
		out[i] = qi / math.Pow(x, inv)
	}
	return out
}

func (arpsHyperbolic) Cumulative(t []float64, p Params) []float64 {
	qi, di, b := p["qi"], p["di"], p["b"]
	switch {
	case math.Abs(b-1.0) < harmonicTolerance:
		return harmonicCumulative(t, qi, di)
	case b < exponentialTolerance:
		return exponentialCumulative(t, qi, di)
	}

	oneMinusB := 1.0 - b
	scale := qi / (oneMinusB * di)
	out := make([]float64, len(t))
	for i, ti := range t {
		out[i] = scale * (1.0 - math.Pow(1.0+b*di*ti, -oneMinusB/b))
	}
	return out
}

func exponentialCumulative(t []float64, qi, di float64) []float64 {
	out := make([]float64, len(t))
	for i, ti := range t {
		out[i] = -(qi / di) * math.Expm1(-di*ti)
	}
	return out
}

func harmonicCumulative(t []float64, qi, di float64) []float64 {
	out := make([]float64, len(t))
	for i, ti := range t {
		out[i] = (qi / di) * math.Log1p(di*ti)
	}
	return out
}
