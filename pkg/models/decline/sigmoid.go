package decline

import "math"

type gompertz struct{}

func (gompertz) Spec() Spec {
	return Spec{
		Name:       Gompertz,
		ParamOrder: []string{"qmax", "alpha", "beta"},
		Lower:      []float64{1e-8, 1e-6, 1e-6},
		Upper:      []float64{1e9, 30.0, 5.0},
	}
}

// Rate is the second-order numerical derivative of Cumulative on the sample
// grid, not the analytic derivative.
func (g gompertz) Rate(t []float64, p Params) []float64 {
	return Gradient(g.Cumulative(t, p), t)
}

// Cumulative is qmax·exp(-alpha·exp(-beta·t)).
func (gompertz) Cumulative(t []float64, p Params) []float64 {
	qmax, alpha, beta := p["qmax"], p["alpha"], p["beta"]
	out := make([]float64, len(t))
	for i, ti := range t {
		out[i] = qmax * math.Exp(-alpha*math.Exp(-beta*ti))
	}
	return out
}

type logistic struct{}

func (logistic) Spec() Spec {
	return Spec{
		Name:       Logistic,
		ParamOrder: []string{"qmax", "k", "t0"},
		Lower:      []float64{1e-8, 1e-6, -1e3},
		Upper:      []float64{1e9, 5.0, 1e3},
	}
}

// Rate is qmax·k·e/(1+e)² with e = exp(-k(t-t0)). The expression is symmetric
// in the exponent's sign, so it is evaluated with exp(-|z|) to avoid Inf/Inf.
func (logistic) Rate(t []float64, p Params) []float64 {
	qmax, k, t0 := p["qmax"], p["k"], p["t0"]
	out := make([]float64, len(t))
	for i, ti := range t {
		e := math.Exp(-math.Abs(k * (ti - t0)))
		out[i] = qmax * k * e / ((1.0 + e) * (1.0 + e))
	}
	return out
}

// Cumulative is qmax/(1+exp(-k(t-t0))).
func (logistic) Cumulative(t []float64, p Params) []float64 {
	qmax, k, t0 := p["qmax"], p["k"], p["t0"]
	out := make([]float64, len(t))
	for i, ti := range t {
		out[i] = qmax / (1.0 + math.Exp(-k*(ti-t0)))
	}
	return out
}
