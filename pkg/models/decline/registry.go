// Package decline holds the decline-curve model families: their parameter
// order, bound boxes, rate laws q(t;θ) and cumulative production Q(t;θ).
//
// Rate and cumulative functions are total over the bound box. Divisions and
// fractional powers are guarded by a 1e-12 floor so that optimizers see a
// smooth objective instead of a panic or a NaN.
package decline

import "fmt"

// Model is the capability set every family implements.
type Model interface {
	Spec() Spec
	Rate(t []float64, p Params) []float64
	Cumulative(t []float64, p Params) []float64
}

var registry = map[Family]Model{
	ArpsExponential: arpsExponential{},
	ArpsHarmonic:    arpsHarmonic{},
	ArpsHyperbolic:  arpsHyperbolic{},
	StretchedExponential: stretchedExponential{
		gridPoints: StretchedExponentialGridPoints,
	},
	Duong: duong{
		gridPoints: DuongGridPoints,
	},
	Gompertz: gompertz{},
	Logistic: logistic{},
}

// Lookup returns the model registered for f.
func Lookup(f Family) (Model, error) {
	m, ok := registry[f]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, string(f))
	}
	return m, nil
}

// MustLookup is Lookup for families known at compile time.
func MustLookup(f Family) Model {
	m, err := Lookup(f)
	if err != nil {
		panic(err)
	}
	return m
}
