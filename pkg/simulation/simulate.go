package simulation

import (
	"errors"
	"math/rand"

	"github.com/peter-kozarec/declinefit/pkg/models/decline"
	"gonum.org/v1/gonum/floats"
)

const (
	DefaultSigma      = 0.02
	DefaultSeed       = 123
	DefaultGridPoints = 180
	DefaultTMax       = 36.0
)

// Simulate draws one noisy realisation of family over t. Draws come from
// rng in grid order.
func Simulate(family decline.Family, t []float64, params decline.Params, noise NoiseModel, sigma float64, rng *rand.Rand) ([]float64, error) {
	gen, err := NewSeriesGenerator(family, params, t, noise, sigma, rng)
	if err != nil {
		return nil, err
	}
	q := make([]float64, 0, gen.Len())
	for {
		obs, err := gen.GetNext()
		if errors.Is(err, ErrEof) {
			return q, nil
		}
		if err != nil {
			return nil, err
		}
		q = append(q, obs.Rate)
	}
}

// TimeGrid returns n evenly spaced times on [0, tMax].
func TimeGrid(n int, tMax float64) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{0}
	}
	t := make([]float64, n)
	floats.Span(t, 0, tMax)
	return t
}

// Dataset is a simulated series together with the parameters that produced it.
type Dataset struct {
	Family decline.Family
	T      []float64
	Q      []float64
	Truth  decline.Params
}

// SyntheticDataset is the reference hyperbolic series: 180 points over 36
// time units, qi=1250 di=0.08 b=0.75, heteroskedastic noise at 3%.
func SyntheticDataset(seed int64) (Dataset, error) {
	t := TimeGrid(DefaultGridPoints, DefaultTMax)
	truth := decline.Params{"qi": 1250, "di": 0.08, "b": 0.75}
	q, err := Simulate(decline.ArpsHyperbolic, t, truth, Heteroskedastic, 0.03, rand.New(rand.NewSource(seed)))
	if err != nil {
		return Dataset{}, err
	}
	return Dataset{Family: decline.ArpsHyperbolic, T: t, Q: q, Truth: truth}, nil
}
