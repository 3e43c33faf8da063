package simulation

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

var ErrUnknownNoiseModel = errors.New("simulation: unknown noise model")

type NoiseModel string

const (
	Gaussian        NoiseModel = "gaussian"
	LogNormal       NoiseModel = "lognormal"
	Heteroskedastic NoiseModel = "heteroskedastic"
)

const heteroskedasticFloor = 1e-8

func ParseNoiseModel(name string) (NoiseModel, error) {
	switch m := NoiseModel(name); m {
	case Gaussian, LogNormal, Heteroskedastic:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownNoiseModel, name)
}

func (m NoiseModel) String() string { return string(m) }

// apply perturbs one clean rate. Additive models are floored at zero.
func (m NoiseModel) apply(rng *rand.Rand, clean, sigma float64) float64 {
	switch m {
	case LogNormal:
		return clean * math.Exp(rng.NormFloat64()*sigma)
	case Heteroskedastic:
		return math.Max(clean+rng.NormFloat64()*sigma*math.Max(clean, heteroskedasticFloor), 0)
	default:
		return math.Max(clean+rng.NormFloat64()*sigma, 0)
	}
}
