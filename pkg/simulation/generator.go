package simulation

import (
	"errors"
	"math/rand"

	"github.com/peter-kozarec/declinefit/pkg/models/decline"
)

var ErrEof = errors.New("EOF")

// Observation is one noisy sample of a decline curve.
type Observation struct {
	Time float64
	Rate float64
}

// SeriesGenerator streams noisy observations of a decline curve over a
// fixed time grid. The clean curve is evaluated once up front because some
// families derive the rate from the whole grid.
type SeriesGenerator struct {
	rng   *rand.Rand
	noise NoiseModel
	sigma float64

	grid  []float64
	clean []float64
	next  int
}

func NewSeriesGenerator(family decline.Family, params decline.Params, grid []float64, noise NoiseModel, sigma float64, rng *rand.Rand) (*SeriesGenerator, error) {
	if _, err := ParseNoiseModel(string(noise)); err != nil {
		return nil, err
	}
	model, err := decline.Lookup(family)
	if err != nil {
		return nil, err
	}
	if _, err := model.Spec().Pack(params); err != nil {
		return nil, err
	}

	return &SeriesGenerator{
		rng:   rng,
		noise: noise,
		sigma: sigma,
		grid:  grid,
		clean: model.Rate(grid, params),
	}, nil
}

func (g *SeriesGenerator) Len() int { return len(g.grid) }

func (g *SeriesGenerator) GetNext() (Observation, error) {
	if g.next >= len(g.grid) {
		return Observation{}, ErrEof
	}
	obs := Observation{
		Time: g.grid[g.next],
		Rate: g.noise.apply(g.rng, g.clean[g.next], g.sigma),
	}
	g.next++
	return obs, nil
}
