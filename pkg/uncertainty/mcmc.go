package uncertainty

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/peter-kozarec/declinefit/pkg/fit"
	"github.com/peter-kozarec/declinefit/pkg/models/decline"
	"github.com/peter-kozarec/declinefit/pkg/tools/objective"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var ErrNoSamples = errors.New("uncertainty: sample count must be positive")

// Chain holds the states visited by a random-walk Metropolis run, one row
// per iteration in canonical parameter order.
type Chain struct {
	Samples    *mat.Dense
	ParamOrder []string
	Accepted   int
}

func (c Chain) Len() int {
	r, _ := c.Samples.Dims()
	return r
}

func (c Chain) AcceptanceRate() float64 {
	return float64(c.Accepted) / float64(c.Len())
}

// Column returns a copy of the draws of one parameter, or nil for an
// unknown name.
func (c Chain) Column(name string) []float64 {
	for j, p := range c.ParamOrder {
		if p == name {
			return mat.Col(nil, j, c.Samples)
		}
	}
	return nil
}

// Mean returns the per-parameter sample mean of the chain.
func (c Chain) Mean() decline.Params {
	out := make(decline.Params, len(c.ParamOrder))
	for _, name := range c.ParamOrder {
		out[name] = stat.Mean(c.Column(name), nil)
	}
	return out
}

// RandomWalk samples the Gaussian posterior of family's parameters under a
// flat prior on the open bound box. Proposals add isotropic N(0, stepScale²)
// noise; out-of-box proposals have log-posterior -Inf and are never adopted,
// so every row of the chain is finite whenever start is strictly inside the
// bounds.
func RandomWalk(family decline.Family, t, q []float64, start decline.Params, sigma float64, nSamples int, stepScale float64, seed int64, options ...Option) (Chain, error) {
	opts := buildOptions(options)
	if len(t) != len(q) {
		return Chain{}, fmt.Errorf("%w: len(t)=%d len(q)=%d", fit.ErrLengthMismatch, len(t), len(q))
	}
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		return Chain{}, fit.ErrInvalidSigma
	}
	if nSamples <= 0 {
		return Chain{}, ErrNoSamples
	}
	model, err := decline.Lookup(family)
	if err != nil {
		return Chain{}, err
	}
	spec := model.Spec()
	theta, err := spec.Pack(start)
	if err != nil {
		return Chain{}, err
	}

	prior := func(x []float64) float64 {
		return objective.OpenBoxLogPrior(x, spec.Lower, spec.Upper)
	}
	predict := func(x []float64) []float64 {
		return model.Rate(t, spec.Unpack(x))
	}
	logPosterior := func(x []float64) float64 {
		return objective.LogPosterior(x, prior, predict, q, sigma)
	}

	rng := rand.New(rand.NewSource(seed))
	k := len(theta)
	samples := mat.NewDense(nSamples, k, nil)
	current := logPosterior(theta)
	proposal := make([]float64, k)
	accepted := 0

	for i := 0; i < nSamples; i++ {
		for j := range proposal {
			proposal[j] = theta[j] + rng.NormFloat64()*stepScale
		}
		next := logPosterior(proposal)
		if math.Log(rng.Float64()) < next-current {
			copy(theta, proposal)
			current = next
			accepted++
		}
		samples.SetRow(i, theta)
	}

	chain := Chain{Samples: samples, ParamOrder: append([]string(nil), spec.ParamOrder...), Accepted: accepted}
	opts.Logger.Info("mcmc finished",
		zap.String("model", family.String()),
		zap.Int("samples", nSamples),
		zap.Float64("acceptance_rate", chain.AcceptanceRate()))
	return chain, nil
}
