package uncertainty

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/peter-kozarec/declinefit/pkg/fit"
	"github.com/peter-kozarec/declinefit/pkg/models/decline"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrInvalidAlpha = errors.New("uncertainty: alpha must be in (0, 1)")

// DeriveSeed maps (seed, iteration) to an independent stream seed with a
// splitmix64 step, so iteration i always sees the same draws no matter
// which worker runs it.
func DeriveSeed(seed int64, iteration int) int64 {
	z := uint64(seed) + uint64(iteration+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return int64(z ^ (z >> 31))
}

// Bootstrap refits family on nBoot resamples of (t, q) drawn with
// replacement and re-sorted by time. Only parameter sets from successful
// fits are returned, in iteration order, so the result may be shorter than
// nBoot.
func Bootstrap(family decline.Family, t, q []float64, base decline.Params, nBoot int, seed int64, options ...Option) ([]decline.Params, error) {
	opts := buildOptions(options)
	if len(t) != len(q) {
		return nil, fmt.Errorf("%w: len(t)=%d len(q)=%d", fit.ErrLengthMismatch, len(t), len(q))
	}
	if len(t) == 0 {
		return nil, fit.ErrEmptySeries
	}
	if _, err := decline.Lookup(family); err != nil {
		return nil, err
	}

	fitOptions := append([]fit.Option{fit.WithLogger(opts.Logger)}, opts.FitOptions...)
	slots := make([]decline.Params, max(nBoot, 0))

	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(opts.Workers)
	for i := range slots {
		g.Go(func() error {
			rng := rand.New(rand.NewSource(DeriveSeed(seed, i)))
			bt, bq := resample(rng, t, q)
			res, err := fit.Model(family, bt, bq, base, fitOptions...)
			if err != nil {
				return fmt.Errorf("bootstrap iteration %d: %w", i, err)
			}
			if res.Success {
				slots[i] = res.Params
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	samples := make([]decline.Params, 0, len(slots))
	for _, p := range slots {
		if p != nil {
			samples = append(samples, p)
		}
	}

	opts.Logger.Info("bootstrap finished",
		zap.String("model", family.String()),
		zap.Int("requested", nBoot),
		zap.Int("surviving", len(samples)))

	return samples, nil
}

type observation struct {
	t, q float64
}

func resample(rng *rand.Rand, t, q []float64) ([]float64, []float64) {
	n := len(t)
	obs := make([]observation, n)
	for i := range obs {
		j := rng.Intn(n)
		obs[i] = observation{t: t[j], q: q[j]}
	}
	sort.SliceStable(obs, func(a, b int) bool { return obs[a].t < obs[b].t })

	bt, bq := make([]float64, n), make([]float64, n)
	for i, o := range obs {
		bt[i], bq[i] = o.t, o.q
	}
	return bt, bq
}
