// Package fit estimates decline-curve parameters.
//
// Model runs a bounded Levenberg–Marquardt refinement on q-rate(t;θ),
// optionally seeded by a differential-evolution search over the bound box,
// and reports loss, AIC, BIC and a covariance estimate. BayesianMAP maximises
// a Gaussian posterior with a flat prior on the box.
//
// Optimizer non-convergence is not an error: it is reported through
// Result.Success and Result.Message. Errors are returned only for invalid
// input such as an unknown family or mismatched series.
package fit

import (
	"errors"
	"fmt"
	"math"

	"github.com/peter-kozarec/declinefit/pkg/models/decline"
	"github.com/peter-kozarec/declinefit/pkg/tools/objective"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrLengthMismatch = errors.New("fit: time and rate series differ in length")
	ErrEmptySeries    = errors.New("fit: empty series")
	ErrInvalidSigma   = errors.New("fit: sigma must be positive and finite")
)

const minSigma2 = 1e-12

// problem is the packed view of a fit: canonical-order vectors and closures
// over the caller's series.
type problem struct {
	model decline.Model
	spec  decline.Spec
	t, q  []float64
	theta []float64
}

func newProblem(family decline.Family, t, q []float64, initial decline.Params) (*problem, error) {
	if len(t) != len(q) {
		return nil, fmt.Errorf("%w: len(t)=%d len(q)=%d", ErrLengthMismatch, len(t), len(q))
	}
	if len(t) == 0 {
		return nil, ErrEmptySeries
	}
	model, err := decline.Lookup(family)
	if err != nil {
		return nil, err
	}
	spec := model.Spec()
	theta, err := spec.Pack(initial)
	if err != nil {
		return nil, err
	}
	return &problem{model: model, spec: spec, t: t, q: q, theta: theta}, nil
}

func (p *problem) predict(theta []float64) []float64 {
	return p.model.Rate(p.t, p.spec.Unpack(theta))
}

func (p *problem) residuals(theta []float64) []float64 {
	pred := p.predict(theta)
	r := make([]float64, len(pred))
	for i := range pred {
		r[i] = p.q[i] - pred[i]
	}
	return r
}

// Model fits family to (t, q) starting from initial.
func Model(family decline.Family, t, q []float64, initial decline.Params, options ...Option) (Result, error) {
	opts := buildOptions(options)
	if _, err := objective.ParseKind(string(opts.Objective)); err != nil {
		return Result{}, err
	}
	p, err := newProblem(family, t, q, initial)
	if err != nil {
		return Result{}, err
	}

	start := p.theta
	if opts.GlobalSearch {
		de := differentialEvolution(func(theta []float64) float64 {
			return objective.Evaluate(opts.Objective, p.q, p.predict(theta), opts.HuberDelta)
		}, p.spec.Lower, p.spec.Upper, opts.Seed)
		opts.Logger.Debug("global search finished",
			zap.String("model", family.String()),
			zap.Int("generations", de.generations),
			zap.Int("nfev", de.nfev),
			zap.Float64("loss", de.fun),
			zap.Bool("converged", de.converged))
		start = de.x
	}

	lm := levenbergMarquardt(p.residuals, start, p.spec.Lower, p.spec.Upper, opts.MaxNFev)
	pred := p.predict(lm.x)

	n, k := len(q), len(lm.x)
	rss := 2 * halfSquares(lm.r)
	aic, bic := informationCriteria(rss, n, k)

	res := Result{
		Model:      family,
		Params:     p.spec.Unpack(lm.x),
		Success:    lm.status.converged(),
		Objective:  opts.Objective,
		Loss:       objective.Evaluate(opts.Objective, q, pred, opts.HuberDelta),
		AIC:        aic,
		BIC:        bic,
		Covariance: covariance(lm.jac, rss, n, k),
		Message:    lm.status.String(),
		NObs:       n,
		NParams:    k,
	}

	opts.Logger.Debug("fit finished",
		zap.String("model", family.String()),
		zap.Bool("success", res.Success),
		zap.String("message", res.Message),
		zap.Int("nfev", lm.nfev),
		zap.Float64("loss", res.Loss),
		zap.Float64("bic", res.BIC))

	return res, nil
}

// covariance returns sigma²·(JᵀJ)⁻¹ as nested slices, or nil when the
// Jacobian is empty or JᵀJ cannot be inverted reliably.
func covariance(jac *mat.Dense, rss float64, n, k int) [][]float64 {
	if jac == nil || jac.IsEmpty() {
		return nil
	}
	sigma2 := math.Max(rss/float64(max(n-k, 1)), minSigma2)

	var jtj mat.SymDense
	jtj.SymOuterK(1, jac.T())

	var inv mat.Dense
	if err := inv.Inverse(&jtj); err != nil {
		return nil
	}
	inv.Scale(sigma2, &inv)

	out := make([][]float64, k)
	for i := range out {
		out[i] = make([]float64, k)
		for j := range out[i] {
			v := inv.At(i, j)
			if !isFinite(v) {
				return nil
			}
			out[i][j] = v
		}
	}
	return out
}
