package fit

import (
	"fmt"
	"math"

	"github.com/peter-kozarec/declinefit/pkg/models/decline"
	"github.com/peter-kozarec/declinefit/pkg/tools/objective"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

const (
	mapFunctionTolerance = 1e-10
	mapConvergeWindow    = 20
	mapGradientTolerance = 1e-8
	// mapStallTolerance bounds the gradient, relative to 1+|loss|, at which a
	// failed line search is taken as having stopped on a stationary point.
	mapStallTolerance = 1e-6
	// mapEdgeFraction moves a start lying on a bound this fraction of the
	// box width inside, where the logistic map is finite.
	mapEdgeFraction    = 1e-6
	centralDiffRelStep = 6.055454452393343e-06 // cbrt(machine epsilon)
)

// BayesianMAP returns the maximum a posteriori estimate under a Gaussian
// likelihood with known sigma and a flat prior on the closed bound box.
//
// The box is handled by reparameterisation: L-BFGS runs on unconstrained u
// with θ = lower + (upper-lower)·σ(u), so every iterate is inside the box.
// Gradients are central differences in u. When the line search fails away
// from a stationary point, Nelder–Mead continues from the best u seen.
//
// Loss is the negative log-likelihood without constant terms, so
// AIC = 2k + 2·loss and BIC = k·log(n) + 2·loss. No covariance is produced.
func BayesianMAP(family decline.Family, t, q []float64, initial decline.Params, sigma float64, options ...Option) (Result, error) {
	opts := buildOptions(options)
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidSigma, sigma)
	}
	p, err := newProblem(family, t, q, initial)
	if err != nil {
		return Result{}, err
	}

	box := boxMap{lower: p.spec.Lower, upper: p.spec.Upper}
	prior := func(theta []float64) float64 {
		return objective.BoxLogPrior(theta, p.spec.Lower, p.spec.Upper)
	}
	theta := make([]float64, p.spec.Dim())
	negLogPost := func(u []float64) float64 {
		box.toBox(theta, u)
		return -objective.LogPosterior(theta, prior, p.predict, p.q, sigma)
	}

	start := make([]float64, len(theta))
	box.fromBox(start, p.theta)

	out := minimizeMAP(optimize.Problem{
		Func: negLogPost,
		Grad: func(grad, u []float64) {
			centralGradient(negLogPost, grad, u)
		},
	}, start, opts.MaxNFev)

	best := make([]float64, len(theta))
	box.toBox(best, out.x)

	n, k := len(q), len(best)
	res := Result{
		Model:     family,
		Params:    p.spec.Unpack(best),
		Success:   out.success,
		Objective: objective.BayesianMAP,
		Loss:      out.f,
		AIC:       2*float64(k) + 2*out.f,
		BIC:       float64(k)*math.Log(float64(n)) + 2*out.f,
		Message:   out.message,
		NObs:      n,
		NParams:   k,
	}

	opts.Logger.Debug("map fit finished",
		zap.String("model", family.String()),
		zap.Bool("success", res.Success),
		zap.String("message", res.Message),
		zap.Float64("loss", res.Loss))

	return res, nil
}

type mapOutcome struct {
	x       []float64
	f       float64
	success bool
	message string
}

func minimizeMAP(prob optimize.Problem, start []float64, maxNFev int) mapOutcome {
	settings := &optimize.Settings{
		FuncEvaluations:   maxNFev,
		GradientThreshold: mapGradientTolerance,
		Converger: &optimize.FunctionConverge{
			Absolute:   mapFunctionTolerance,
			Relative:   mapFunctionTolerance,
			Iterations: mapConvergeWindow,
		},
	}

	result, err := optimize.Minimize(prob, start, settings, &optimize.LBFGS{})
	if err == nil && result != nil {
		out := mapOutcome{
			x:       result.X,
			f:       result.F,
			success: converged(result.Status),
			message: "lbfgs: " + result.Status.String(),
		}
		if out.success && result.Status != optimize.GradientThreshold && floats.Equal(result.X, start) {
			out.success = false
			out.message = "lbfgs: no progress from the starting point"
		}
		return out
	}

	from := start
	if result != nil && isFinite(result.F) {
		from = result.X
		if !floats.Equal(from, start) && stationary(prob, from, result.F) {
			return mapOutcome{
				x:       from,
				f:       result.F,
				success: true,
				message: fmt.Sprintf("lbfgs: %v; stopped at a stationary point", err),
			}
		}
	}

	fallback, nmErr := optimize.Minimize(optimize.Problem{Func: prob.Func}, from, settings, &optimize.NelderMead{})
	if fallback == nil {
		return mapOutcome{
			x:       from,
			f:       prob.Func(from),
			message: fmt.Sprintf("lbfgs: %v; nelder-mead: %v", err, nmErr),
		}
	}
	if nmErr != nil {
		return mapOutcome{
			x:       fallback.X,
			f:       fallback.F,
			message: fmt.Sprintf("lbfgs: %v; nelder-mead: %v", err, nmErr),
		}
	}
	out := mapOutcome{
		x:       fallback.X,
		f:       fallback.F,
		success: converged(fallback.Status),
		message: fmt.Sprintf("lbfgs: %v; nelder-mead: %s", err, fallback.Status),
	}
	if out.success && floats.Equal(fallback.X, start) {
		out.success = false
		out.message = fmt.Sprintf("lbfgs: %v; nelder-mead: no progress from the starting point", err)
	}
	return out
}

func converged(status optimize.Status) bool {
	switch status {
	case optimize.Success,
		optimize.FunctionThreshold,
		optimize.FunctionConvergence,
		optimize.GradientThreshold,
		optimize.StepConvergence,
		optimize.MethodConverge:
		return true
	default:
		return false
	}
}

// stationary reports whether the gradient at x is negligible relative to
// the objective value f.
func stationary(prob optimize.Problem, x []float64, f float64) bool {
	grad := make([]float64, len(x))
	prob.Grad(grad, x)
	norm := floats.Norm(grad, math.Inf(1))
	return isFinite(norm) && norm <= mapStallTolerance*(1+math.Abs(f))
}

// centralGradient differentiates f at x with symmetric steps.
func centralGradient(f func([]float64) float64, grad, x []float64) {
	probe := append([]float64(nil), x...)
	for j := range x {
		h := centralDiffRelStep * math.Max(1, math.Abs(x[j]))
		probe[j] = x[j] + h
		fp := f(probe)
		probe[j] = x[j] - h
		fm := f(probe)
		probe[j] = x[j]
		grad[j] = (fp - fm) / (2 * h)
	}
}

// boxMap sends unconstrained u into the bound box through the logistic
// function, θ = lower + (upper-lower)·σ(u).
type boxMap struct {
	lower, upper []float64
}

func (b boxMap) toBox(theta, u []float64) {
	for i, ui := range u {
		theta[i] = b.lower[i] + (b.upper[i]-b.lower[i])*logistic(ui)
	}
}

// fromBox inverts toBox. Points on or outside a bound are first moved
// mapEdgeFraction of the width inside.
func (b boxMap) fromBox(u, theta []float64) {
	for i, v := range theta {
		frac := (v - b.lower[i]) / (b.upper[i] - b.lower[i])
		frac = math.Min(math.Max(frac, mapEdgeFraction), 1-mapEdgeFraction)
		u[i] = math.Log(frac / (1 - frac))
	}
}

func logistic(u float64) float64 {
	if u >= 0 {
		return 1 / (1 + math.Exp(-u))
	}
	e := math.Exp(u)
	return e / (1 + e)
}
