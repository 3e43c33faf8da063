package objective

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var ErrUnknownKind = errors.New("objective: unknown objective kind")

// Kind tags the loss a fit minimised.
type Kind string

const (
	LeastSquares Kind = "ls"
	Huber        Kind = "huber"
	BayesianMAP  Kind = "bayesian_map"
)

// ParseKind validates an objective name. Only the kinds selectable for a
// regular fit are accepted; BayesianMAP is produced by the MAP path itself.
func ParseKind(name string) (Kind, error) {
	switch k := Kind(name); k {
	case LeastSquares, Huber:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
}

const minWeight = 1e-12

// Residuals returns y-yhat, scaled by sqrt(max(w,1e-12)) when weights are given.
func Residuals(y, yhat, w []float64) []float64 {
	r := make([]float64, len(y))
	floats.SubTo(r, y, yhat)
	if w == nil {
		return r
	}
	for i := range r {
		r[i] *= math.Sqrt(math.Max(w[i], minWeight))
	}
	return r
}

// SumSquares is 0.5·Σ w·r². Pass nil weights for the unweighted loss.
func SumSquares(y, yhat, w []float64) float64 {
	r := Residuals(y, yhat, w)
	return 0.5 * floats.Dot(r, r)
}

// HuberLoss is Σ of 0.5·min(|r|,δ)² + δ·(|r|-min(|r|,δ)).
func HuberLoss(y, yhat []float64, delta float64) float64 {
	var sum float64
	for i := range y {
		abs := math.Abs(y[i] - yhat[i])
		quad := math.Min(abs, delta)
		sum += 0.5*quad*quad + delta*(abs-quad)
	}
	return sum
}

// GaussianLogLik is -0.5·Σ((y-yhat)/sigma)², the log-likelihood of y under
// N(yhat, sigma²) without the terms that do not depend on yhat. A NaN
// prediction gives -Inf.
func GaussianLogLik(y, yhat []float64, sigma float64) float64 {
	var ss float64
	for i := range y {
		z := (y[i] - yhat[i]) / sigma
		ss += z * z
	}
	if math.IsNaN(ss) {
		return math.Inf(-1)
	}
	return -0.5 * ss
}

// BoxLogPrior is the flat log-prior on the closed box [lower, upper]: zero
// inside, -Inf outside.
func BoxLogPrior(theta, lower, upper []float64) float64 {
	for i, v := range theta {
		if !(v >= lower[i] && v <= upper[i]) {
			return math.Inf(-1)
		}
	}
	return 0
}

// OpenBoxLogPrior is BoxLogPrior on the open box (lower, upper).
func OpenBoxLogPrior(theta, lower, upper []float64) float64 {
	for i, v := range theta {
		if !(v > lower[i] && v < upper[i]) {
			return math.Inf(-1)
		}
	}
	return 0
}

// LogPosterior is logPrior(theta) + GaussianLogLik(y, predict(theta), sigma).
// predict is not called when the prior rules theta out.
func LogPosterior(theta []float64, logPrior func([]float64) float64, predict func([]float64) []float64, y []float64, sigma float64) float64 {
	lp := logPrior(theta)
	if math.IsInf(lp, -1) || math.IsNaN(lp) {
		return math.Inf(-1)
	}
	return lp + GaussianLogLik(y, predict(theta), sigma)
}

// Evaluate dispatches the scalar loss for a fit objective.
func Evaluate(kind Kind, y, yhat []float64, delta float64) float64 {
	if kind == Huber {
		return HuberLoss(y, yhat, delta)
	}
	return SumSquares(y, yhat, nil)
}
