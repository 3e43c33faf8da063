package fit

import (
	"math"

	"github.com/peter-kozarec/declinefit/pkg/models/decline"
	"github.com/peter-kozarec/declinefit/pkg/tools/objective"
)

// Result is the immutable outcome of one optimizer run.
type Result struct {
	Model     decline.Family `json:"model"`
	Params    decline.Params `json:"params"`
	Success   bool           `json:"success"`
	Objective objective.Kind `json:"objective"`
	Loss      float64        `json:"loss"`
	AIC       float64        `json:"aic"`
	BIC       float64        `json:"bic"`
	// Covariance is nil unless JᵀJ at the optimum could be inverted.
	Covariance [][]float64 `json:"covariance"`
	Message    string      `json:"message"`
	NObs       int         `json:"n_obs"`
	NParams    int         `json:"n_params"`
}

// HasCovariance reports whether a covariance estimate is present.
func (r Result) HasCovariance() bool { return len(r.Covariance) > 0 }

// StdErrors returns the square roots of the covariance diagonal keyed by
// parameter name, or nil when the covariance is absent.
func (r Result) StdErrors() decline.Params {
	if !r.HasCovariance() {
		return nil
	}
	m, err := decline.Lookup(r.Model)
	if err != nil {
		return nil
	}
	out := make(decline.Params, r.NParams)
	for i, name := range m.Spec().ParamOrder {
		out[name] = math.Sqrt(math.Max(r.Covariance[i][i], 0))
	}
	return out
}

// Predict evaluates the fitted rate law at t.
func (r Result) Predict(t []float64) ([]float64, error) {
	m, err := decline.Lookup(r.Model)
	if err != nil {
		return nil, err
	}
	return m.Rate(t, r.Params), nil
}

const minMSE = 1e-12

// informationCriteria returns the Gaussian AIC and BIC for a residual sum of squares.
func informationCriteria(rss float64, n, k int) (aic, bic float64) {
	nf := float64(n)
	fit := nf * math.Log(math.Max(rss/nf, minMSE))
	return fit + 2*float64(k), fit + float64(k)*math.Log(nf)
}
