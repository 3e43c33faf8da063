// Package diagnostics summarises residuals and log-log shape of a rate series.
package diagnostics

import (
	"math"

	"github.com/peter-kozarec/declinefit/pkg/models/decline"
	"gonum.org/v1/gonum/stat"
)

const (
	mapeFloor = 1e-12
	timeFloor = 1e-8
	rateFloor = 1e-12
)

type Residual struct {
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	MAPE float64 `json:"mape"`
}

// Residuals compares observed y with predictions yhat of the same length.
// MAPE denominators are floored at 1e-12.
func Residuals(y, yhat []float64) Residual {
	n := len(y)
	sq := make([]float64, n)
	abs := make([]float64, n)
	pct := make([]float64, n)
	for i := range y {
		r := y[i] - yhat[i]
		sq[i] = r * r
		abs[i] = math.Abs(r)
		pct[i] = math.Abs(r / math.Max(y[i], mapeFloor))
	}

	mse := stat.Mean(sq, nil)
	return Residual{
		MSE:  mse,
		RMSE: math.Sqrt(mse),
		MAE:  stat.Mean(abs, nil),
		MAPE: stat.Mean(pct, nil),
	}
}

// LogLogCurvature is d²(log q)/d(log t)² evaluated on the sample grid.
// Non-positive times and rates are floored before taking logs.
func LogLogCurvature(t, q []float64) []float64 {
	lt := make([]float64, len(t))
	lq := make([]float64, len(q))
	for i := range t {
		lt[i] = math.Log(math.Max(t[i], timeFloor))
		lq[i] = math.Log(math.Max(q[i], rateFloor))
	}
	d1 := decline.Gradient(lq, lt)
	return decline.Gradient(d1, lt)
}
