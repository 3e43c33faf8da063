package objective

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjective_SumSquares(t *testing.T) {
	y := []float64{1, 2, 3}
	yhat := []float64{0, 2, 5}

	tests := []struct {
		name string
		w    []float64
		want float64
	}{
		{name: "unweighted", w: nil, want: 0.5 * (1 + 0 + 4)},
		{name: "weighted", w: []float64{2, 1, 0.5}, want: 0.5 * (2 + 0 + 2)},
		{name: "negative weight floored", w: []float64{-3, 1, 1}, want: 0.5 * (1e-12 + 0 + 4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, SumSquares(y, yhat, tt.w), 1e-12)
		})
	}
}

func TestObjective_HuberLoss(t *testing.T) {
	y := []float64{0, 0, 0}
	yhat := []float64{0.5, -2, 3}

	// 0.5·0.25 + (0.5 + 1·1) + (0.5 + 1·2)
	assert.InDelta(t, 0.125+1.5+2.5, HuberLoss(y, yhat, 1.0), 1e-12)

	// Large delta degenerates to half squared error.
	assert.InDelta(t, SumSquares(y, yhat, nil), HuberLoss(y, yhat, 100), 1e-12)
}

func TestObjective_GaussianLogLik(t *testing.T) {
	y := []float64{1, 2}
	assert.InDelta(t, -0.5, GaussianLogLik(y, []float64{1, 4}, 2.0), 1e-12)
	assert.Zero(t, GaussianLogLik(y, y, 0.5))
	assert.True(t, math.IsInf(GaussianLogLik(y, []float64{1, math.NaN()}, 1), -1))
}

func TestObjective_BoxLogPrior(t *testing.T) {
	lower := []float64{0, -1}
	upper := []float64{1, 1}

	tests := []struct {
		name       string
		theta      []float64
		closed     bool
		openInside bool
	}{
		{name: "interior", theta: []float64{0.5, 0}, closed: true, openInside: true},
		{name: "on lower bound", theta: []float64{0, 0}, closed: true, openInside: false},
		{name: "on upper bound", theta: []float64{0.5, 1}, closed: true, openInside: false},
		{name: "outside", theta: []float64{1.5, 0}, closed: false, openInside: false},
		{name: "nan", theta: []float64{math.NaN(), 0}, closed: false, openInside: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.closed, BoxLogPrior(tt.theta, lower, upper) == 0)
			assert.Equal(t, tt.openInside, OpenBoxLogPrior(tt.theta, lower, upper) == 0)
		})
	}
}

func TestObjective_LogPosterior(t *testing.T) {
	y := []float64{1, 2, 3}
	calls := 0
	predict := func(theta []float64) []float64 {
		calls++
		return []float64{theta[0], theta[0], theta[0]}
	}
	prior := func(theta []float64) float64 {
		return BoxLogPrior(theta, []float64{0}, []float64{10})
	}

	assert.InDelta(t, -0.5*(1+0+1), LogPosterior([]float64{2}, prior, predict, y, 1), 1e-12)
	assert.Equal(t, 1, calls)

	assert.True(t, math.IsInf(LogPosterior([]float64{20}, prior, predict, y, 1), -1))
	assert.Equal(t, 1, calls)
}

func TestObjective_ParseKind(t *testing.T) {
	k, err := ParseKind("huber")
	require.NoError(t, err)
	assert.Equal(t, Huber, k)

	_, err = ParseKind("bayesian_map")
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = ParseKind("l1")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestObjective_Evaluate(t *testing.T) {
	y := []float64{0, 0}
	yhat := []float64{3, 0}
	assert.InDelta(t, 4.5, Evaluate(LeastSquares, y, yhat, 1), 1e-12)
	assert.InDelta(t, 2.5, Evaluate(Huber, y, yhat, 1), 1e-12)
}
