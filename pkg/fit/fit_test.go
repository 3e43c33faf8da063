package fit

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/peter-kozarec/declinefit/pkg/models/decline"
	"github.com/peter-kozarec/declinefit/pkg/tools/objective"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	floats.Span(out, lo, hi)
	return out
}

func noisy(family decline.Family, t []float64, p decline.Params, sigma float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	q := decline.MustLookup(family).Rate(t, p)
	for i := range q {
		q[i] = math.Max(q[i]+rng.NormFloat64()*sigma, 0)
	}
	return q
}

func relErr(got, want float64) float64 {
	return math.Abs(got-want) / math.Abs(want)
}

func TestFit_RecoversHyperbolic(t *testing.T) {
	grid := linspace(0, 36, 180)
	truth := decline.Params{"qi": 1200, "di": 0.08, "b": 0.7}
	q := noisy(decline.ArpsHyperbolic, grid, truth, 2.0, 42)

	res, err := Model(decline.ArpsHyperbolic, grid, q, decline.Params{"qi": 1000, "di": 0.1, "b": 0.5})
	require.NoError(t, err)

	assert.True(t, res.Success, res.Message)
	assert.Less(t, relErr(res.Params["qi"], truth["qi"]), 0.10)
	assert.Less(t, relErr(res.Params["di"], truth["di"]), 0.20)
	assert.Less(t, relErr(res.Params["b"], truth["b"]), 0.25)
	assert.Equal(t, objective.LeastSquares, res.Objective)
	assert.Equal(t, 180, res.NObs)
	assert.Equal(t, 3, res.NParams)
}

func TestFit_HyperbolicFromLowerBound(t *testing.T) {
	grid := linspace(0, 36, 180)
	truth := decline.Params{"qi": 1200, "di": 0.08, "b": 0.7}
	q := noisy(decline.ArpsHyperbolic, grid, truth, 2.0, 42)

	interior, err := Model(decline.ArpsHyperbolic, grid, q, decline.Params{"qi": 1000, "di": 0.1, "b": 0.5})
	require.NoError(t, err)
	require.True(t, interior.Success, interior.Message)

	res, err := Model(decline.ArpsHyperbolic, grid, q, decline.Params{"qi": 1200, "di": 1e-8, "b": 0.7})
	require.NoError(t, err)
	assert.True(t, res.Success, res.Message)
	assert.Less(t, res.Loss, 2*interior.Loss)
	assert.Less(t, relErr(res.Params["di"], truth["di"]), 0.20)
}

func TestFit_StatisticsConsistent(t *testing.T) {
	grid := linspace(0, 24, 120)
	q := noisy(decline.ArpsExponential, grid, decline.Params{"qi": 1000, "di": 0.2}, 1.0, 7)

	res, err := Model(decline.ArpsExponential, grid, q, decline.Params{"qi": 900, "di": 0.1})
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	pred, err := res.Predict(grid)
	require.NoError(t, err)

	var rss float64
	for i := range q {
		rss += (q[i] - pred[i]) * (q[i] - pred[i])
	}
	n, k := 120.0, 2.0
	assert.InDelta(t, 0.5*rss, res.Loss, 1e-9*rss)
	assert.InDelta(t, n*math.Log(rss/n)+2*k, res.AIC, 1e-9)
	assert.InDelta(t, n*math.Log(rss/n)+k*math.Log(n), res.BIC, 1e-9)

	require.True(t, res.HasCovariance())
	require.Len(t, res.Covariance, 2)
	assert.InDelta(t, res.Covariance[0][1], res.Covariance[1][0], 1e-9*math.Abs(res.Covariance[0][1])+1e-15)

	se := res.StdErrors()
	require.NotNil(t, se)
	assert.Greater(t, se["qi"], 0.0)
	assert.Less(t, math.Abs(res.Params["qi"]-1000), 5*se["qi"])
}

func TestFit_ExactDataRecoversTruth(t *testing.T) {
	grid := linspace(0, 30, 60)
	truth := decline.Params{"qi": 650, "di": 0.12}
	q := decline.MustLookup(decline.ArpsHarmonic).Rate(grid, truth)

	res, err := Model(decline.ArpsHarmonic, grid, q, decline.Params{"qi": 500, "di": 0.3})
	require.NoError(t, err)
	assert.True(t, res.Success, res.Message)
	assert.InEpsilon(t, truth["qi"], res.Params["qi"], 1e-4)
	assert.InEpsilon(t, truth["di"], res.Params["di"], 1e-4)
}

func TestFit_HuberIrregularTimes(t *testing.T) {
	grid := []float64{0.0, 0.5, 1.7, 3.2, 8.5, 9.1, 12.4}
	q := []float64{1000, 950, 880, 760, 550, 540, 400}

	res, err := Model(decline.ArpsExponential, grid, q, decline.Params{"qi": 900, "di": 0.1},
		WithObjective(objective.Huber))
	require.NoError(t, err)
	assert.True(t, res.Success, res.Message)
	assert.Equal(t, objective.Huber, res.Objective)

	pred, err := res.Predict(grid)
	require.NoError(t, err)
	assert.InDelta(t, objective.HuberLoss(q, pred, DefaultHuberDelta), res.Loss, 1e-9)
}

func TestFit_FilteredMissingValues(t *testing.T) {
	raw := []float64{1000, 900, math.NaN(), 760, 700, math.NaN(), 580, 540, 490, 450, 420}
	var grid, q []float64
	for i, v := range raw {
		if !math.IsNaN(v) {
			grid = append(grid, float64(i))
			q = append(q, v)
		}
	}

	res, err := Model(decline.ArpsHarmonic, grid, q, decline.Params{"qi": 900, "di": 0.05})
	require.NoError(t, err)
	assert.True(t, res.Success, res.Message)
}

func TestFit_GlobalSearch(t *testing.T) {
	grid := linspace(0, 20, 60)
	truth := decline.Params{"qi": 800, "di": 0.15}
	q := noisy(decline.ArpsExponential, grid, truth, 3.0, 2)

	// A poor start that local refinement alone would have to walk far from.
	res, err := Model(decline.ArpsExponential, grid, q, decline.Params{"qi": 5, "di": 8},
		WithGlobalSearch(true), WithSeed(11))
	require.NoError(t, err)
	assert.True(t, res.Success, res.Message)
	assert.Less(t, relErr(res.Params["qi"], truth["qi"]), 0.05)
	assert.Less(t, relErr(res.Params["di"], truth["di"]), 0.10)
}

func TestFit_RespectsBounds(t *testing.T) {
	grid := linspace(0, 24, 100)
	q := noisy(decline.ArpsExponential, grid, decline.Params{"qi": 1000, "di": 0.2}, 1.0, 3)

	res, err := Model(decline.ArpsHyperbolic, grid, q, decline.Params{"qi": 900, "di": 0.1, "b": 5})
	require.NoError(t, err)

	spec := decline.MustLookup(decline.ArpsHyperbolic).Spec()
	theta, err := spec.Pack(res.Params)
	require.NoError(t, err)
	assert.True(t, spec.InBounds(theta), "params %v", res.Params)
}

func TestFit_SingularJacobianDropsCovariance(t *testing.T) {
	// At t=0 the stretched exponential does not depend on tau or n.
	grid := make([]float64, 20)
	q := noisy(decline.ArpsExponential, grid, decline.Params{"qi": 100, "di": 0.1}, 1.0, 5)

	res, err := Model(decline.StretchedExponential, grid, q, decline.Params{"qi": 90, "tau": 10, "n": 0.8})
	require.NoError(t, err)
	assert.False(t, res.HasCovariance())
	assert.Nil(t, res.StdErrors())
	assert.InDelta(t, floats.Sum(q)/20, res.Params["qi"], 1e-3)
}

func TestFit_InvalidInput(t *testing.T) {
	grid := linspace(0, 10, 10)
	q := make([]float64, 10)

	tests := []struct {
		name    string
		family  decline.Family
		t, q    []float64
		initial decline.Params
		opts    []Option
		want    error
	}{
		{name: "length mismatch", family: decline.ArpsExponential, t: grid, q: q[:5],
			initial: decline.Params{"qi": 1, "di": 1}, want: ErrLengthMismatch},
		{name: "empty", family: decline.ArpsExponential, t: nil, q: nil,
			initial: decline.Params{"qi": 1, "di": 1}, want: ErrEmptySeries},
		{name: "unknown family", family: decline.Family("cubic"), t: grid, q: q,
			initial: decline.Params{"qi": 1}, want: decline.ErrUnknownFamily},
		{name: "missing param", family: decline.ArpsHyperbolic, t: grid, q: q,
			initial: decline.Params{"qi": 1, "di": 1}, want: decline.ErrMissingParam},
		{name: "unknown objective", family: decline.ArpsExponential, t: grid, q: q,
			initial: decline.Params{"qi": 1, "di": 1}, opts: []Option{WithObjective("l1")}, want: objective.ErrUnknownKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Model(tt.family, tt.t, tt.q, tt.initial, tt.opts...)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFit_MaxNFevReportsFailure(t *testing.T) {
	grid := linspace(0, 36, 180)
	q := noisy(decline.ArpsHyperbolic, grid, decline.Params{"qi": 1200, "di": 0.08, "b": 0.7}, 2.0, 42)

	res, err := Model(decline.ArpsHyperbolic, grid, q, decline.Params{"qi": 100, "di": 1, "b": 1.5}, WithMaxNFev(2))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, lmMaxNFevReached.String(), res.Message)
}

func TestFit_BayesianMAP(t *testing.T) {
	grid := linspace(0, 20, 80)
	truth := decline.Params{"qi": 800, "di": 0.15}
	q := noisy(decline.ArpsExponential, grid, truth, 3.0, 9)

	res, err := BayesianMAP(decline.ArpsExponential, grid, q, decline.Params{"qi": 700, "di": 0.1}, 3.0)
	require.NoError(t, err)

	assert.Equal(t, objective.BayesianMAP, res.Objective)
	assert.Nil(t, res.Covariance)
	assert.Less(t, relErr(res.Params["qi"], truth["qi"]), 0.05)
	assert.Less(t, relErr(res.Params["di"], truth["di"]), 0.10)
	assert.InDelta(t, 2*2+2*res.Loss, res.AIC, 1e-9)
	assert.InDelta(t, 2*math.Log(80)+2*res.Loss, res.BIC, 1e-9)

	pred, err := res.Predict(grid)
	require.NoError(t, err)
	var ss float64
	for i := range q {
		z := (q[i] - pred[i]) / 3.0
		ss += z * z
	}
	assert.InDelta(t, 0.5*ss, res.Loss, 1e-6*ss)
}

func TestFit_BayesianMAPInteriorStartUsesLBFGS(t *testing.T) {
	grid := linspace(0, 36, 180)
	truth := decline.Params{"qi": 1200, "di": 0.08, "b": 0.7}
	q := noisy(decline.ArpsHyperbolic, grid, truth, 2.0, 42)

	res, err := BayesianMAP(decline.ArpsHyperbolic, grid, q, decline.Params{"qi": 1000, "di": 0.1, "b": 0.5}, 2.0)
	require.NoError(t, err)
	assert.True(t, res.Success, res.Message)
	assert.True(t, strings.HasPrefix(res.Message, "lbfgs: "), res.Message)
	assert.NotContains(t, res.Message, "nelder-mead")
	assert.Less(t, relErr(res.Params["qi"], truth["qi"]), 0.10)
	assert.Less(t, relErr(res.Params["di"], truth["di"]), 0.20)
	assert.Less(t, relErr(res.Params["b"], truth["b"]), 0.25)
}

func TestFit_BayesianMAPCornerStart(t *testing.T) {
	grid := linspace(0, 36, 180)
	q := noisy(decline.ArpsHyperbolic, grid, decline.Params{"qi": 1200, "di": 0.08, "b": 0.7}, 2.0, 42)
	start := decline.Params{"qi": 1e6, "di": 10, "b": 1.999}
	startLoss := -objective.GaussianLogLik(q, decline.MustLookup(decline.ArpsHyperbolic).Rate(grid, start), 2.0)

	res, err := BayesianMAP(decline.ArpsHyperbolic, grid, q, start, 2.0)
	require.NoError(t, err)
	assert.Less(t, res.Loss, 1e-3*startLoss)
	assert.NotEqual(t, start, res.Params)

	spec := decline.MustLookup(decline.ArpsHyperbolic).Spec()
	theta, err := spec.Pack(res.Params)
	require.NoError(t, err)
	assert.True(t, spec.InBounds(theta), "params %v", res.Params)
}

func TestBoxMap(t *testing.T) {
	box := boxMap{lower: []float64{0, -5}, upper: []float64{10, 5}}

	u := make([]float64, 2)
	theta := make([]float64, 2)
	box.fromBox(u, []float64{2.5, 1})
	box.toBox(theta, u)
	assert.InDelta(t, 2.5, theta[0], 1e-12)
	assert.InDelta(t, 1, theta[1], 1e-12)

	// Bound points map to finite u just inside the box.
	box.fromBox(u, []float64{0, 5})
	assert.False(t, math.IsInf(u[0], 0))
	assert.False(t, math.IsInf(u[1], 0))
	box.toBox(theta, u)
	assert.Greater(t, theta[0], 0.0)
	assert.Less(t, theta[1], 5.0)

	box.toBox(theta, []float64{-800, 800})
	assert.Equal(t, 0.0, theta[0])
	assert.Equal(t, 5.0, theta[1])
}

func TestFit_BayesianMAPInvalidSigma(t *testing.T) {
	grid := linspace(0, 10, 10)
	for _, sigma := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := BayesianMAP(decline.ArpsExponential, grid, grid, decline.Params{"qi": 1, "di": 1}, sigma)
		assert.ErrorIs(t, err, ErrInvalidSigma)
	}
}
