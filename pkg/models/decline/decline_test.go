package decline

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	floats.Span(out, lo, hi)
	return out
}

func meanRelativeError(got, want []float64) float64 {
	var sum float64
	for i := range got {
		sum += math.Abs(got[i]-want[i]) / math.Max(want[i], 1e-12)
	}
	return sum / float64(len(got))
}

func TestDecline_ExponentialNonNegativeAndDecreasing(t *testing.T) {
	rng := rand.New(rand.NewSource(40))
	grid := linspace(0, 100, 300)
	m := MustLookup(ArpsExponential)

	for i := 0; i < 40; i++ {
		p := Params{
			"qi": 1.0 + rng.Float64()*4999.0,
			"di": 1e-4 + rng.Float64()*(1.0-1e-4),
		}
		q := m.Rate(grid, p)
		for j := range q {
			require.GreaterOrEqual(t, q[j], 0.0, "params %v", p)
			if j > 0 {
				require.LessOrEqual(t, q[j]-q[j-1], 1e-10, "params %v", p)
			}
		}
	}
}

func TestDecline_HyperbolicMonotoneDecreasing(t *testing.T) {
	q := MustLookup(ArpsHyperbolic).Rate(linspace(0, 100, 400), Params{"qi": 1000, "di": 0.1, "b": 0.8})
	for i := 1; i < len(q); i++ {
		assert.LessOrEqual(t, q[i]-q[i-1], 1e-10)
	}
}

func TestDecline_HyperbolicLimits(t *testing.T) {
	grid := linspace(0, 20, 300)
	hyp := MustLookup(ArpsHyperbolic)

	tests := []struct {
		name  string
		b     float64
		limit Family
	}{
		{name: "b to zero is exponential", b: 1e-4, limit: ArpsExponential},
		{name: "b to one is harmonic", b: 0.9999, limit: ArpsHarmonic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qh := hyp.Rate(grid, Params{"qi": 1000, "di": 0.1, "b": tt.b})
			ql := MustLookup(tt.limit).Rate(grid, Params{"qi": 1000, "di": 0.1})
			assert.Less(t, meanRelativeError(qh, ql), 0.02)
		})
	}
}

func TestDecline_HyperbolicCumulativeContinuity(t *testing.T) {
	grid := linspace(0, 50, 100)
	hyp := MustLookup(ArpsHyperbolic)
	harm := MustLookup(ArpsHarmonic).Cumulative(grid, Params{"qi": 500, "di": 0.3})
	exp := MustLookup(ArpsExponential).Cumulative(grid, Params{"qi": 500, "di": 0.3})

	atOne := hyp.Cumulative(grid, Params{"qi": 500, "di": 0.3, "b": 1.0})
	nearOne := hyp.Cumulative(grid, Params{"qi": 500, "di": 0.3, "b": 1.0 + 1e-4})
	nearZero := hyp.Cumulative(grid, Params{"qi": 500, "di": 0.3, "b": 1e-6})

	assert.InDeltaSlice(t, harm, atOne, 1e-9)
	for i := 1; i < len(grid); i++ {
		assert.InEpsilon(t, harm[i], nearOne[i], 1e-3)
		assert.InEpsilon(t, exp[i], nearZero[i], 1e-3)
	}
}

func TestDecline_DimensionlessInvariance(t *testing.T) {
	grid := linspace(0, 10, 50)
	m := MustLookup(ArpsExponential)

	tests := []struct {
		name   string
		qi, di float64
		scale  float64
	}{
		{name: "double", qi: 900, di: 0.2, scale: 2},
		{name: "shrink", qi: 1500, di: 0.05, scale: 0.25},
		{name: "large", qi: 40, di: 1.3, scale: 17},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scaled := make([]float64, len(grid))
			floats.ScaleTo(scaled, tt.scale, grid)

			tau := DimensionlessTime(grid, tt.di)
			tau2 := DimensionlessTime(scaled, tt.di/tt.scale)
			assert.InDeltaSlice(t, tau, tau2, 1e-9)

			qd := DimensionlessRate(m.Rate(grid, Params{"qi": tt.qi, "di": tt.di}), tt.qi)
			qd2 := DimensionlessRate(m.Rate(scaled, Params{"qi": tt.qi * tt.scale, "di": tt.di / tt.scale}), tt.qi*tt.scale)
			assert.InDeltaSlice(t, qd, qd2, 1e-9)
		})
	}
}

func TestDecline_CumulativeMatchesRate(t *testing.T) {
	grid := linspace(0, 30, 301)

	tests := []struct {
		family Family
		params Params
	}{
		{ArpsExponential, Params{"qi": 800, "di": 0.15}},
		{ArpsHarmonic, Params{"qi": 800, "di": 0.15}},
		{ArpsHyperbolic, Params{"qi": 800, "di": 0.15, "b": 0.6}},
		{StretchedExponential, Params{"qi": 800, "tau": 8, "n": 0.8}},
		{Duong, Params{"q1": 800, "a": 0.5, "m": 0.9}},
		{Logistic, Params{"qmax": 5000, "k": 0.3, "t0": 10}},
	}

	for _, tt := range tests {
		t.Run(tt.family.String(), func(t *testing.T) {
			m := MustLookup(tt.family)
			q := m.Rate(grid, tt.params)
			cum := m.Cumulative(grid, tt.params)

			// Integrate the rate independently and compare increments.
			var acc float64
			for i := 1; i < len(grid); i++ {
				acc += 0.5 * (q[i] + q[i-1]) * (grid[i] - grid[i-1])
				want := cum[i] - cum[0]
				assert.InDelta(t, want, acc, math.Max(1e-2*math.Abs(want), 1.0), "t=%v", grid[i])
			}
		})
	}
}

func TestDecline_GompertzRateIsCumulativeDerivative(t *testing.T) {
	p := Params{"qmax": 10000, "alpha": 3, "beta": 0.1}
	m := MustLookup(Gompertz)

	// Irregular spacing with a repeated time stamp, as produced by resampling.
	grid := []float64{0, 0.2, 0.5, 1.1, 1.1, 1.6, 2.5, 3, 4, 4.2, 5, 6, 7, 7.5, 8}
	got := m.Rate(grid, p)

	for i, ti := range grid {
		inner := math.Exp(-p["beta"] * ti)
		want := p["qmax"] * p["alpha"] * p["beta"] * inner * math.Exp(-p["alpha"]*inner)
		assert.InEpsilon(t, want, got[i], 0.05, "t=%v", ti)
	}
	assert.Equal(t, got[3], got[4])
}

func TestDecline_RatesFiniteAcrossBounds(t *testing.T) {
	grid := linspace(0, 100, 50)
	for _, f := range Families() {
		m := MustLookup(f)
		spec := m.Spec()
		for _, theta := range [][]float64{spec.Lower, spec.Upper} {
			q := m.Rate(grid, spec.Unpack(theta))
			for _, v := range q {
				assert.False(t, math.IsNaN(v), "%s at %v", f, theta)
			}
		}
	}
}

func TestDecline_SpecBounds(t *testing.T) {
	for _, f := range Families() {
		spec := MustLookup(f).Spec()
		require.Equal(t, f, spec.Name)
		require.Len(t, spec.Lower, spec.Dim())
		require.Len(t, spec.Upper, spec.Dim())
		for i := range spec.Lower {
			assert.False(t, math.IsInf(spec.Lower[i], 0) || math.IsInf(spec.Upper[i], 0))
			assert.LessOrEqual(t, spec.Lower[i], spec.Upper[i])
		}
		if spec.Integration == Trapezoid {
			assert.Greater(t, spec.GridPoints, 1)
		}
	}
}

func TestDecline_PackUnpack(t *testing.T) {
	spec := MustLookup(ArpsHyperbolic).Spec()

	theta, err := spec.Pack(Params{"b": 0.5, "qi": 100, "di": 0.2})
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 0.2, 0.5}, theta)
	assert.Equal(t, Params{"qi": 100, "di": 0.2, "b": 0.5}, spec.Unpack(theta))

	_, err = spec.Pack(Params{"qi": 100, "di": 0.2})
	assert.ErrorIs(t, err, ErrMissingParam)

	_, err = spec.Pack(Params{"qi": 100, "di": 0.2, "b": 0.5, "c": 1})
	assert.ErrorIs(t, err, ErrUnexpectedParam)
}

func TestDecline_Lookup(t *testing.T) {
	f, err := ParseFamily("duong")
	require.NoError(t, err)
	assert.Equal(t, Duong, f)

	_, err = ParseFamily("arps_quadratic")
	assert.ErrorIs(t, err, ErrUnknownFamily)

	_, err = Lookup(Family("nope"))
	assert.ErrorIs(t, err, ErrUnknownFamily)
}

func TestDecline_Interpolate(t *testing.T) {
	xs := []float64{0, 1, 2, 4}
	ys := []float64{0, 10, 20, 0}

	tests := []struct {
		x, want float64
	}{
		{-1, 0},
		{0.5, 5},
		{3, 10},
		{4, 0},
		{9, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, interpolate(tt.x, xs, ys), 1e-12)
	}
}
