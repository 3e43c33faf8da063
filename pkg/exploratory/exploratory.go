// Package exploratory runs falsifiable shape hypotheses against a rate series.
//
// Each check returns a HypothesisResult carrying the metric it measured and
// the rule under which the hypothesis is rejected.
package exploratory

import (
	"fmt"
	"math"
	"sort"

	"github.com/peter-kozarec/declinefit/pkg/diagnostics"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	scalingThreshold   = 0.85
	curvatureQuantile  = 0.8
	surrogateThreshold = 0.9
	logFloor           = 1e-12
)

type HypothesisResult struct {
	Name              string  `json:"name"`
	Hypothesis        string  `json:"hypothesis"`
	Metric            float64 `json:"metric"`
	Passed            bool    `json:"passed"`
	FalsificationRule string  `json:"falsification_rule"`
}

// ScalingInvariant (H1) measures |corr(log(1+di·t), log(q/qi))|.
func ScalingInvariant(t, q []float64, di, qi float64) HypothesisResult {
	x := make([]float64, len(t))
	y := make([]float64, len(q))
	for i := range t {
		x[i] = math.Log1p(di * t[i])
		y[i] = math.Log(math.Max(q[i]/qi, logFloor))
	}
	corr := math.Abs(stat.Correlation(x, y, nil))
	return HypothesisResult{
		Name:              "H1_scaling",
		Hypothesis:        "Dimensionless coordinates preserve decline shape under multiplicative scaling.",
		Metric:            corr,
		Passed:            corr > scalingThreshold,
		FalsificationRule: fmt.Sprintf("Fail if |corr(log(1+tau), log(qd))| <= %.2f", scalingThreshold),
	}
}

// CurvatureChangepoints (H2) counts peaks of |log-log curvature| at or above
// its 80th percentile.
func CurvatureChangepoints(t, q []float64) HypothesisResult {
	curv := diagnostics.LogLogCurvature(t, q)
	for i := range curv {
		curv[i] = math.Abs(curv[i])
	}

	var peaks int
	if len(curv) > 0 {
		sorted := append([]float64(nil), curv...)
		sort.Float64s(sorted)
		height := stat.Quantile(curvatureQuantile, stat.LinInterp, sorted, nil)
		for _, i := range findPeaks(curv) {
			if curv[i] >= height {
				peaks++
			}
		}
	}

	return HypothesisResult{
		Name:              "H2_regime",
		Hypothesis:        "Changepoints correspond to strong curvature peaks in log-log space.",
		Metric:            float64(peaks),
		Passed:            peaks >= 1,
		FalsificationRule: "Fail if no peaks above 80th percentile curvature.",
	}
}

// SymbolicSurrogate (H3) fits log q by a quadratic in log(t+1) and reports R².
func SymbolicSurrogate(t, q []float64) HypothesisResult {
	r2 := quadraticR2(t, q)
	return HypothesisResult{
		Name:              "H3_symbolic",
		Hypothesis:        "Quadratic polynomial in log-time is a constrained symbolic surrogate.",
		Metric:            r2,
		Passed:            r2 > surrogateThreshold,
		FalsificationRule: fmt.Sprintf("Fail if surrogate R^2 <= %.1f in log space.", surrogateThreshold),
	}
}

// RunSuite evaluates H1, H2 and H3 in that order.
func RunSuite(t, q []float64, di, qi float64) []HypothesisResult {
	return []HypothesisResult{
		ScalingInvariant(t, q, di, qi),
		CurvatureChangepoints(t, q),
		SymbolicSurrogate(t, q),
	}
}

// findPeaks returns indices of strict local maxima. A flat top counts once,
// at its middle sample; edges are never peaks.
func findPeaks(x []float64) []int {
	var peaks []int
	for i := 1; i < len(x)-1; i++ {
		if x[i-1] >= x[i] {
			continue
		}
		j := i
		for j+1 < len(x)-1 && x[j+1] == x[i] {
			j++
		}
		if x[j+1] < x[i] {
			peaks = append(peaks, (i+j)/2)
			i = j
		}
	}
	return peaks
}

func quadraticR2(t, q []float64) float64 {
	n := len(t)
	if n < 3 {
		return math.NaN()
	}
	a := mat.NewDense(n, 3, nil)
	y := mat.NewVecDense(n, nil)
	for i := range t {
		x := math.Log(math.Max(t[i]+1, logFloor))
		a.SetRow(i, []float64{1, x, x * x})
		y.SetVec(i, math.Log(math.Max(q[i], logFloor)))
	}

	var coef mat.VecDense
	if err := coef.SolveVec(a, y); err != nil {
		return math.NaN()
	}
	var yhat mat.VecDense
	yhat.MulVec(a, &coef)

	mean := stat.Mean(y.RawVector().Data, nil)
	var ssRes, ssTot float64
	for i := 0; i < n; i++ {
		r := y.AtVec(i) - yhat.AtVec(i)
		d := y.AtVec(i) - mean
		ssRes += r * r
		ssTot += d * d
	}
	return 1 - ssRes/ssTot
}
