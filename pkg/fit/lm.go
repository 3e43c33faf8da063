package fit

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	lmFTol          = 1e-8
	lmXTol          = 1e-8
	lmGTol          = 1e-8
	lmInitialDamp   = 1e-3
	lmMinDamp       = 1e-12
	lmMaxDamp       = 1e16
	lmDiagFloor     = 1e-12
	jacobianRelStep = 1.4901161193847656e-08 // sqrt(machine epsilon)
)

type lmStatus int

const (
	lmMaxNFevReached lmStatus = iota
	lmNonFinite
	lmSingular
	lmNoProgress
	lmGTolSatisfied
	lmFTolSatisfied
	lmXTolSatisfied
)

func (s lmStatus) converged() bool { return s >= lmGTolSatisfied }

func (s lmStatus) String() string {
	switch s {
	case lmMaxNFevReached:
		return "The maximum number of function evaluations is exceeded."
	case lmNonFinite:
		return "Residuals are not finite in the initial point."
	case lmSingular:
		return "The damped normal equations could not be solved."
	case lmNoProgress:
		return "No step reduced the cost before the damping limit was reached."
	case lmGTolSatisfied:
		return "`gtol` termination condition is satisfied."
	case lmFTolSatisfied:
		return "`ftol` termination condition is satisfied."
	case lmXTolSatisfied:
		return "`xtol` termination condition is satisfied."
	default:
		return "unknown status"
	}
}

type residualFunc func(theta []float64) []float64

type lmResult struct {
	x      []float64
	r      []float64
	cost   float64
	jac    *mat.Dense
	status lmStatus
	nfev   int
}

// levenbergMarquardt minimises 0.5·‖r(θ)‖² inside [lower, upper].
//
// Each step solves (JᵀJ + λ·diag(JᵀJ))·δ = -Jᵀr over the free coordinates and
// projects θ+δ back onto the box. A coordinate is held fixed for a step when
// it sits on a bound and the descent direction points outside. The Jacobian
// uses one-sided differences that stay inside the box. Only residual
// evaluations count toward maxNFev.
func levenbergMarquardt(fn residualFunc, x0, lower, upper []float64, maxNFev int) lmResult {
	k := len(x0)
	x := make([]float64, k)
	copy(x, x0)
	clip(x, lower, upper)

	r := fn(x)
	res := lmResult{x: x, r: r, cost: halfSquares(r), nfev: 1}
	if !isFinite(res.cost) {
		res.status = lmNonFinite
		return res
	}
	res.jac = jacobian(fn, x, r, lower, upper)
	if len(r) == 0 {
		res.status = lmGTolSatisfied
		return res
	}

	damp := lmInitialDamp
	for {
		g := make([]float64, k)
		gv := mat.NewVecDense(k, g)
		gv.MulVec(res.jac.T(), mat.NewVecDense(len(res.r), res.r))

		free := freeCoordinates(res.x, g, lower, upper)
		if len(free) == 0 || maxAbsAt(g, free) <= lmGTol {
			res.status = lmGTolSatisfied
			return res
		}

		var jtj mat.SymDense
		jtj.SymOuterK(1, res.jac.T())

		for {
			if res.nfev >= maxNFev {
				res.status = lmMaxNFevReached
				return res
			}

			step, ok := dampedStep(&jtj, g, free, damp)
			if !ok {
				damp *= 10
				if damp > lmMaxDamp {
					res.status = lmSingular
					return res
				}
				continue
			}

			candidate := make([]float64, k)
			floats.AddTo(candidate, res.x, step)
			clip(candidate, lower, upper)
			floats.SubTo(step, candidate, res.x)

			rNew := fn(candidate)
			res.nfev++
			costNew := halfSquares(rNew)

			small := smallStep(step, res.x)
			if isFinite(costNew) && costNew < res.cost {
				reduction := res.cost - costNew
				prevCost := res.cost

				res.x, res.r, res.cost = candidate, rNew, costNew
				res.jac = jacobian(fn, res.x, res.r, lower, upper)
				damp = math.Max(damp/3, lmMinDamp)

				switch {
				case reduction <= lmFTol*prevCost:
					res.status = lmFTolSatisfied
					return res
				case small:
					res.status = lmXTolSatisfied
					return res
				}
				break
			}

			damp *= 2
			switch {
			case small:
				res.status = lmXTolSatisfied
				return res
			case damp > lmMaxDamp:
				res.status = lmNoProgress
				return res
			}
		}
	}
}

// dampedStep solves the damped normal equations restricted to free coordinates.
//
// The system is equilibrated by D = sqrt(diag(JᵀJ)) before factorising, so
// (D⁻¹JᵀJD⁻¹ + λI)·y = -D⁻¹g and δ = D⁻¹y. Columns whose scales differ by
// many orders of magnitude then no longer dominate the condition number.
// A solve that gonum flags as ill-conditioned is still used if it is finite.
func dampedStep(jtj *mat.SymDense, g []float64, free []int, damp float64) ([]float64, bool) {
	m := len(free)
	scale := make([]float64, m)
	for i, fi := range free {
		scale[i] = math.Sqrt(math.Max(jtj.At(fi, fi), lmDiagFloor))
	}

	a := mat.NewSymDense(m, nil)
	b := mat.NewVecDense(m, nil)
	for i, fi := range free {
		for j := i; j < m; j++ {
			a.SetSym(i, j, jtj.At(fi, free[j])/(scale[i]*scale[j]))
		}
		a.SetSym(i, i, a.At(i, i)+damp)
		b.SetVec(i, -g[fi]/scale[i])
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, false
	}
	var sol mat.VecDense
	if err := chol.SolveVecTo(&sol, b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, false
		}
	}

	step := make([]float64, len(g))
	for i, fi := range free {
		v := sol.AtVec(i) / scale[i]
		if !isFinite(v) {
			return nil, false
		}
		step[fi] = v
	}
	return step, true
}

// jacobian returns ∂r/∂θ by forward differences, flipping to a backward
// difference when the forward point would leave the box.
func jacobian(fn residualFunc, x, r, lower, upper []float64) *mat.Dense {
	n, k := len(r), len(x)
	if n == 0 {
		return &mat.Dense{}
	}
	jac := mat.NewDense(n, k, nil)
	probe := make([]float64, k)
	for j := 0; j < k; j++ {
		h := jacobianRelStep * math.Max(1, math.Abs(x[j]))
		if x[j]+h > upper[j] {
			h = -h
		}
		copy(probe, x)
		probe[j] = x[j] + h
		// Recompute h from the representable difference.
		h = probe[j] - x[j]
		rp := fn(probe)
		for i := 0; i < n; i++ {
			jac.Set(i, j, (rp[i]-r[i])/h)
		}
	}
	return jac
}

func freeCoordinates(x, g, lower, upper []float64) []int {
	free := make([]int, 0, len(x))
	for i := range x {
		if (x[i] <= lower[i] && g[i] > 0) || (x[i] >= upper[i] && g[i] < 0) {
			continue
		}
		free = append(free, i)
	}
	return free
}

func smallStep(step, x []float64) bool {
	for i := range step {
		if math.Abs(step[i]) > lmXTol*(lmXTol+math.Abs(x[i])) {
			return false
		}
	}
	return true
}

func maxAbsAt(v []float64, idx []int) float64 {
	var m float64
	for _, i := range idx {
		m = math.Max(m, math.Abs(v[i]))
	}
	return m
}

func halfSquares(r []float64) float64 {
	return 0.5 * floats.Dot(r, r)
}

func clip(x, lower, upper []float64) {
	for i := range x {
		x[i] = math.Min(math.Max(x[i], lower[i]), upper[i])
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
