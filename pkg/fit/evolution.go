package fit

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

const (
	dePopulationFactor = 15
	deMaxGenerations   = 1000
	deTolerance        = 0.01
	deRecombination    = 0.7
	deMutationLow      = 0.5
	deMutationHigh     = 1.0
)

type evolutionResult struct {
	x           []float64
	fun         float64
	generations int
	nfev        int
	converged   bool
}

// differentialEvolution minimises f over the box with the DE/best/1/bin
// scheme: Latin hypercube initialisation, dithered mutation factor per
// generation, immediate replacement and no local polish. Out-of-box mutant
// coordinates are redrawn uniformly. It stops when the population energy
// spread falls under deTolerance relative to its mean or after
// deMaxGenerations.
func differentialEvolution(f func([]float64) float64, lower, upper []float64, seed int64) evolutionResult {
	rng := rand.New(rand.NewSource(seed))
	dim := len(lower)
	size := dePopulationFactor * dim
	if size < 5 {
		size = 5
	}

	pop := latinHypercube(rng, size, dim)
	energies := make([]float64, size)
	scaled := make([]float64, dim)

	eval := func(unit []float64) float64 {
		for j := range unit {
			scaled[j] = lower[j] + unit[j]*(upper[j]-lower[j])
		}
		v := f(scaled)
		if math.IsNaN(v) {
			return math.Inf(1)
		}
		return v
	}

	res := evolutionResult{}
	best := 0
	for i := range pop {
		energies[i] = eval(pop[i])
		res.nfev++
		if energies[i] < energies[best] {
			best = i
		}
	}

	trial := make([]float64, dim)
	for gen := 1; gen <= deMaxGenerations; gen++ {
		res.generations = gen
		mutation := deMutationLow + rng.Float64()*(deMutationHigh-deMutationLow)

		for i := 0; i < size; i++ {
			r1, r2 := pickDistinct(rng, size, i)
			fill := rng.Intn(dim)
			for j := 0; j < dim; j++ {
				if j == fill || rng.Float64() < deRecombination {
					v := pop[best][j] + mutation*(pop[r1][j]-pop[r2][j])
					if v < 0 || v > 1 {
						v = rng.Float64()
					}
					trial[j] = v
				} else {
					trial[j] = pop[i][j]
				}
			}

			e := eval(trial)
			res.nfev++
			if e <= energies[i] {
				copy(pop[i], trial)
				energies[i] = e
				if e <= energies[best] {
					best = i
				}
			}
		}

		if populationConverged(energies) {
			res.converged = true
			break
		}
	}

	res.x = make([]float64, dim)
	for j := range res.x {
		res.x[j] = lower[j] + pop[best][j]*(upper[j]-lower[j])
	}
	res.fun = energies[best]
	return res
}

func populationConverged(energies []float64) bool {
	for _, e := range energies {
		if math.IsInf(e, 0) {
			return false
		}
	}
	mean, std := stat.PopMeanStdDev(energies, nil)
	return std <= deTolerance*math.Abs(mean)
}

// latinHypercube draws size points in the unit cube with one point per
// stratum along every axis.
func latinHypercube(rng *rand.Rand, size, dim int) [][]float64 {
	pop := make([][]float64, size)
	for i := range pop {
		pop[i] = make([]float64, dim)
	}
	seg := 1.0 / float64(size)
	for j := 0; j < dim; j++ {
		perm := rng.Perm(size)
		for i := 0; i < size; i++ {
			pop[i][j] = (float64(perm[i]) + rng.Float64()) * seg
		}
	}
	return pop
}

func pickDistinct(rng *rand.Rand, size, exclude int) (int, int) {
	a := rng.Intn(size)
	for a == exclude {
		a = rng.Intn(size)
	}
	b := rng.Intn(size)
	for b == exclude || b == a {
		b = rng.Intn(size)
	}
	return a, b
}
