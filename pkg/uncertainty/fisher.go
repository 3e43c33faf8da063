package uncertainty

import "gonum.org/v1/gonum/mat"

// FisherInformation returns JᵀJ/sigma2 for a residual Jacobian J.
func FisherInformation(jac mat.Matrix, sigma2 float64) *mat.SymDense {
	_, k := jac.Dims()
	info := mat.NewSymDense(k, nil)
	info.SymOuterK(1/sigma2, jac.T())
	return info
}
