package decline

// Gradient returns the second-order accurate derivative of y with respect to
// x on a possibly irregular grid, with one-sided second-order stencils at both
// ends. x must be non-decreasing; repeated abscissae share the derivative
// computed on the distinct points.
func Gradient(y, x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) < 2 {
		return out
	}

	// Collapse runs of equal x so every stencil sees positive spacing.
	ux := make([]float64, 0, len(x))
	uy := make([]float64, 0, len(x))
	group := make([]int, len(x))
	for i := range x {
		if i == 0 || x[i] != x[i-1] {
			ux = append(ux, x[i])
			uy = append(uy, y[i])
		}
		group[i] = len(ux) - 1
	}

	d := uniqueGradient(uy, ux)
	for i := range out {
		out[i] = d[group[i]]
	}
	return out
}

func uniqueGradient(y, x []float64) []float64 {
	n := len(x)
	d := make([]float64, n)
	switch n {
	case 1:
		return d
	case 2:
		slope := (y[1] - y[0]) / (x[1] - x[0])
		d[0], d[1] = slope, slope
		return d
	}

	for i := 1; i < n-1; i++ {
		hs := x[i] - x[i-1]
		hd := x[i+1] - x[i]
		d[i] = (hs*hs*y[i+1] + (hd*hd-hs*hs)*y[i] - hd*hd*y[i-1]) / (hs * hd * (hd + hs))
	}

	dx1 := x[1] - x[0]
	dx2 := x[2] - x[1]
	a := -(2*dx1 + dx2) / (dx1 * (dx1 + dx2))
	b := (dx1 + dx2) / (dx1 * dx2)
	c := -dx1 / (dx2 * (dx1 + dx2))
	d[0] = a*y[0] + b*y[1] + c*y[2]

	dx1 = x[n-2] - x[n-3]
	dx2 = x[n-1] - x[n-2]
	a = dx2 / (dx1 * (dx1 + dx2))
	b = -(dx2 + dx1) / (dx1 * dx2)
	c = (2*dx2 + dx1) / (dx2 * (dx1 + dx2))
	d[n-1] = a*y[n-3] + b*y[n-2] + c*y[n-1]

	return d
}
