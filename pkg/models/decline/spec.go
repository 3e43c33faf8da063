package decline

import (
	"fmt"
	"sort"
)

const eps = 1e-12

// Integration names how a family produces cumulative production.
type Integration int

const (
	// ClosedForm families evaluate Q(t) analytically.
	ClosedForm Integration = iota
	// Trapezoid families integrate q(t) on a dense uniform grid over [0, max(t)]
	// and interpolate back onto the requested times.
	Trapezoid
)

func (i Integration) String() string {
	switch i {
	case ClosedForm:
		return "closed_form"
	case Trapezoid:
		return "trapezoid"
	default:
		return fmt.Sprintf("integration(%d)", int(i))
	}
}

// Params maps parameter names to values. It is the only externally visible
// parameter representation; vectors exist only at optimizer boundaries.
type Params map[string]float64

// Clone returns an independent copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Keys returns the parameter names sorted alphabetically.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Spec describes a family: canonical parameter order and the bound box.
// Lower[i] and Upper[i] belong to ParamOrder[i].
type Spec struct {
	Name        Family
	ParamOrder  []string
	Lower       []float64
	Upper       []float64
	Integration Integration
	// GridPoints is the quadrature density for Trapezoid families.
	GridPoints int
}

// Dim returns the number of parameters.
func (s Spec) Dim() int { return len(s.ParamOrder) }

// Pack converts a mapping into a dense vector in canonical order. The mapping
// must hold exactly the family's parameters.
func (s Spec) Pack(p Params) ([]float64, error) {
	theta := make([]float64, len(s.ParamOrder))
	for i, name := range s.ParamOrder {
		v, ok := p[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s requires %q", ErrMissingParam, s.Name, name)
		}
		theta[i] = v
	}
	if len(p) != len(s.ParamOrder) {
		for _, k := range p.Keys() {
			if s.index(k) < 0 {
				return nil, fmt.Errorf("%w: %s has no %q", ErrUnexpectedParam, s.Name, k)
			}
		}
	}
	return theta, nil
}

// Unpack converts a canonical-order vector back into a mapping.
func (s Spec) Unpack(theta []float64) Params {
	p := make(Params, len(s.ParamOrder))
	for i, name := range s.ParamOrder {
		p[name] = theta[i]
	}
	return p
}

// InBounds reports whether theta lies in the closed bound box.
func (s Spec) InBounds(theta []float64) bool {
	for i, v := range theta {
		if v < s.Lower[i] || v > s.Upper[i] {
			return false
		}
	}
	return true
}

// Clip projects theta onto the closed bound box in place.
func (s Spec) Clip(theta []float64) {
	for i := range theta {
		if theta[i] < s.Lower[i] {
			theta[i] = s.Lower[i]
		} else if theta[i] > s.Upper[i] {
			theta[i] = s.Upper[i]
		}
	}
}

func (s Spec) index(name string) int {
	for i, n := range s.ParamOrder {
		if n == name {
			return i
		}
	}
	return -1
}
