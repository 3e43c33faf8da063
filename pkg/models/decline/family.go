package decline

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownFamily   = errors.New("decline: unknown model family")
	ErrMissingParam    = errors.New("decline: missing parameter")
	ErrUnexpectedParam = errors.New("decline: unexpected parameter")
)

// Family identifies a decline-curve model family.
type Family string

const (
	ArpsExponential      Family = "arps_exp"
	ArpsHarmonic         Family = "arps_harm"
	ArpsHyperbolic       Family = "arps_hyp"
	StretchedExponential Family = "stretched_exp"
	Duong                Family = "duong"
	Gompertz             Family = "gompertz"
	Logistic             Family = "logistic"
)

// Families returns every registered family in a stable order.
func Families() []Family {
	return []Family{
		ArpsExponential,
		ArpsHarmonic,
		ArpsHyperbolic,
		StretchedExponential,
		Duong,
		Gompertz,
		Logistic,
	}
}

// ParseFamily validates a family name at the boundary.
func ParseFamily(name string) (Family, error) {
	f := Family(name)
	if _, ok := registry[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFamily, name)
	}
	return f, nil
}

func (f Family) String() string { return string(f) }
