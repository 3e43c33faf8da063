package utility

import (
	"math"
	"strconv"

	"github.com/govalues/decimal"
)

// ReportScale is the number of decimal places kept in persisted series and
// printed reports.
const ReportScale = 10

// Round rounds v half-to-even at scale decimal places. Values decimal cannot
// represent (non-finite or beyond 19 significant digits) are returned
// unchanged.
func Round(v float64, scale int) float64 {
	d, err := decimal.NewFromFloat64(v)
	if err != nil {
		return v
	}
	f, ok := d.Round(scale).Float64()
	if !ok {
		return v
	}
	return f
}

// FormatFloat renders v rounded to scale places without trailing zeros.
func FormatFloat(v float64, scale int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	d, err := decimal.NewFromFloat64(v)
	if err != nil {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return d.Round(scale).Trim(0).String()
}

// ParseFloat parses a decimal string, falling back to strconv for exponent
// notation and non-finite spellings.
func ParseFloat(s string) (float64, error) {
	d, err := decimal.Parse(s)
	if err != nil {
		return strconv.ParseFloat(s, 64)
	}
	f, _ := d.Float64()
	return f, nil
}
