package uncertainty

import (
	"math"
	"sort"

	"github.com/peter-kozarec/declinefit/pkg/models/decline"
	"gonum.org/v1/gonum/stat"
)

type Interval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

func (i Interval) Contains(v float64) bool { return v >= i.Low && v <= i.High }

// ParamCI returns the empirical [alpha/2, 1-alpha/2] quantile interval of
// every parameter named in the first sample. Samples lacking a key are
// skipped for that key.
func ParamCI(samples []decline.Params, alpha float64) (map[string]Interval, error) {
	if !(alpha > 0 && alpha < 1) {
		return nil, ErrInvalidAlpha
	}
	out := make(map[string]Interval)
	if len(samples) == 0 {
		return out, nil
	}

	for name := range samples[0] {
		values := make([]float64, 0, len(samples))
		for _, s := range samples {
			if v, ok := s[name]; ok && !math.IsNaN(v) {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}
		sort.Float64s(values)
		out[name] = Interval{
			Low:  stat.Quantile(alpha/2, stat.LinInterp, values, nil),
			High: stat.Quantile(1-alpha/2, stat.LinInterp, values, nil),
		}
	}
	return out, nil
}
