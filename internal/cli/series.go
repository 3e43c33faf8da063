package cli

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/peter-kozarec/declinefit/pkg/data/csv"
	"github.com/peter-kozarec/declinefit/pkg/data/mapper"
	"github.com/peter-kozarec/declinefit/pkg/models/decline"
	"github.com/peter-kozarec/declinefit/pkg/simulation"
	"github.com/peter-kozarec/declinefit/pkg/utility"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
)

type seriesFormat string

const (
	formatCSV    seriesFormat = "csv"
	formatBinary seriesFormat = "bin"
)

func formatOf(path string) (seriesFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return formatCSV, nil
	case ".bin":
		return formatBinary, nil
	}
	return "", fmt.Errorf("unsupported series file %q: expected .csv or .bin", path)
}

func readSeries(path string) ([]float64, []float64, error) {
	format, err := formatOf(path)
	if err != nil {
		return nil, nil, err
	}
	if format == formatBinary {
		return mapper.LoadSeries(path)
	}
	return csv.ReadFile(path)
}

func writeSeries(path string, t, q []float64) error {
	format, err := formatOf(path)
	if err != nil {
		return err
	}
	if format == formatBinary {
		return mapper.SaveSeries(path, t, q)
	}
	return csv.WriteFile(path, t, q)
}

// loadSeries reads input, or generates the reference synthetic dataset when
// input is empty.
func (a *app) loadSeries(input string, seed int64) ([]float64, []float64, error) {
	if input == "" {
		ds, err := simulation.SyntheticDataset(seed)
		if err != nil {
			return nil, nil, err
		}
		a.logger.Info("using synthetic dataset",
			zap.String("model", ds.Family.String()),
			zap.Int("samples", len(ds.T)),
			zap.Int64("seed", seed))
		return ds.T, ds.Q, nil
	}

	t, q, err := readSeries(input)
	if err != nil {
		return nil, nil, err
	}
	if len(t) == 0 {
		return nil, nil, fmt.Errorf("series %q has no finite samples", input)
	}
	if !slices.IsSorted(t) {
		sortSeries(t, q)
	}
	a.logger.Info("series loaded", zap.String("input", input), zap.Int("samples", len(t)))
	return t, q, nil
}

func sortSeries(t, q []float64) {
	idx := make([]int, len(t))
	floats.Argsort(t, idx)
	qs := make([]float64, len(q))
	for i, j := range idx {
		qs[i] = q[j]
	}
	copy(q, qs)
}

// defaultInitial derives a start for family from the data: peak rate for
// rate scales, trapezoid area for cumulative scales.
func defaultInitial(family decline.Family, t, q []float64) decline.Params {
	peak := floats.Max(q)
	area := 1.0
	if len(t) > 1 {
		area = max(integrate.Trapezoidal(t, q), 1)
	}
	switch family {
	case decline.ArpsExponential, decline.ArpsHarmonic:
		return decline.Params{"qi": peak, "di": 0.1}
	case decline.ArpsHyperbolic:
		return decline.Params{"qi": peak, "di": 0.1, "b": 0.7}
	case decline.StretchedExponential:
		return decline.Params{"qi": peak, "tau": 10, "n": 0.8}
	case decline.Duong:
		return decline.Params{"q1": peak, "a": -0.2, "m": 0.5}
	case decline.Gompertz:
		return decline.Params{"qmax": area, "alpha": 3, "beta": 0.1}
	case decline.Logistic:
		return decline.Params{"qmax": area, "k": 0.1, "t0": 10}
	}
	return nil
}

// initialFor prefers, in order: explicit overrides, the configured start
// and the data-derived default.
func (a *app) initialFor(family decline.Family, t, q []float64, overrides map[string]string) (decline.Params, error) {
	p, ok := a.cfg.Initial(family)
	if !ok {
		p = defaultInitial(family, t, q)
	}
	if len(overrides) == 0 {
		return p, nil
	}
	parsed, err := parseParams(overrides)
	if err != nil {
		return nil, err
	}
	for k, v := range parsed {
		p[k] = v
	}
	return p, nil
}

func parseParams(raw map[string]string) (decline.Params, error) {
	out := make(decline.Params, len(raw))
	for k, v := range raw {
		f, err := utility.ParseFloat(v)
		if err != nil {
			return nil, fmt.Errorf("invalid value for parameter %q: %w", k, err)
		}
		out[k] = f
	}
	return out, nil
}

func parseFamilies(names []string) ([]decline.Family, error) {
	if len(names) == 0 {
		return decline.Families(), nil
	}
	out := make([]decline.Family, 0, len(names))
	for _, name := range names {
		f, err := decline.ParseFamily(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
