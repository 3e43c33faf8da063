package validation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/peter-kozarec/declinefit/pkg/fit"
	"github.com/peter-kozarec/declinefit/pkg/models/decline"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrMissingInitial = errors.New("validation: missing initial parameters")

// Comparison is one ranked row: the full-data fit plus its CV-RMSE.
type Comparison struct {
	fit.Result
	CVRMSE float64 `json:"cv_rmse"`
}

// Compare fits and cross-validates every family and orders the rows
// ascending by (BIC, CV-RMSE). Row 0 is the preferred model. Families are
// independent and run on up to Options.Workers goroutines; the order of the
// result does not depend on scheduling.
func Compare(families []decline.Family, t, q []float64, initials map[decline.Family]decline.Params, options ...Option) ([]Comparison, error) {
	opts := buildOptions(options)
	for _, family := range families {
		if _, err := decline.Lookup(family); err != nil {
			return nil, err
		}
		if _, ok := initials[family]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingInitial, family)
		}
	}

	rows := make([]Comparison, len(families))
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(opts.Workers)

	for i, family := range families {
		g.Go(func() error {
			ts := append([]float64(nil), t...)
			qs := append([]float64(nil), q...)

			res, err := fit.Model(family, ts, qs, initials[family], opts.fitOptions()...)
			if err != nil {
				return fmt.Errorf("fitting %s: %w", family, err)
			}
			cv, err := CVRMSE(family, ts, qs, initials[family], options...)
			if err != nil {
				return fmt.Errorf("cross-validating %s: %w", family, err)
			}
			rows[i] = Comparison{Result: res, CVRMSE: cv}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	Rank(rows)

	for rank, row := range rows {
		opts.Logger.Info("model ranked",
			zap.Int("rank", rank),
			zap.String("model", row.Model.String()),
			zap.Float64("bic", row.BIC),
			zap.Float64("cv_rmse", row.CVRMSE),
			zap.Bool("success", row.Success))
	}
	return rows, nil
}

// Rank sorts rows ascending by BIC then CV-RMSE. NaN keys sort last.
func Rank(rows []Comparison) {
	sort.SliceStable(rows, func(i, j int) bool {
		if c := compareKey(rows[i].BIC, rows[j].BIC); c != 0 {
			return c < 0
		}
		return compareKey(rows[i].CVRMSE, rows[j].CVRMSE) < 0
	})
}

func compareKey(a, b float64) int {
	switch an, bn := math.IsNaN(a), math.IsNaN(b); {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
