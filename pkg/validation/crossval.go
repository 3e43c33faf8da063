package validation

import (
	"fmt"
	"math"

	"github.com/peter-kozarec/declinefit/pkg/fit"
	"github.com/peter-kozarec/declinefit/pkg/models/decline"
	"go.uber.org/zap"
)

// CVRMSE refits family on the training block of every blocked split,
// predicts the following test block and returns the mean test RMSE. It
// returns NaN when no split can be formed.
//
// A split whose fit did not converge still contributes the RMSE of whatever
// parameters the optimizer returned; it is logged at warn level.
func CVRMSE(family decline.Family, t, q []float64, initial decline.Params, options ...Option) (float64, error) {
	opts := buildOptions(options)
	if len(t) != len(q) {
		return math.NaN(), fmt.Errorf("%w: len(t)=%d len(q)=%d", fit.ErrLengthMismatch, len(t), len(q))
	}
	model, err := decline.Lookup(family)
	if err != nil {
		return math.NaN(), err
	}

	splits := BlockedSplits(len(t), opts.Splits, opts.MinTrainFraction)
	if len(splits) == 0 {
		return math.NaN(), nil
	}

	var total float64
	for i, split := range splits {
		res, err := fit.Model(family, take(t, split.Train), take(q, split.Train), initial, opts.fitOptions()...)
		if err != nil {
			return math.NaN(), err
		}
		if !res.Success {
			opts.Logger.Warn("cross-validation fit did not converge",
				zap.String("model", family.String()),
				zap.Int("split", i),
				zap.String("message", res.Message))
		}

		testT, testQ := take(t, split.Test), take(q, split.Test)
		pred := model.Rate(testT, res.Params)
		total += rmse(testQ, pred)
	}
	return total / float64(len(splits)), nil
}

func rmse(y, yhat []float64) float64 {
	var ss float64
	for i := range y {
		d := y[i] - yhat[i]
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(y)))
}
