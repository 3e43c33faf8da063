package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/peter-kozarec/declinefit/pkg/diagnostics"
	"github.com/peter-kozarec/declinefit/pkg/fit"
	"github.com/peter-kozarec/declinefit/pkg/uncertainty"
	"github.com/peter-kozarec/declinefit/pkg/utility"
	"github.com/peter-kozarec/declinefit/pkg/validation"
)

// number is a float64 that encodes rounded to utility.ReportScale places and
// as null when not finite.
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	v := float64(n)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return []byte(utility.FormatFloat(v, utility.ReportScale)), nil
}

func numbers(m map[string]float64) map[string]number {
	if m == nil {
		return nil
	}
	out := make(map[string]number, len(m))
	for k, v := range m {
		out[k] = number(v)
	}
	return out
}

type fitReport struct {
	Model      string            `json:"model"`
	Params     map[string]number `json:"params"`
	StdErrors  map[string]number `json:"std_errors,omitempty"`
	Success    bool              `json:"success"`
	Objective  string            `json:"objective"`
	Loss       number            `json:"loss"`
	AIC        number            `json:"aic"`
	BIC        number            `json:"bic"`
	Covariance [][]number        `json:"covariance"`
	Message    string            `json:"message"`
	NObs       int               `json:"n_obs"`
	NParams    int               `json:"n_params"`
}

func newFitReport(res fit.Result) fitReport {
	var cov [][]number
	if res.HasCovariance() {
		cov = make([][]number, len(res.Covariance))
		for i, row := range res.Covariance {
			cov[i] = make([]number, len(row))
			for j, v := range row {
				cov[i][j] = number(v)
			}
		}
	}
	return fitReport{
		Model:      res.Model.String(),
		Params:     numbers(res.Params),
		StdErrors:  numbers(res.StdErrors()),
		Success:    res.Success,
		Objective:  string(res.Objective),
		Loss:       number(res.Loss),
		AIC:        number(res.AIC),
		BIC:        number(res.BIC),
		Covariance: cov,
		Message:    res.Message,
		NObs:       res.NObs,
		NParams:    res.NParams,
	}
}

type fitWithDiagnostics struct {
	fitReport
	Residuals residualReport `json:"residuals"`
}

type residualReport struct {
	MSE  number `json:"mse"`
	RMSE number `json:"rmse"`
	MAE  number `json:"mae"`
	MAPE number `json:"mape"`
}

func newResidualReport(r diagnostics.Residual) residualReport {
	return residualReport{MSE: number(r.MSE), RMSE: number(r.RMSE), MAE: number(r.MAE), MAPE: number(r.MAPE)}
}

type comparisonReport struct {
	Rank int `json:"rank"`
	fitReport
	CVRMSE number `json:"cv_rmse"`
}

func newComparisonReport(rows []validation.Comparison) []comparisonReport {
	out := make([]comparisonReport, len(rows))
	for i, row := range rows {
		out[i] = comparisonReport{Rank: i, fitReport: newFitReport(row.Result), CVRMSE: number(row.CVRMSE)}
	}
	return out
}

type intervalReport struct {
	Low  number `json:"low"`
	High number `json:"high"`
}

func newIntervalReport(ci map[string]uncertainty.Interval) map[string]intervalReport {
	out := make(map[string]intervalReport, len(ci))
	for k, v := range ci {
		out[k] = intervalReport{Low: number(v.Low), High: number(v.High)}
	}
	return out
}

// writeJSON encodes v into path, or into w when path is empty.
func writeJSON(w io.Writer, path string, v any) error {
	if path == "" {
		return encodeJSON(w, v)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("unable to create directory for %q: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create %q: %w", path, err)
	}
	if err := encodeJSON(f, v); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("unable to encode report: %w", err)
	}
	return nil
}
