package cli

import (
	"context"
	"fmt"

	"github.com/peter-kozarec/declinefit/pkg/diagnostics"
	"github.com/peter-kozarec/declinefit/pkg/fit"
	"github.com/peter-kozarec/declinefit/pkg/models/decline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type fitFlags struct {
	family   string
	input    string
	seed     int64
	initial  map[string]string
	bayesian bool
	out      string
}

func newFitCmd(a *app) *cobra.Command {
	var f fitFlags

	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit one decline family",
		Long: `Fit one decline family by bounded least squares (or Huber loss), or by
maximum a posteriori estimation with --map.

Examples:
  dca fit --family arps_hyp --input well.csv
  dca fit --family arps_exp --initial qi=900,di=0.1 --objective huber
  dca fit --family logistic --map --sigma 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFit(cmd.Context(), cmd, f)
		},
	}

	addInputFlags(cmd, &f.input, &f.seed)
	cmd.Flags().StringVar(&f.family, "family", string(decline.ArpsHyperbolic), "decline family")
	cmd.Flags().StringToStringVar(&f.initial, "initial", nil, "initial parameter overrides, e.g. qi=900,di=0.1")
	cmd.Flags().BoolVar(&f.bayesian, "map", false, "maximum a posteriori fit with noise --sigma")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output JSON file; stdout when empty")
	return cmd
}

func addInputFlags(cmd *cobra.Command, input *string, seed *int64) {
	cmd.Flags().StringVarP(input, "input", "i", "", "series file (.csv or .bin); synthetic dataset when empty")
	cmd.Flags().Int64Var(seed, "data-seed", 123, "synthetic dataset seed")
}

func (a *app) runFit(ctx context.Context, cmd *cobra.Command, f fitFlags) error {
	family, err := decline.ParseFamily(f.family)
	if err != nil {
		return err
	}
	t, q, err := a.loadSeries(f.input, f.seed)
	if err != nil {
		return err
	}
	initial, err := a.initialFor(family, t, q, f.initial)
	if err != nil {
		return err
	}

	var res fit.Result
	if f.bayesian {
		res, err = fit.BayesianMAP(family, t, q, initial, a.cfg.MCMC.Sigma, a.cfg.FitOptions(a.logger)...)
	} else {
		res, err = fit.Model(family, t, q, initial, a.cfg.FitOptions(a.logger)...)
	}
	if err != nil {
		return fmt.Errorf("fit failed: %w", err)
	}
	pred, err := res.Predict(t)
	if err != nil {
		return err
	}

	a.logger.Info("fit finished",
		zap.String("model", family.String()),
		zap.Bool("success", res.Success),
		zap.Float64("bic", res.BIC))

	if err := a.persistFit(ctx, t, q, res); err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), f.out, fitWithDiagnostics{
		fitReport: newFitReport(res),
		Residuals: newResidualReport(diagnostics.Residuals(q, pred)),
	})
}

func (a *app) persistFit(ctx context.Context, t, q []float64, res fit.Result) error {
	store, err := a.openStore(ctx)
	if err != nil || store == nil {
		return err
	}
	if err := store.SaveSeries(ctx, a.runID, t, q); err != nil {
		return err
	}
	return store.SaveFit(ctx, a.runID, res)
}
