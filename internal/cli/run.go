package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/peter-kozarec/declinefit/pkg/data/csv"
	"github.com/peter-kozarec/declinefit/pkg/diagnostics"
	"github.com/peter-kozarec/declinefit/pkg/exploratory"
	"github.com/peter-kozarec/declinefit/pkg/fit"
	"github.com/peter-kozarec/declinefit/pkg/models/decline"
	"github.com/peter-kozarec/declinefit/pkg/simulation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

const (
	syntheticFile   = "synthetic.csv"
	comparisonFile  = "model_comparison.json"
	exploratoryFile = "exploratory.json"
	fitFile         = "fit.json"
)

type runFlags struct {
	out  string
	seed int64
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the end-to-end pipeline on the synthetic dataset",
		Long: `Generate the reference synthetic dataset, compare all seven families,
refit the best one with global search and run the exploratory suite.

Artifacts written to --out:
  synthetic.csv          the generated series
  model_comparison.json  ranked comparison rows
  fit.json               best-family fit with residual diagnostics
  exploratory.json       hypothesis suite results

Rows are also persisted when --dsn is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPipeline(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVarP(&f.out, "out", "o", "artifacts", "output directory")
	cmd.Flags().Int64Var(&f.seed, "data-seed", simulation.DefaultSeed, "synthetic dataset seed")
	return cmd
}

func (a *app) runPipeline(ctx context.Context, f runFlags) error {
	ds, err := simulation.SyntheticDataset(f.seed)
	if err != nil {
		return err
	}
	t, q := ds.T, ds.Q
	if err := csv.WriteFile(filepath.Join(f.out, syntheticFile), t, q); err != nil {
		return err
	}
	if store, err := a.openStore(ctx); err != nil {
		return err
	} else if store != nil {
		if err := store.SaveSeries(ctx, a.runID, t, q); err != nil {
			return err
		}
	}

	rows, err := a.compare(ctx, decline.Families(), t, q)
	if err != nil {
		return err
	}
	if err := writeJSON(nil, filepath.Join(f.out, comparisonFile), newComparisonReport(rows)); err != nil {
		return err
	}

	best := rows[0].Model
	initial, err := a.initialFor(best, t, q, nil)
	if err != nil {
		return err
	}
	opts := append(a.cfg.FitOptions(a.logger), fit.WithGlobalSearch(true))
	res, err := fit.Model(best, t, q, initial, opts...)
	if err != nil {
		return fmt.Errorf("refit of %s failed: %w", best, err)
	}
	pred, err := res.Predict(t)
	if err != nil {
		return err
	}
	if store := a.store; store != nil {
		if err := store.SaveFit(ctx, a.runID, res); err != nil {
			return err
		}
	}
	if err := writeJSON(nil, filepath.Join(f.out, fitFile), fitWithDiagnostics{
		fitReport: newFitReport(res),
		Residuals: newResidualReport(diagnostics.Residuals(q, pred)),
	}); err != nil {
		return err
	}

	di, ok := res.Params["di"]
	if !ok {
		di = 0.1
	}
	qi, ok := res.Params["qi"]
	if !ok {
		qi = floats.Max(q)
	}
	suite := exploratory.RunSuite(t, q, di, qi)
	if err := writeJSON(nil, filepath.Join(f.out, exploratoryFile), suite); err != nil {
		return err
	}

	a.logger.Info("pipeline finished",
		zap.Stringer("run_id", a.runID),
		zap.String("best", best.String()),
		zap.Bool("success", res.Success),
		zap.String("out", f.out))
	return nil
}
