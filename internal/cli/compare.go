package cli

import (
	"context"
	"fmt"

	"github.com/peter-kozarec/declinefit/pkg/models/decline"
	"github.com/peter-kozarec/declinefit/pkg/validation"
	"github.com/spf13/cobra"
)

type compareFlags struct {
	families []string
	input    string
	seed     int64
	out      string
}

func newCompareCmd(a *app) *cobra.Command {
	var f compareFlags

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Rank decline families by BIC and cross-validated RMSE",
		Long: `Fit every requested family, score it with blocked time-series
cross-validation and print the ranking (row 0 is preferred).

Examples:
  dca compare --input well.csv
  dca compare --families arps_exp,arps_harm,arps_hyp --splits 5 --workers 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := a.runCompare(cmd.Context(), f)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), f.out, newComparisonReport(rows))
		},
	}

	addInputFlags(cmd, &f.input, &f.seed)
	cmd.Flags().StringSliceVar(&f.families, "families", nil, "families to compare; all when empty")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output JSON file; stdout when empty")
	return cmd
}

func (a *app) runCompare(ctx context.Context, f compareFlags) ([]validation.Comparison, error) {
	families, err := parseFamilies(f.families)
	if err != nil {
		return nil, err
	}
	t, q, err := a.loadSeries(f.input, f.seed)
	if err != nil {
		return nil, err
	}
	return a.compare(ctx, families, t, q)
}

func (a *app) compare(ctx context.Context, families []decline.Family, t, q []float64) ([]validation.Comparison, error) {
	initials := make(map[decline.Family]decline.Params, len(families))
	for _, family := range families {
		p, err := a.initialFor(family, t, q, nil)
		if err != nil {
			return nil, err
		}
		initials[family] = p
	}

	rows, err := validation.Compare(families, t, q, initials, a.cfg.ValidationOptions(a.logger)...)
	if err != nil {
		return nil, fmt.Errorf("comparison failed: %w", err)
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if store != nil {
		if err := store.SaveComparison(ctx, a.runID, rows); err != nil {
			return nil, err
		}
	}
	return rows, nil
}
