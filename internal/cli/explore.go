package cli

import (
	"github.com/peter-kozarec/declinefit/pkg/exploratory"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
)

type exploreFlags struct {
	input string
	seed  int64
	di    float64
	qi    float64
	out   string
}

func newExploreCmd(a *app) *cobra.Command {
	var f exploreFlags

	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Run the exploratory hypothesis suite",
		Long: `Evaluate three falsifiable shape hypotheses on a series:
  H1 dimensionless scaling collapse, |corr(log(1+di*t), log(q/qi))| > 0.85
  H2 at least one log-log curvature peak above the 80th percentile
  H3 quadratic surrogate in log time with R^2 > 0.9

Examples:
  dca explore --input well.csv --di 0.09 --qi 900`,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, q, err := a.loadSeries(f.input, f.seed)
			if err != nil {
				return err
			}
			qi := f.qi
			if qi <= 0 {
				qi = floats.Max(q)
			}
			return writeJSON(cmd.OutOrStdout(), f.out, exploratory.RunSuite(t, q, f.di, qi))
		},
	}

	addInputFlags(cmd, &f.input, &f.seed)
	cmd.Flags().Float64Var(&f.di, "di", 0.1, "decline rate used for dimensionless time")
	cmd.Flags().Float64Var(&f.qi, "qi", 0, "rate scale; peak rate when not positive")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output JSON file; stdout when empty")
	return cmd
}
