package cli

import (
	"fmt"

	"github.com/peter-kozarec/declinefit/pkg/models/decline"
	"github.com/peter-kozarec/declinefit/pkg/uncertainty"
	"github.com/spf13/cobra"
)

type bootstrapFlags struct {
	family  string
	input   string
	seed    int64
	initial map[string]string
	out     string
}

type bootstrapReport struct {
	Model     string                    `json:"model"`
	Requested int                       `json:"requested"`
	Surviving int                       `json:"surviving"`
	Alpha     number                    `json:"alpha"`
	Intervals map[string]intervalReport `json:"intervals"`
}

func newBootstrapCmd(a *app) *cobra.Command {
	var f bootstrapFlags

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap parameter confidence intervals",
		Long: `Refit one family on resamples drawn with replacement and report the
empirical [alpha/2, 1-alpha/2] interval of every parameter.

Examples:
  dca bootstrap --family arps_exp --input well.csv --n-boot 500 --boot-workers 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.runBootstrap(f)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), f.out, report)
		},
	}

	addInputFlags(cmd, &f.input, &f.seed)
	cmd.Flags().StringVar(&f.family, "family", string(decline.ArpsHyperbolic), "decline family")
	cmd.Flags().StringToStringVar(&f.initial, "initial", nil, "base parameter overrides")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output JSON file; stdout when empty")
	return cmd
}

func (a *app) runBootstrap(f bootstrapFlags) (bootstrapReport, error) {
	family, err := decline.ParseFamily(f.family)
	if err != nil {
		return bootstrapReport{}, err
	}
	t, q, err := a.loadSeries(f.input, f.seed)
	if err != nil {
		return bootstrapReport{}, err
	}
	base, err := a.initialFor(family, t, q, f.initial)
	if err != nil {
		return bootstrapReport{}, err
	}

	bc := a.cfg.Bootstrap
	samples, err := uncertainty.Bootstrap(family, t, q, base, bc.N, bc.Seed, a.cfg.BootstrapOptions(a.logger)...)
	if err != nil {
		return bootstrapReport{}, fmt.Errorf("bootstrap failed: %w", err)
	}
	ci, err := uncertainty.ParamCI(samples, bc.Alpha)
	if err != nil {
		return bootstrapReport{}, err
	}
	return bootstrapReport{
		Model:     family.String(),
		Requested: bc.N,
		Surviving: len(samples),
		Alpha:     number(bc.Alpha),
		Intervals: newIntervalReport(ci),
	}, nil
}
