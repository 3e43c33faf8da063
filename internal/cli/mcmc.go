package cli

import (
	"fmt"

	"github.com/peter-kozarec/declinefit/pkg/fit"
	"github.com/peter-kozarec/declinefit/pkg/models/decline"
	"github.com/peter-kozarec/declinefit/pkg/uncertainty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type mcmcFlags struct {
	family  string
	input   string
	seed    int64
	start   map[string]string
	burnIn  int
	fitFrom bool
	out     string
}

type mcmcReport struct {
	Model          string                    `json:"model"`
	Samples        int                       `json:"samples"`
	BurnIn         int                       `json:"burn_in"`
	AcceptanceRate number                    `json:"acceptance_rate"`
	Mean           map[string]number         `json:"mean"`
	Intervals      map[string]intervalReport `json:"intervals"`
}

func newMCMCCmd(a *app) *cobra.Command {
	var f mcmcFlags

	cmd := &cobra.Command{
		Use:   "mcmc",
		Short: "Sample the parameter posterior by random-walk Metropolis",
		Long: `Run a single random-walk Metropolis chain over one family's parameters
under a flat prior on the bound box and a Gaussian likelihood with noise
--sigma, then summarise the draws after --burn-in.

The chain starts from a least-squares fit unless --from-fit=false.

Examples:
  dca mcmc --family arps_exp --input well.csv --samples 5000 --step-scale 0.005 --sigma 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.runMCMC(f)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), f.out, report)
		},
	}

	addInputFlags(cmd, &f.input, &f.seed)
	cmd.Flags().StringVar(&f.family, "family", string(decline.ArpsHyperbolic), "decline family")
	cmd.Flags().StringToStringVar(&f.start, "start", nil, "start parameter overrides")
	cmd.Flags().IntVar(&f.burnIn, "burn-in", 0, "leading draws excluded from the summary")
	cmd.Flags().BoolVar(&f.fitFrom, "from-fit", true, "start the chain at the least-squares optimum")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output JSON file; stdout when empty")
	return cmd
}

func (a *app) runMCMC(f mcmcFlags) (mcmcReport, error) {
	family, err := decline.ParseFamily(f.family)
	if err != nil {
		return mcmcReport{}, err
	}
	t, q, err := a.loadSeries(f.input, f.seed)
	if err != nil {
		return mcmcReport{}, err
	}
	start, err := a.initialFor(family, t, q, f.start)
	if err != nil {
		return mcmcReport{}, err
	}
	if f.fitFrom {
		res, err := fit.Model(family, t, q, start, a.cfg.FitOptions(a.logger)...)
		if err != nil {
			return mcmcReport{}, err
		}
		if res.Success {
			start = res.Params
		} else {
			a.logger.Warn("starting chain from initial values", zap.String("message", res.Message))
		}
	}

	mc := a.cfg.MCMC
	if f.burnIn < 0 || f.burnIn >= mc.Samples {
		return mcmcReport{}, fmt.Errorf("burn-in %d must be in [0, %d)", f.burnIn, mc.Samples)
	}
	chain, err := uncertainty.RandomWalk(family, t, q, start, mc.Sigma, mc.Samples, mc.StepScale, mc.Seed,
		uncertainty.WithLogger(a.logger))
	if err != nil {
		return mcmcReport{}, fmt.Errorf("mcmc failed: %w", err)
	}

	draws := make([]decline.Params, 0, mc.Samples-f.burnIn)
	for i := f.burnIn; i < chain.Len(); i++ {
		p := make(decline.Params, len(chain.ParamOrder))
		for j, name := range chain.ParamOrder {
			p[name] = chain.Samples.At(i, j)
		}
		draws = append(draws, p)
	}
	ci, err := uncertainty.ParamCI(draws, a.cfg.Bootstrap.Alpha)
	if err != nil {
		return mcmcReport{}, err
	}

	mean := make(map[string]number, len(chain.ParamOrder))
	for _, name := range chain.ParamOrder {
		var sum float64
		for _, d := range draws {
			sum += d[name]
		}
		mean[name] = number(sum / float64(len(draws)))
	}

	return mcmcReport{
		Model:          family.String(),
		Samples:        mc.Samples,
		BurnIn:         f.burnIn,
		AcceptanceRate: number(chain.AcceptanceRate()),
		Mean:           mean,
		Intervals:      newIntervalReport(ci),
	}, nil
}
