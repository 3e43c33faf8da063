package cli

import (
	"fmt"
	"os"

	"github.com/peter-kozarec/declinefit/internal/config"
	"github.com/spf13/cobra"
)

const Version = "0.3.0"

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "dca",
		Short: "Decline-curve fitting, model selection and uncertainty",
		Long: `dca fits parametric decline curves to production-rate series, ranks
competing families by BIC and blocked cross-validation, and quantifies
parameter uncertainty by bootstrap and random-walk Metropolis sampling.

Series are read from "time,rate" CSV files or binary (time, rate) float64
records; without --input the reference synthetic dataset is used.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newSimulateCmd(a),
		newFitCmd(a),
		newCompareCmd(a),
		newBootstrapCmd(a),
		newMCMCCmd(a),
		newExploreCmd(a),
		newRunCmd(a),
		newConvertCmd(a),
		newConfigCmd(a),
	)
	return root
}

func Execute() {
	a := &app{}
	err := newRootCmd(a).Execute()
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
