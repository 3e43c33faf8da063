package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newConvertCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "convert <src> <dst>",
		Short: "Convert a series between CSV and binary records",
		Long: `Convert a series file; the format of each side follows its extension
(.csv for "time,rate" text, .bin for little-endian float64 records).

Examples:
  dca convert well.csv well.bin`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, q, err := readSeries(args[0])
			if err != nil {
				return err
			}
			if err := writeSeries(args[1], t, q); err != nil {
				return err
			}
			a.logger.Info("series converted",
				zap.String("src", args[0]),
				zap.String("dst", args[1]),
				zap.Int("samples", len(t)))
			return nil
		},
	}
}
