package cli

import (
	"github.com/spf13/cobra"

	"forecast-explorer/internal/app"
)

var (
	powerOutput string
	powerColumn string
)

var powerCmd = &cobra.Command{
	Use:   "power <input.csv>",
	Short: "Convert W/kW meter readings to kW and chart one column",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Power(cmd.Context(), app.PowerOptions{
			InputPath:  args[0],
			OutputPath: powerOutput,
			Column:     powerColumn,
		})
	},
}

func init() {
	powerCmd.Flags().StringVarP(&powerOutput, "output", "o", "", "PNG path (defaults to the input name with .png)")
	powerCmd.Flags().StringVar(&powerColumn, "column", "", "Reading column to chart (defaults to power.column)")
}
