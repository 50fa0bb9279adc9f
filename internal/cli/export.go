package cli

import (
	"github.com/spf13/cobra"

	"forecast-explorer/internal/app"
)

var (
	exportModel   string
	exportFrom    string
	exportTo      string
	exportClick   string
	exportPNGPath string
	exportCSVPath string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export one dashboard figure as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			ModelID: exportModel,
			PNGPath: exportPNGPath,
			CSVPath: exportCSVPath,
		}

		var err error
		if opts.From, err = optionalTime("from", exportFrom); err != nil {
			return err
		}
		if opts.To, err = optionalTime("to", exportTo); err != nil {
			return err
		}
		if opts.Click, err = optionalTime("click", exportClick); err != nil {
			return err
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportModel, "model", "", "Model id (defaults to the first model)")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Start base time, inclusive (RFC3339 or 2006-01-02[ 15:04])")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "End base time, inclusive (RFC3339 or 2006-01-02[ 15:04])")
	exportCmd.Flags().StringVar(&exportClick, "click", "", "Base time whose multi-step trajectory is overlaid")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
}
