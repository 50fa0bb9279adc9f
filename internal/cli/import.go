package cli

import (
	"github.com/spf13/cobra"

	"forecast-explorer/internal/app"
)

var (
	importPath   string
	importDryRun bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a predictions CSV into PostgreSQL",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Import(cmd.Context(), app.ImportOptions{
			CSVPath: importPath,
			DryRun:  importDryRun,
		})
	},
}

func init() {
	importCmd.Flags().StringVar(&importPath, "csv", "", "Predictions CSV (defaults to source.csv_path)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Parse and report without writing to the database")
}
