package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"forecast-explorer/internal/app"
)

var (
	showModel string
	showFrom  string
	showTo    string
	showLimit int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display step-1 predictions with horizon statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			ModelID: showModel,
			Limit:   showLimit,
		}

		var err error
		if opts.From, err = optionalTime("from", showFrom); err != nil {
			return err
		}
		if opts.To, err = optionalTime("to", showTo); err != nil {
			return err
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showModel, "model", "", "Model id (defaults to the first model)")
	showCmd.Flags().StringVar(&showFrom, "from", "", "Start base time, inclusive")
	showCmd.Flags().StringVar(&showTo, "to", "", "End base time, inclusive")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of most recent points to display")
}
