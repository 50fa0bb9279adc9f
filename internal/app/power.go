package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"forecast-explorer/internal/power"
	"forecast-explorer/internal/render"
	"forecast-explorer/internal/source"
)

// Power converts a meter export to kW and charts one reading column.
func (a *App) Power(ctx context.Context, opts PowerOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	column := opts.Column
	if column == "" {
		column = a.Config.Power.Column
	}
	output := opts.OutputPath
	if output == "" {
		output = strings.TrimSuffix(opts.InputPath, filepath.Ext(opts.InputPath)) + ".png"
	}

	file, err := os.Open(opts.InputPath)
	if err != nil {
		return fmt.Errorf("open power csv: %w", err)
	}
	defer file.Close()

	readings, summary, err := power.ReadCSV(file, column, source.ParseTime)
	if err != nil {
		return fmt.Errorf("read %s: %w", opts.InputPath, err)
	}
	a.Logger.Info().
		Str("column", column).
		Int("rows", summary.Rows).
		Int("kept", summary.Kept).
		Int("bad_time", summary.BadTime).
		Int("unitless", summary.Unitless).
		Msg("power readings converted")

	title := fmt.Sprintf("%s time series (kW)", column)
	err = writeFile(output, func(w io.Writer) error {
		return render.PowerPNG(w, title, column, readings, a.chartOptions())
	})
	if err != nil {
		return err
	}

	a.Logger.Info().Str("output", output).Msg("power chart written")
	return nil
}
