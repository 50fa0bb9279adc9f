package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"forecast-explorer/internal/forecast"
	"forecast-explorer/internal/service"
	"forecast-explorer/internal/view"
)

// Show prints the most recent Step-1 points of one model.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	explorer, closeLoader, err := a.loadExplorer(ctx)
	if err != nil {
		return err
	}
	defer closeLoader()

	q := service.Query{ModelID: opts.ModelID}
	if opts.From != nil {
		q.Start = opts.From.UTC()
	}
	if opts.To != nil {
		q.End = opts.To.UTC()
	}

	d, err := explorer.Derive(ctx, "", q)
	if err != nil {
		return err
	}
	if len(d.Points) == 0 {
		fmt.Fprintf(os.Stdout, "no step-1 predictions for model %s\n", d.ModelID)
		return nil
	}

	return writeStep1Table(os.Stdout, d.Points, opts.Limit)
}

func writeStep1Table(out io.Writer, points []forecast.Step1Point, limit int) error {
	if limit > 0 && len(points) > limit {
		points = points[len(points)-limit:]
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Base time (UTC)\tStep 1\tActual\tHorizons\tMean\tStdDev\tMin\tMax")

	for _, p := range points {
		actual := "-"
		if p.HasActual {
			actual = fmt.Sprintf("%.3f", p.Actual)
		}
		spread := view.HorizonSpread(p)
		fmt.Fprintf(
			writer,
			"%s\t%.3f\t%s\t%d\t%.3f\t%.3f\t%.3f\t%.3f\n",
			p.BaseTime.UTC().Format(view.TimeLayout),
			p.Prediction,
			actual,
			spread.Horizons,
			spread.Mean,
			spread.StdDev,
			spread.Min,
			spread.Max,
		)
	}

	return writer.Flush()
}
