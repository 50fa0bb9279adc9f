package app

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"forecast-explorer/internal/render"
	"forecast-explorer/internal/service"
	"forecast-explorer/internal/view"
)

// Export derives one dashboard figure and writes it as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	explorer, closeLoader, err := a.loadExplorer(ctx)
	if err != nil {
		return err
	}
	defer closeLoader()

	d, err := explorer.Derive(ctx, "", exportQuery(opts))
	if err != nil {
		return err
	}
	a.Logger.Info().
		Str("model", d.ModelID).
		Time("start", d.Start).
		Time("end", d.End).
		Int("points", len(d.Points)).
		Str("message", d.Figure.Message).
		Msg("exporting figure")

	if opts.CSVPath != "" {
		if err := writeFile(opts.CSVPath, func(w io.Writer) error { return writeFigureCSV(w, d.Figure) }); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		err := writeFile(opts.PNGPath, func(w io.Writer) error { return render.FigurePNG(w, d.Figure, a.chartOptions()) })
		if errors.Is(err, render.ErrEmptyFigure) {
			a.Logger.Info().Msg("no points in export window; png skipped")
			return nil
		}
		if err != nil {
			return err
		}
	}

	return nil
}

func exportQuery(opts ExportOptions) service.Query {
	q := service.Query{ModelID: opts.ModelID, Click: opts.Click}
	if opts.From != nil {
		q.Start = opts.From.UTC()
	}
	if opts.To != nil {
		q.End = opts.To.UTC()
	}
	return q
}

// writeFigureCSV flattens every trace into trace,style,x,y,annotation rows.
func writeFigureCSV(w io.Writer, fig view.Figure) error {
	writer := csv.NewWriter(w)

	header := []string{"trace", "style", "x", "y", "annotation"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, tr := range fig.Traces {
		for _, p := range tr.Points {
			record := []string{
				tr.Label,
				string(tr.Style),
				p.X.UTC().Format(time.RFC3339),
				strconv.FormatFloat(p.Y, 'f', -1, 64),
				p.Annotation,
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

// writeFile creates path and its parent directories, then hands it to fill.
// A file that fill rejects is removed.
func writeFile(path string, fill func(io.Writer) error) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := fill(file); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	return file.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
