// Package render draws view figures and power series as PNG charts.
package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"forecast-explorer/internal/power"
	"forecast-explorer/internal/view"
)

// ErrEmptyFigure is returned when there is nothing to draw.
var ErrEmptyFigure = errors.New("render: figure has no points")

// Options size the output image.
type Options struct {
	Width     int
	Height    int
	MaxYTicks int
}

func (o Options) size() (int, int) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = 1280
	}
	if h <= 0 {
		h = 720
	}
	return w, h
}

func styleFor(s view.Style) chart.Style {
	switch s {
	case view.StyleSelection:
		return chart.Style{
			StrokeColor:     chart.ColorRed,
			StrokeWidth:     2,
			StrokeDashArray: []float64{5.0, 5.0},
			DotColor:        chart.ColorRed,
			DotWidth:        3,
		}
	case view.StyleGroundTruth:
		return chart.Style{
			StrokeColor: chart.ColorBlack,
			StrokeWidth: 1,
		}
	default:
		return chart.Style{
			StrokeColor: chart.ColorBlue,
			StrokeWidth: 2,
			DotColor:    chart.ColorBlue,
			DotWidth:    3.5,
		}
	}
}

// FigurePNG renders every trace of fig onto one time axis.
func FigurePNG(w io.Writer, fig view.Figure, opts Options) error {
	series := make([]chart.Series, 0, len(fig.Traces))
	var xs []time.Time
	var ys []float64

	for _, tr := range fig.Traces {
		if len(tr.Points) == 0 {
			continue
		}
		x := make([]time.Time, len(tr.Points))
		y := make([]float64, len(tr.Points))
		for i, p := range tr.Points {
			x[i] = p.X
			y[i] = p.Y
		}
		xs = append(xs, x...)
		ys = append(ys, y...)
		series = append(series, chart.TimeSeries{
			Name:    tr.Label,
			Style:   styleFor(tr.Style),
			XValues: x,
			YValues: y,
		})
	}
	if len(series) == 0 {
		return ErrEmptyFigure
	}

	width, height := opts.size()
	graph := chart.Chart{
		Title:  fig.Title,
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:           "Time",
			ValueFormatter: chart.TimeValueFormatterWithFormat(view.TimeLayout),
			Range:          timeRange(xs),
		},
		YAxis: chart.YAxis{
			Name:           "Value",
			ValueFormatter: valueFormatter,
			Range:          valueRange(ys),
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render figure: %w", err)
	}
	return nil
}

// PowerPNG renders a kW series with at most opts.MaxYTicks labelled y ticks.
func PowerPNG(w io.Writer, title, column string, readings []power.Reading, opts Options) error {
	if len(readings) == 0 {
		return ErrEmptyFigure
	}

	x := make([]time.Time, len(readings))
	y := make([]float64, len(readings))
	for i, r := range readings {
		x[i] = r.Time
		y[i] = r.KW.InexactFloat64()
	}

	yr := valueRange(y)
	width, height := opts.size()
	graph := chart.Chart{
		Title:  title,
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:           "Time",
			ValueFormatter: chart.TimeValueFormatterWithFormat(view.TimeLayout),
			Range:          timeRange(x),
		},
		YAxis: chart.YAxis{
			Name:           "Power [kW]",
			ValueFormatter: valueFormatter,
			Range:          yr,
			Ticks:          Ticks(yr.Min, yr.Max, opts.MaxYTicks),
			GridMajorStyle: chart.Style{StrokeColor: drawing.ColorFromHex("dddddd"), StrokeWidth: 1},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    column,
				Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 1.5},
				XValues: x,
				YValues: y,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render power chart: %w", err)
	}
	return nil
}

func valueFormatter(v interface{}) string {
	return chart.FloatValueFormatterWithFormat(v, "%.3f")
}

// Ticks spreads at most n evenly spaced ticks over [min, max].
func Ticks(min, max float64, n int) []chart.Tick {
	if n < 2 {
		n = 2
	}
	step := (max - min) / float64(n-1)
	ticks := make([]chart.Tick, n)
	for i := 0; i < n; i++ {
		v := min + step*float64(i)
		ticks[i] = chart.Tick{Value: v, Label: fmt.Sprintf("%.2f", v)}
	}
	return ticks
}

func timeRange(xs []time.Time) *chart.ContinuousRange {
	lo, hi := xs[0], xs[0]
	for _, t := range xs[1:] {
		if t.Before(lo) {
			lo = t
		}
		if t.After(hi) {
			hi = t
		}
	}
	if !hi.After(lo) {
		lo = lo.Add(-time.Hour)
		hi = hi.Add(time.Hour)
	}
	return &chart.ContinuousRange{Min: float64(lo.UnixNano()), Max: float64(hi.UnixNano())}
}

func valueRange(ys []float64) *chart.ContinuousRange {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range ys {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return &chart.ContinuousRange{Min: 0, Max: 1}
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(hi)*0.05, 1)
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}
