package view

import (
	"fmt"
	"strings"
	"time"

	"forecast-explorer/internal/forecast"
)

// Style tells a renderer how to draw a trace.
type Style string

const (
	StylePrimary     Style = "primary"
	StyleSelection   Style = "selection"
	StyleGroundTruth Style = "ground_truth"
)

// TimeLayout formats timestamps shown to users.
const TimeLayout = "2006-01-02 15:04"

// Point is one (x, y) pair with optional hover text.
type Point struct {
	X          time.Time `json:"x"`
	Y          float64   `json:"y"`
	Annotation string    `json:"annotation,omitempty"`
}

// Trace is an ordered series ready to hand to a renderer.
type Trace struct {
	Label  string  `json:"label"`
	Style  Style   `json:"style"`
	Points []Point `json:"points"`
}

// Figure is everything one dashboard view needs.
type Figure struct {
	Title   string  `json:"title"`
	Traces  []Trace `json:"traces"`
	Message string  `json:"message"`
}

// Selection carries the outcome of a click on a base time.
type Selection struct {
	Origin     time.Time
	Trajectory forecast.Trajectory
	// Found is false when nothing was issued at Origin.
	Found bool
}

// Input is the upstream derivation result.
type Input struct {
	ModelID   string
	Points    []forecast.Step1Point
	Selection *Selection
}

// Build maps aggregated points and an optional selection onto traces.
func Build(in Input) Figure {
	fig := Figure{
		Title:   fmt.Sprintf("Model %s: interactive predictions", in.ModelID),
		Traces:  make([]Trace, 0, 3),
		Message: "Click a prediction to see its future steps.",
	}

	primary := Trace{
		Label:  fmt.Sprintf("%s (step 1)", in.ModelID),
		Style:  StylePrimary,
		Points: make([]Point, 0, len(in.Points)),
	}
	truth := Trace{Label: "Actual", Style: StyleGroundTruth, Points: make([]Point, 0)}
	for _, p := range in.Points {
		primary.Points = append(primary.Points, Point{
			X:          p.BaseTime,
			Y:          p.Prediction,
			Annotation: HorizonText(p.Horizons),
		})
		if p.HasActual {
			truth.Points = append(truth.Points, Point{X: p.BaseTime, Y: p.Actual})
		}
	}
	fig.Traces = append(fig.Traces, primary)
	if len(truth.Points) > 0 {
		fig.Traces = append(fig.Traces, truth)
	}

	if in.Selection == nil {
		return fig
	}

	sel := in.Selection
	origin := sel.Origin.UTC().Format(TimeLayout)
	switch {
	case !sel.Found:
		fig.Message = fmt.Sprintf("No forecast issued at %s.", origin)
	case sel.Trajectory.Singleton():
		fig.Message = fmt.Sprintf("No additional steps for %s.", origin)
	default:
		overlay := Trace{
			Label:  fmt.Sprintf("Trajectory from %s", origin),
			Style:  StyleSelection,
			Points: make([]Point, len(sel.Trajectory.Points)),
		}
		for i, tp := range sel.Trajectory.Points {
			overlay.Points[i] = Point{
				X:          tp.Time,
				Y:          tp.Prediction,
				Annotation: fmt.Sprintf("Step %d", tp.Step),
			}
		}
		fig.Traces = append(fig.Traces, overlay)
		fig.Message = fmt.Sprintf("Showing multi-step forecast from %s.", origin)
	}
	return fig
}

// HorizonText renders a horizon summary as hover text.
func HorizonText(horizons []forecast.Horizon) string {
	var b strings.Builder
	b.WriteString("Multi-step predictions:")
	for _, h := range horizons {
		fmt.Fprintf(&b, "\nStep %d -> %.3f", h.Step, h.Prediction)
	}
	return b.String()
}

// Trace returns the first trace with the given style.
func (f Figure) Trace(style Style) (Trace, bool) {
	for _, t := range f.Traces {
		if t.Style == style {
			return t, true
		}
	}
	return Trace{}, false
}
