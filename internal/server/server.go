package server

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"forecast-explorer/internal/render"
	"forecast-explorer/internal/service"
	"forecast-explorer/internal/source"
	"forecast-explorer/internal/view"
)

// SessionCookie scopes derivation ordering to one browser.
const SessionCookie = "fcx_session"

const inputLayout = "2006-01-02T15:04:05"

// Server exposes the explorer over HTTP.
type Server struct {
	explorer *service.Explorer
	chart    render.Options
	logger   zerolog.Logger
	engine   *gin.Engine
}

// New wires the routes. gatherer backs /metrics.
func New(explorer *service.Explorer, gatherer prometheus.Gatherer, chart render.Options, mode string, logger zerolog.Logger) *Server {
	if mode != "" {
		gin.SetMode(mode)
	}

	s := &Server{
		explorer: explorer,
		chart:    chart,
		logger:   logger.With().Str("component", "http").Logger(),
		engine:   gin.New(),
	}

	s.engine.Use(gin.Recovery(), s.accessLog())
	s.engine.SetHTMLTemplate(template.Must(template.New("index").Parse(indexHTML)))

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	s.engine.GET("/", s.index)
	s.engine.GET("/chart.png", s.chartPNG)
	api := s.engine.Group("/api")
	api.GET("/models", s.models)
	api.GET("/figure", s.figure)

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request served")
	}
}

func sessionID(c *gin.Context) string {
	if id, err := c.Cookie(SessionCookie); err == nil && id != "" {
		return id
	}
	id := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, id, 0, "/", "", false, true)
	return id
}

func parseQuery(c *gin.Context) (service.Query, error) {
	q := service.Query{ModelID: c.Query("model")}

	parse := func(name string) (time.Time, error) {
		raw := c.Query(name)
		if raw == "" {
			return time.Time{}, nil
		}
		t, err := source.ParseTime(raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid %s: %w", name, err)
		}
		return t, nil
	}

	var err error
	if q.Start, err = parse("start"); err != nil {
		return q, err
	}
	if q.End, err = parse("end"); err != nil {
		return q, err
	}
	click, err := parse("click")
	if err != nil {
		return q, err
	}
	if !click.IsZero() {
		q.Click = &click
	}
	return q, nil
}

func (s *Server) derive(c *gin.Context) (service.Derivation, bool) {
	q, err := parseQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return service.Derivation{}, false
	}

	d, err := s.explorer.Derive(c.Request.Context(), sessionID(c), q)
	switch {
	case err == nil:
		return d, true
	case errors.Is(err, service.ErrSuperseded):
		c.JSON(http.StatusConflict, gin.H{"error": "superseded by a newer request"})
	case errors.Is(err, service.ErrNoSnapshot):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "forecast data not loaded yet"})
	default:
		s.logger.Error().Err(err).Msg("derivation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "derivation failed"})
	}
	return service.Derivation{}, false
}

func (s *Server) models(c *gin.Context) {
	store := s.explorer.Snapshot()
	if store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "forecast data not loaded yet"})
		return
	}
	resp := gin.H{"models": store.Models(), "records": store.Len()}
	if first, last, ok := store.Bounds(); ok {
		resp["start"] = first
		resp["end"] = last
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) figure(c *gin.Context) {
	d, ok := s.derive(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, d.Figure)
}

func (s *Server) chartPNG(c *gin.Context) {
	d, ok := s.derive(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := render.FigurePNG(&buf, d.Figure, s.chart); err != nil {
		if errors.Is(err, render.ErrEmptyFigure) {
			c.Status(http.StatusNoContent)
			return
		}
		s.logger.Error().Err(err).Msg("chart render failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "chart render failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

type pointRow struct {
	BaseTime   string
	Prediction string
	Horizons   int
	ClickURL   string
	Selected   bool
}

type indexData struct {
	Title    string
	Models   []string
	Model    string
	Start    string
	End      string
	ChartURL string
	Message  string
	Points   []pointRow
}

func (s *Server) index(c *gin.Context) {
	d, ok := s.derive(c)
	if !ok {
		return
	}

	base := url.Values{}
	base.Set("model", d.ModelID)
	base.Set("start", d.Start.Format(time.RFC3339))
	base.Set("end", d.End.Format(time.RFC3339))

	chartValues := cloneValues(base)
	if d.Selection != nil {
		chartValues.Set("click", d.Selection.Origin.Format(time.RFC3339))
	}

	data := indexData{
		Title:    d.Figure.Title,
		Models:   s.explorer.Snapshot().Models(),
		Model:    d.ModelID,
		Start:    d.Start.Format(inputLayout),
		End:      d.End.Format(inputLayout),
		ChartURL: "/chart.png?" + chartValues.Encode(),
		Message:  d.Figure.Message,
		Points:   make([]pointRow, len(d.Points)),
	}
	for i, p := range d.Points {
		v := cloneValues(base)
		v.Set("click", p.BaseTime.Format(time.RFC3339))
		data.Points[i] = pointRow{
			BaseTime:   p.BaseTime.Format(view.TimeLayout),
			Prediction: fmt.Sprintf("%.3f", p.Prediction),
			Horizons:   len(p.Horizons),
			ClickURL:   "/?" + v.Encode(),
			Selected:   d.Selection != nil && d.Selection.Origin.Equal(p.BaseTime),
		}
	}

	c.HTML(http.StatusOK, "index", data)
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Forecast explorer</title>
<style>
body { font-family: sans-serif; margin: 20px; text-align: center; }
table { margin: 20px auto; border-collapse: collapse; }
td, th { padding: 2px 10px; border-bottom: 1px solid #ddd; }
tr.selected { background: #fde8e8; }
.message { font-style: italic; margin-top: 10px; }
img { max-width: 100%; }
</style>
</head>
<body>
<h2>{{.Title}}</h2>
<form method="get" action="/">
  <label>Model
    <select name="model">
    {{range .Models}}<option value="{{.}}"{{if eq . $.Model}} selected{{end}}>{{.}}</option>{{end}}
    </select>
  </label>
  <label>From <input type="datetime-local" step="1" name="start" value="{{.Start}}"></label>
  <label>To <input type="datetime-local" step="1" name="end" value="{{.End}}"></label>
  <button type="submit">Show</button>
</form>
<img src="{{.ChartURL}}" alt="predictions chart">
<div class="message">{{.Message}}</div>
<table>
<tr><th>Base time</th><th>Step 1 prediction</th><th>Horizons</th></tr>
{{range .Points}}<tr{{if .Selected}} class="selected"{{end}}><td><a href="{{.ClickURL}}">{{.BaseTime}}</a></td><td>{{.Prediction}}</td><td>{{.Horizons}}</td></tr>
{{end}}
</table>
</body>
</html>
`
