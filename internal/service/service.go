package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"forecast-explorer/internal/cache"
	"forecast-explorer/internal/forecast"
	"forecast-explorer/internal/metrics"
	"forecast-explorer/internal/source"
	"forecast-explorer/internal/view"
)

var (
	// ErrSuperseded is returned when a newer input for the same session arrived
	// before this derivation could complete.
	ErrSuperseded = errors.New("service: derivation superseded by newer input")
	// ErrNoSnapshot is returned before the first successful reload.
	ErrNoSnapshot = errors.New("service: no snapshot loaded")
)

// Query is one dashboard interaction. Zero values fall back to the first
// model and the full time span of the snapshot.
type Query struct {
	ModelID string
	Start   time.Time
	End     time.Time
	Click   *time.Time
}

// Derivation is the complete output of one interaction.
type Derivation struct {
	ModelID     string                `json:"model_id"`
	Start       time.Time             `json:"start"`
	End         time.Time             `json:"end"`
	Points      []forecast.Step1Point `json:"points"`
	Selection   *view.Selection       `json:"selection,omitempty"`
	Figure      view.Figure           `json:"figure"`
	Fingerprint uint64                `json:"fingerprint"`
}

// Options tune the explorer.
type Options struct {
	StepUnit   time.Duration
	SessionTTL time.Duration
}

type session struct {
	mu       sync.Mutex
	latest   atomic.Uint64
	lastSeen atomic.Int64
}

// Explorer serves derivations over the current record snapshot.
type Explorer struct {
	loader  source.Loader
	cache   *cache.FigureCache
	metrics *metrics.Metrics
	opts    Options
	logger  zerolog.Logger

	snapshot atomic.Pointer[forecast.Store]

	sessionsMu sync.Mutex
	sessions   map[string]*session

	now func() time.Time
}

// New constructs an Explorer. The cache and metrics may be nil.
func New(loader source.Loader, figures *cache.FigureCache, m *metrics.Metrics, opts Options, logger zerolog.Logger) *Explorer {
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	if opts.StepUnit <= 0 {
		opts.StepUnit = forecast.DefaultStepUnit
	}
	return &Explorer{
		loader:   loader,
		cache:    figures,
		metrics:  m,
		opts:     opts,
		logger:   logger.With().Str("component", "explorer").Logger(),
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// Snapshot returns the active record store, or nil before the first reload.
func (e *Explorer) Snapshot() *forecast.Store {
	return e.snapshot.Load()
}

// Reload loads the source into a fresh snapshot and swaps it in. On failure
// the previous snapshot stays active.
func (e *Explorer) Reload(ctx context.Context, bucket time.Time) error {
	defer e.pruneSessions()

	records, err := e.loader.Load(ctx)
	if err != nil {
		e.metrics.Reloads.WithLabelValues("error").Inc()
		return fmt.Errorf("reload snapshot: %w", err)
	}

	store := forecast.NewStore(records)
	prev := e.snapshot.Swap(store)

	e.metrics.Reloads.WithLabelValues("ok").Inc()
	e.metrics.SnapshotRecords.Set(float64(store.Len()))

	event := e.logger.Info()
	if prev != nil && prev.Fingerprint() == store.Fingerprint() {
		event = e.logger.Debug()
	}
	event.Time("bucket", bucket).
		Int("records", store.Len()).
		Int("dropped", store.Dropped()).
		Strs("models", store.Models()).
		Msg("snapshot loaded")
	return nil
}

// Derive runs filter, aggregate and the optional trajectory selection for q.
// Calls sharing a non-empty sessionID are serialised; a call that is no longer
// the session's latest input returns ErrSuperseded.
func (e *Explorer) Derive(ctx context.Context, sessionID string, q Query) (Derivation, error) {
	var sess *session
	var gen uint64
	if sessionID != "" {
		sess = e.session(sessionID)
		gen = sess.latest.Add(1)
		sess.mu.Lock()
		defer sess.mu.Unlock()
		if sess.latest.Load() != gen {
			e.metrics.Derivations.WithLabelValues("superseded").Inc()
			return Derivation{}, ErrSuperseded
		}
	}

	if err := ctx.Err(); err != nil {
		return Derivation{}, err
	}

	store := e.snapshot.Load()
	if store == nil {
		e.metrics.Derivations.WithLabelValues("no_snapshot").Inc()
		return Derivation{}, ErrNoSnapshot
	}

	q = e.resolve(store, q)
	key := cacheKey(store.Fingerprint(), q)

	var d Derivation
	if err := e.cache.Get(ctx, key, &d); err == nil {
		e.metrics.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		if e.cache.Enabled() {
			e.metrics.CacheLookups.WithLabelValues("miss").Inc()
			if !errors.Is(err, cache.ErrMiss) {
				e.logger.Warn().Err(err).Msg("figure cache read failed")
			}
		}
		d = e.derive(store, q)
		if err := e.cache.Set(ctx, key, d); err != nil {
			e.logger.Warn().Err(err).Msg("figure cache write failed")
		}
	}

	if sess != nil && sess.latest.Load() != gen {
		e.metrics.Derivations.WithLabelValues("superseded").Inc()
		return Derivation{}, ErrSuperseded
	}
	e.metrics.Derivations.WithLabelValues("ok").Inc()
	return d, nil
}

func (e *Explorer) derive(store *forecast.Store, q Query) Derivation {
	start := e.now()
	defer func() { e.metrics.DerivationDuration.Observe(e.now().Sub(start).Seconds()) }()

	subset := store.Filter(q.ModelID, q.Start, q.End)
	points := forecast.Aggregate(subset)

	var sel *view.Selection
	if q.Click != nil {
		traj, ok := forecast.SelectTrajectory(subset, q.ModelID, *q.Click, e.opts.StepUnit)
		sel = &view.Selection{Origin: q.Click.UTC(), Trajectory: traj, Found: ok}
	}

	return Derivation{
		ModelID:     q.ModelID,
		Start:       q.Start,
		End:         q.End,
		Points:      points,
		Selection:   sel,
		Figure:      view.Build(view.Input{ModelID: q.ModelID, Points: points, Selection: sel}),
		Fingerprint: store.Fingerprint(),
	}
}

func (e *Explorer) resolve(store *forecast.Store, q Query) Query {
	if q.ModelID == "" {
		if models := store.Models(); len(models) > 0 {
			q.ModelID = models[0]
		}
	}
	first, last, ok := store.Bounds()
	if q.Start.IsZero() && ok {
		q.Start = first
	}
	if q.End.IsZero() && ok {
		q.End = last
	}
	q.Start = q.Start.UTC()
	q.End = q.End.UTC()
	return q
}

func cacheKey(fp uint64, q Query) string {
	click := "-"
	if q.Click != nil {
		click = fmt.Sprint(q.Click.UnixNano())
	}
	return fmt.Sprintf("fcx:derivation:%016x:%s:%d:%d:%s",
		fp, url.QueryEscape(q.ModelID), q.Start.UnixNano(), q.End.UnixNano(), click)
}

func (e *Explorer) session(id string) *session {
	e.sessionsMu.Lock()
	defer e.sessionsMu.Unlock()

	s, ok := e.sessions[id]
	if !ok {
		s = &session{}
		e.sessions[id] = s
		e.metrics.Sessions.Set(float64(len(e.sessions)))
	}
	s.lastSeen.Store(e.now().UnixNano())
	return s
}

func (e *Explorer) pruneSessions() {
	if e.opts.SessionTTL <= 0 {
		return
	}
	cutoff := e.now().Add(-e.opts.SessionTTL).UnixNano()

	e.sessionsMu.Lock()
	defer e.sessionsMu.Unlock()
	for id, s := range e.sessions {
		if s.lastSeen.Load() < cutoff {
			delete(e.sessions, id)
		}
	}
	e.metrics.Sessions.Set(float64(len(e.sessions)))
}
