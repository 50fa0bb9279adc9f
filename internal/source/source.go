package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"forecast-explorer/internal/config"
	"forecast-explorer/internal/forecast"
	"forecast-explorer/internal/storage"
)

// ErrUnknownKind is returned for an unsupported source.kind.
var ErrUnknownKind = errors.New("source: unknown kind")

// Loader retrieves the full forecast table from an external source.
type Loader interface {
	Load(ctx context.Context) ([]forecast.Record, error)
}

// New selects a loader for the configured source kind. store may be nil for csv sources.
func New(cfg config.SourceConfig, store storage.ForecastStore, logger zerolog.Logger) (Loader, error) {
	switch cfg.Kind {
	case config.SourceCSV:
		return NewCSV(cfg.CSVPath, logger), nil
	case config.SourcePostgres:
		if store == nil {
			return nil, fmt.Errorf("postgres source: %w", storage.ErrNotConfigured)
		}
		return NewPostgres(store, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

// Postgres loads records from the forecasts table.
type Postgres struct {
	store  storage.ForecastStore
	logger zerolog.Logger
}

// NewPostgres constructs a database-backed loader.
func NewPostgres(store storage.ForecastStore, logger zerolog.Logger) *Postgres {
	return &Postgres{store: store, logger: logger.With().Str("component", "postgres_source").Logger()}
}

// Load reads every stored forecast.
func (p *Postgres) Load(ctx context.Context) ([]forecast.Record, error) {
	records, err := p.store.ListForecasts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load forecasts: %w", err)
	}
	p.logger.Debug().Int("records", len(records)).Msg("forecasts loaded")
	return records, nil
}

var (
	_ Loader = (*CSV)(nil)
	_ Loader = (*Postgres)(nil)
)
