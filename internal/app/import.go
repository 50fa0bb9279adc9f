package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"forecast-explorer/internal/forecast"
	"forecast-explorer/internal/source"
	"forecast-explorer/internal/storage"
)

type importTarget interface {
	storage.ForecastStore
	storage.AdvisoryLocker
}

// Import loads a predictions CSV into the forecasts table.
func (a *App) Import(ctx context.Context, opts ImportOptions) error {
	path := opts.CSVPath
	if path == "" {
		path = a.Config.Source.CSVPath
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open predictions csv: %w", err)
	}
	defer file.Close()

	records, stats, err := source.ReadCSV(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	// Same dedup and step rules as the dashboard snapshot.
	snapshot := forecast.NewStore(records)
	a.Logger.Info().
		Str("path", path).
		Int("rows", stats.Rows).
		Int("kept", snapshot.Len()).
		Int("bad_time", stats.BadTime).
		Int("bad_step", stats.BadStep).
		Int("bad_number", stats.BadNumber).
		Int("dropped", snapshot.Dropped()).
		Msg("predictions parsed")

	if opts.DryRun {
		a.Logger.Warn().Msg("import dry-run: nothing written to the database")
		return nil
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn not configured; cannot import")
	}
	defer closeStore()

	return a.importRecords(ctx, store, snapshot.Records())
}

func (a *App) importRecords(ctx context.Context, target importTarget, records []forecast.Record) error {
	unlock, acquired, err := target.TryAdvisoryLock(ctx, a.Config.Database.ImportLockKey)
	if err != nil {
		return err
	}
	if !acquired {
		return errors.New("another import holds the advisory lock")
	}
	defer unlock()

	if err := target.EnsureSchema(ctx); err != nil {
		return err
	}

	written, err := target.UpsertForecasts(ctx, records, a.Config.Database.ImportBatchSize)
	if err != nil {
		a.Logger.Error().Err(err).Int("written", written).Msg("import aborted")
		return err
	}

	total, err := target.CountForecasts(ctx)
	if err != nil {
		return err
	}
	a.Logger.Info().Int("written", written).Int64("total", total).Msg("import complete")
	return nil
}
