package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"forecast-explorer/internal/cache"
	"forecast-explorer/internal/config"
	"forecast-explorer/internal/metrics"
	"forecast-explorer/internal/render"
	"forecast-explorer/internal/scheduler"
	"forecast-explorer/internal/server"
	"forecast-explorer/internal/service"
	"forecast-explorer/internal/source"
	"forecast-explorer/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// newLoader opens the database only for postgres sources.
func (a *App) newLoader(ctx context.Context) (source.Loader, func(), error) {
	var forecasts storage.ForecastStore
	closer := func() {}

	if a.Config.Source.Kind == config.SourcePostgres {
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return nil, nil, err
		}
		if store != nil {
			forecasts = store
			closer = closeStore
		}
	}

	loader, err := source.New(a.Config.Source, forecasts, a.Logger)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return loader, closer, nil
}

func (a *App) newExplorer(loader source.Loader, figures *cache.FigureCache, m *metrics.Metrics) *service.Explorer {
	return service.New(loader, figures, m, service.Options{
		StepUnit:   a.Config.ResolveStepUnit(),
		SessionTTL: a.Config.Server.SessionTTL,
	}, a.Logger)
}

// loadExplorer builds an explorer with a loaded snapshot for one-shot commands.
func (a *App) loadExplorer(ctx context.Context) (*service.Explorer, func(), error) {
	loader, closeLoader, err := a.newLoader(ctx)
	if err != nil {
		return nil, nil, err
	}

	explorer := a.newExplorer(loader, nil, nil)
	if err := explorer.Reload(ctx, time.Now().UTC()); err != nil {
		closeLoader()
		return nil, nil, err
	}
	return explorer, closeLoader, nil
}

func (a *App) chartOptions() render.Options {
	return render.Options{
		Width:     a.Config.Chart.Width,
		Height:    a.Config.Chart.Height,
		MaxYTicks: a.Config.Power.MaxYTicks,
	}
}

// Serve runs the dashboard and the periodic snapshot reload until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loader, closeLoader, err := a.newLoader(ctx)
	if err != nil {
		return err
	}
	defer closeLoader()

	figures, err := cache.New(ctx, a.Config.Cache.URL, a.Config.Cache.TTL)
	if err != nil {
		return err
	}
	defer figures.Close()
	if !figures.Enabled() {
		a.Logger.Info().Msg("cache.url not configured; figure cache disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	explorer := a.newExplorer(loader, figures, m)

	sched, err := scheduler.New(scheduler.Options{
		Interval:     a.Config.Reload.Interval,
		AlignToStart: a.Config.Reload.AlignToBucket,
		StartupDelay: a.Config.Reload.StartupDelay,
		Immediate:    true,
	}, a.Logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              a.Config.Server.Addr,
		Handler:           server.New(explorer, reg, a.chartOptions(), a.Config.Server.Mode, a.Logger).Handler(),
		ReadHeaderTimeout: a.Config.Server.ReadHeaderTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- sched.Run(ctx, explorer.Reload)
	}()
	go func() {
		a.Logger.Info().Str("addr", srv.Addr).Msg("dashboard listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error().Err(err).Msg("dashboard terminated with error")
			cancel()
			return err
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	a.Logger.Info().Msg("dashboard stopped")
	return nil
}

// ExportOptions select the figure to export.
type ExportOptions struct {
	ModelID string
	From    *time.Time
	To      *time.Time
	Click   *time.Time
	PNGPath string
	CSVPath string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	ModelID string
	From    *time.Time
	To      *time.Time
	Limit   int
}

// ImportOptions configure the CSV to PostgreSQL import.
type ImportOptions struct {
	CSVPath string
	DryRun  bool
}

// PowerOptions configure the power reading converter.
type PowerOptions struct {
	InputPath  string
	OutputPath string
	Column     string
}
