// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/modfed/fedhost/adapters/clock"
	"github.com/modfed/fedhost/adapters/idgen"
	"github.com/modfed/fedhost/adapters/memory"
	"github.com/modfed/fedhost/adapters/metrics"
	"github.com/modfed/fedhost/adapters/remote"
	"github.com/modfed/fedhost/adapters/sqlite"
	"github.com/modfed/fedhost/app"
	"github.com/modfed/fedhost/config"
	"github.com/modfed/fedhost/domain/entry"
	"github.com/modfed/fedhost/domain/manifest"
	"github.com/modfed/fedhost/domain/share"
	"github.com/modfed/fedhost/ports"
	"github.com/modfed/fedhost/web"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	Holder     *config.Holder // nil without hot reload
	Metrics    *metrics.Collector
	Cache      *sqlite.EntryCache // nil when disabled
	Client     *remote.Client
	Negotiator *share.Negotiator
	Containers *memory.ContainerRegistry
	Manifests  *app.ManifestService
	Loader     *app.LoaderService
	HTTPServer *http.Server
}

// New creates and initializes the application.
func New(cfg *config.Config) (*App, error) {
	logger := setupLogger(cfg)
	logger.Info().Str("host", cfg.Host.Name).Msg("initializing fedhost")

	a := &App{
		Logger: logger,
		Config: cfg,
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	clk := clock.Real{}

	if cfg.Cache.Path != "" {
		cache, err := sqlite.Open(cfg.Cache.Path, clk)
		if err != nil {
			return nil, fmt.Errorf("open entry cache: %w", err)
		}
		a.Cache = cache
		logger.Info().Str("path", cfg.Cache.Path).Msg("entry-artifact cache enabled")
	}
	a.Client = remote.NewClient(remote.ClientConfig{
		Timeout:  cfg.Fetch.Timeout,
		Headers:  cfg.Fetch.Headers,
		Cache:    cacheOrNil(a.Cache),
		CacheTTL: cfg.Cache.TTL,
		Clock:    clk,
		Metrics:  a.Metrics,
		Logger:   logger,
	})

	a.Negotiator = share.NewNegotiator(logger, clk)
	a.Containers = memory.NewContainerRegistry()

	// Host requirements register before any remote loads, so a
	// host-declared shared package wins negotiation by construction.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Fetch.Timeout)
	defer cancel()
	if err := a.Negotiator.Register(ctx, cfg.Host.Name, a.hostOffers()); err != nil {
		logger.Warn().Err(err).Msg("host shared registration incomplete")
	}

	initial, err := manifest.New("init", nil)
	if err != nil {
		return nil, err
	}
	holder := manifest.NewHolder(initial)

	a.Manifests = app.NewManifestService(app.ManifestDeps{
		Holder:   holder,
		Fetcher:  a.Client,
		Location: cfg.Manifest.URL,
		Static:   cfg.Manifest.Descriptors(),
		Logger:   logger,
	})
	if err := a.Manifests.Refresh(ctx); err != nil {
		// A remote manifest may be temporarily unreachable at boot; the
		// refresh endpoint and hot reload can recover later.
		logger.Warn().Err(err).Msg("initial manifest load failed")
	}

	a.Loader = app.NewLoaderService(app.LoaderDeps{
		Manifests:  holder,
		Entries:    a.Client,
		Registry:   a.Containers,
		Negotiator: a.Negotiator,
		Clock:      clk,
		IDGen:      idgen.UUID{},
		Logger:     logger,
	})

	var metricsWeb http.Handler
	if a.Metrics != nil {
		metricsWeb = promhttp.Handler()
		a.Metrics.RegisterGauges(metrics.StateFuncs{
			SharedInstances: func() float64 { return float64(len(a.Negotiator.Instances())) },
			SharedWarnings:  func() float64 { return float64(a.Negotiator.WarningCount()) },
			CachedModules:   func() float64 { return float64(a.Loader.CacheSize()) },
			ManifestRemotes: func() float64 { return float64(holder.Get().Len()) },
		})
	}

	handler := web.NewHandler(web.Deps{
		Loader:     a.Loader,
		Manifests:  a.Manifests,
		Negotiator: a.Negotiator,
		Metrics:    a.Metrics,
		MetricsWeb: metricsWeb,
		MetricsURL: cfg.Metrics.Path,
		HostName:   cfg.Host.Name,
		Logger:     logger,
		Clock:      clk,
	})

	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return a, nil
}

// NewWithHotReload creates the application with config file watching.
// Manifest-related changes apply on reload; server and host identity
// changes require a restart.
func NewWithHotReload(path string) (*App, error) {
	holder, err := config.NewHolder(path, setupLogger(config.Default()))
	if err != nil {
		return nil, err
	}

	a, err := New(holder.Get())
	if err != nil {
		holder.Stop()
		return nil, err
	}
	a.Holder = holder

	holder.OnChange(func(cfg *config.Config) {
		a.Manifests.SetStatic(cfg.Manifest.Descriptors())
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Fetch.Timeout)
		defer cancel()
		if err := a.Manifests.Refresh(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("manifest refresh after config reload failed")
			if a.Metrics != nil {
				a.Metrics.ManifestReloadErrors.Inc()
			}
			return
		}
		if a.Metrics != nil {
			a.Metrics.ManifestReloads.Inc()
		}
	})

	if err := holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watching unavailable")
	}
	holder.WatchSignals()

	return a, nil
}

// RegisterContainer registers an in-process (script-kind) container
// under its well-known name. Call before Run.
func (a *App) RegisterContainer(name string, c entry.Container) error {
	return a.Containers.Register(name, c)
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("http server listening")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("http shutdown failed")
	}

	if a.Holder != nil {
		a.Holder.Stop()
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("entry cache close failed")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// hostOffers converts the host's shared configuration to negotiation
// offers. Inline exports become the instance value directly; a location
// is fetched like any module payload.
func (a *App) hostOffers() []share.Offer {
	offers := make([]share.Offer, 0, len(a.Config.Host.Shared))
	for _, s := range a.Config.Host.Shared {
		offer := share.Offer{
			Requirement: share.Requirement{
				Package:         s.Package,
				RequiredVersion: s.RequiredVersion,
				Singleton:       s.Singleton,
				StrictVersion:   s.StrictVersion,
				Eager:           s.Eager,
			},
			Version: s.Version,
		}
		switch {
		case s.Exports != nil:
			exports := entry.Exports(s.Exports)
			offer.Provider = func(ctx context.Context) (any, error) {
				return exports, nil
			}
		case s.Location != "":
			location := s.Location
			hostName := a.Config.Host.Name
			offer.Provider = func(ctx context.Context) (any, error) {
				exports, _, err := a.Client.FetchModule(ctx, hostName, location)
				if err != nil {
					return nil, err
				}
				return exports, nil
			}
		}
		offers = append(offers, offer)
	}
	return offers
}

func cacheOrNil(c *sqlite.EntryCache) ports.EntryCache {
	if c == nil {
		return nil
	}
	return c
}

// setupLogger builds the application logger from config.
func setupLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Logging.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
