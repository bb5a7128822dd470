// Package app builds the long-lived services of the relay from configuration
// and owns their shutdown.
package app

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/JakeFAU/ogrelay/internal/api"
	"github.com/JakeFAU/ogrelay/internal/config"
	autofetcher "github.com/JakeFAU/ogrelay/internal/fetcher/auto"
	collyfetcher "github.com/JakeFAU/ogrelay/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/ogrelay/internal/fetcher/headless"
	"github.com/JakeFAU/ogrelay/internal/headless/detector"
	"github.com/JakeFAU/ogrelay/internal/id/uuid"
	"github.com/JakeFAU/ogrelay/internal/logging"
	"github.com/JakeFAU/ogrelay/internal/relay"
)

// PageFetcher is a relay.Fetcher holding resources that must be released.
type PageFetcher interface {
	relay.Fetcher
	Close()
}

// newHeadless is swapped in tests so no browser is started.
var newHeadless = func(cfg headlessfetcher.Config) (PageFetcher, error) {
	fetcher, err := headlessfetcher.NewChromedp(cfg)
	if err != nil {
		return nil, fmt.Errorf("init chromedp: %w", err)
	}
	return fetcher, nil
}

// App holds the services shared by the CLI commands.
type App struct {
	Config config.Config
	Logger *zap.Logger
	Relay  *relay.Relay
	Server *api.Server

	closers []func()
}

// Option customizes New.
type Option func(*options)

type options struct {
	logger *zap.Logger
	api    relay.Fetcher
	pages  relay.Fetcher
}

// WithLogger uses logger instead of building one from config.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithFetchers overrides the upstream fetchers. A nil pages fetcher makes the
// page strategies share api.
func WithFetchers(api, pages relay.Fetcher) Option {
	return func(o *options) {
		o.api = api
		o.pages = pages
	}
}

// New wires fetchers, the relay, and the HTTP server from cfg.
func New(cfg config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Logger: o.logger}
	if a.Logger == nil {
		logger, err := logging.New(logging.Options{
			Development: cfg.Logging.Development,
			Level:       cfg.Logging.Level,
		})
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		a.Logger = logger
		a.closers = append(a.closers, func() {
			if err := logger.Sync(); err != nil {
				fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", err)
			}
		})
	}

	apiFetcher := o.api
	pages := o.pages
	if apiFetcher == nil {
		apiFetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent:   cfg.Relay.OEmbedUserAgent,
			Timeout:     cfg.UpstreamTimeout(),
			MaxBodySize: cfg.HTTP.MaxBodyBytes,
		})
		if pages == nil {
			pages = a.pageFetcher(apiFetcher)
		}
	}

	a.Relay = relay.New(cfg.RelayConfig(), apiFetcher, pages, a.Logger.Named("relay"))
	a.Server = api.NewServer(a.Relay, uuid.New(), cfg, a.Logger.Named("api"))
	return a, nil
}

func (a *App) pageFetcher(direct relay.Fetcher) relay.Fetcher {
	mode := a.Config.Fetcher.Mode
	if mode != config.FetcherModeHeadless && mode != config.FetcherModeAuto {
		return direct
	}
	browser, err := newHeadless(headlessfetcher.Config{
		MaxParallel:       a.Config.Headless.MaxParallel,
		UserAgent:         a.Config.Relay.PageUserAgent,
		NavigationTimeout: a.Config.NavTimeout(),
		MetadataWait:      a.Config.OGWait(),
	})
	if err != nil {
		a.Logger.Warn("headless fetcher init failed, using http fetcher", zap.Error(err))
		return direct
	}
	a.Logger.Info("headless fetcher enabled",
		zap.String("mode", mode),
		zap.Int("max_parallel", a.Config.Headless.MaxParallel),
	)
	// Registered ahead of the logger sync so shutdown logs still flush.
	a.closers = append([]func(){browser.Close}, a.closers...)

	if mode == config.FetcherModeAuto {
		heuristic := detector.NewHeuristic(a.Config.Headless.PromotionThresh)
		return autofetcher.New(direct, browser, heuristic, a.Logger.Named("promote"))
	}
	return browser
}

// Close releases the headless browser and flushes the logger.
func (a *App) Close() {
	a.Logger.Info("shutting down application services")
	for _, closeFn := range a.closers {
		closeFn()
	}
}
