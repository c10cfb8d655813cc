// Package main runs the news crawler service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/naijahub/newscrawler/internal/antiban"
	"github.com/naijahub/newscrawler/internal/api"
	"github.com/naijahub/newscrawler/internal/archive"
	"github.com/naijahub/newscrawler/internal/changes"
	"github.com/naijahub/newscrawler/internal/classify"
	"github.com/naijahub/newscrawler/internal/clock/system"
	"github.com/naijahub/newscrawler/internal/config"
	"github.com/naijahub/newscrawler/internal/discovery"
	"github.com/naijahub/newscrawler/internal/extract"
	collyfetcher "github.com/naijahub/newscrawler/internal/fetcher/collyhttp"
	headlessfetcher "github.com/naijahub/newscrawler/internal/fetcher/headless"
	"github.com/naijahub/newscrawler/internal/fetcher/render"
	"github.com/naijahub/newscrawler/internal/jobs"
	"github.com/naijahub/newscrawler/internal/logging"
	"github.com/naijahub/newscrawler/internal/metrics"
	"github.com/naijahub/newscrawler/internal/ratelimit"
	"github.com/naijahub/newscrawler/internal/scraper"
	"github.com/naijahub/newscrawler/internal/service"
	"github.com/naijahub/newscrawler/internal/storage/memory"
	"github.com/naijahub/newscrawler/internal/storage/postgres"
	"github.com/naijahub/newscrawler/internal/validate"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	oneShot := flag.Bool("oneshot", false, "Scrape all active websites once and exit")
	force := flag.Bool("force", false, "Force updates of recently checked articles (oneshot only)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(cfg, logger, *oneShot, *force); err != nil {
		logger.Fatal("service terminated", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger, oneShot, force bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()
	clock := system.New()

	gateway, cleanup, err := buildGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	banMgr := antiban.New(antiban.WithPinnedUserAgents(cfg.AntiBan.UserAgents))
	limiter := ratelimit.New(
		ratelimit.Config{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			MaxRetries:        cfg.Crawl.RetryAttempts,
			RetryDelay:        cfg.Crawl.RetryDelay,
			DomainLimits:      cfg.RateLimit.PerDomain,
		},
		clock, logger,
		ratelimit.WithDelayObserver(metrics.ObserveRateLimitDelay),
	)

	httpFetcher := collyfetcher.New(collyfetcher.Config{
		Timeout: cfg.Crawl.RequestTimeout,
	}, logger)

	var renderer scraper.Fetcher
	var renderDetector *render.Detector
	if cfg.Headless.Enabled {
		headless, err := headlessfetcher.New(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			NavigationTimeout: cfg.Headless.Timeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("init headless fetcher: %w", err)
		}
		defer headless.Close()
		renderer = headless
		renderDetector = render.Default()
	}

	var archiver scraper.Archiver
	if cfg.Archive.Enabled {
		if cfg.Archive.BaseDir == "" {
			logger.Warn("no archive directory configured, keeping pages in memory")
			archiver = memory.NewArchive()
		} else {
			store, err := archive.New(archive.Config{BaseDir: cfg.Archive.BaseDir})
			if err != nil {
				return fmt.Errorf("init archive: %w", err)
			}
			archiver = store
		}
	}

	validateCfg := validate.DefaultConfig()
	validateCfg.Enabled = cfg.Validation.Enabled
	validateCfg.MinQualityScore = cfg.Validation.MinScore

	tracker := jobs.NewTracker(gateway, clock, logger)
	svc := service.New(
		service.Config{
			MaxWorkers: cfg.Crawl.MaxConcurrentScrapers,
			Discovery: discovery.Config{
				SitemapOnly:         cfg.Crawl.SitemapOnly,
				EnableRSS:           cfg.Crawl.EnableRSSDiscovery,
				EnableCategoryPages: cfg.Crawl.EnableCategoryPages,
				MaxURLs:             cfg.Crawl.MaxURLsPerJob,
			},
		},
		service.Deps{
			Gateway:    gateway,
			Fetcher:    httpFetcher,
			Headless:   renderer,
			Archiver:   archiver,
			AntiBan:    banMgr,
			Limiter:    limiter,
			Extractor:  extract.New(nil, logger, extract.WithTierObserver(metrics.ObserveExtractionTier)),
			Render:     renderDetector,
			Classifier: classify.New(logger),
			Validator:  validate.New(validateCfg, clock),
			Detector: changes.New(changes.Config{
				MinUpdateInterval: cfg.Changes.MinUpdateInterval,
			}, clock, logger),
			Tracker: tracker,
			Clock:   clock,
			Logger:  logger,
		},
	)

	if oneShot {
		return runOnce(ctx, svc, logger, force)
	}
	return serve(ctx, cfg, svc, gateway, tracker, logger)
}

// buildGateway connects to Postgres when a DSN is configured and falls back
// to the in-memory store for local development.
func buildGateway(ctx context.Context, cfg *config.Config, logger *zap.Logger) (scraper.Gateway, func(), error) {
	if cfg.Database.DSN == "" {
		logger.Warn("no database DSN configured, using in-memory storage")
		return memory.New(), func() {}, nil
	}
	gw, err := postgres.New(ctx, postgres.Config{DSN: cfg.Database.DSN})
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := gw.InitSchema(ctx); err != nil {
		gw.Close()
		return nil, nil, fmt.Errorf("init schema: %w", err)
	}
	return gw, gw.Close, nil
}

func runOnce(ctx context.Context, svc *service.Service, logger *zap.Logger, force bool) error {
	summaries, err := svc.ScrapeAll(ctx, force)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summaries: %w", err)
	}
	fmt.Println(string(out))
	logger.Info("scrape finished", zap.Int("websites", len(summaries)))
	return nil
}

func serve(ctx context.Context, cfg *config.Config, svc *service.Service, gateway scraper.Gateway, tracker *jobs.Tracker, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Ops.Addr,
		Handler:           api.NewServer(svc, gateway, tracker, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Ops.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
