// Package collyhttp implements scraper.Fetcher using the gocolly collector.
// It is the first-choice fetcher; pages that need JavaScript fall through to
// the headless fetcher.
package collyhttp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/naijahub/newscrawler/internal/fetcher/page"
	"github.com/naijahub/newscrawler/internal/scraper"
)

// Config controls collector behavior.
type Config struct {
	Timeout       time.Duration
	RespectRobots bool
}

// Fetcher implements scraper.Fetcher over plain HTTP.
type Fetcher struct {
	cfg           Config
	logger        *zap.Logger
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	return &Fetcher{
		cfg:           cfg,
		logger:        logger,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET and enriches the response into the full
// result shape.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string, opts scraper.FetchOptions) (*scraper.FetchResult, error) {
	var (
		body       []byte
		statusCode int
		finalURL   = pageURL
		fetchErr   error
	)

	collector := f.baseCollector.Clone()
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	collector.SetRequestTimeout(f.cfg.Timeout)
	if ua := opts.Browser.UserAgent; ua != "" {
		collector.UserAgent = ua
	}

	collector.OnRequest(func(r *colly.Request) {
		for k, v := range opts.Headers {
			r.Headers.Set(k, v)
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = append([]byte(nil), r.Body...)
		finalURL = r.Request.URL.String()
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		fetchErr = err
	})

	start := time.Now()
	if err := f.visit(ctx, collector, pageURL); err != nil {
		return nil, err
	}
	if fetchErr != nil {
		return nil, scraper.NewScrapeError(scraper.ErrorTypeNetwork,
			fmt.Sprintf("fetch %s (status %d)", pageURL, statusCode), fetchErr)
	}

	analysis, err := page.Analyze(finalURL, string(body))
	if err != nil {
		return nil, fmt.Errorf("analyze page: %w", err)
	}

	duration := time.Since(start)
	f.logger.Debug("fetched page",
		zap.String("url", finalURL),
		zap.Int("status", statusCode),
		zap.Duration("duration", duration),
	)

	return &scraper.FetchResult{
		URL:          finalURL,
		StatusCode:   statusCode,
		HTML:         string(body),
		CleanedHTML:  analysis.CleanedHTML,
		Markdown:     analysis.Markdown,
		Links:        analysis.Links,
		Media:        analysis.Media,
		Metadata:     analysis.Metadata,
		Success:      statusCode >= 200 && statusCode < 300,
		UsedHeadless: false,
		Duration:     duration,
	}, nil
}

func (f *Fetcher) visit(ctx context.Context, collector *colly.Collector, pageURL string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(pageURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return scraper.NewScrapeError(scraper.ErrorTypeNetwork,
				fmt.Sprintf("visit %s", pageURL), err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
