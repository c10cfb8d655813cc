// Package service orchestrates crawl runs: discovery, fetching, extraction,
// classification, validation, change detection and storage, per website.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/naijahub/newscrawler/internal/antiban"
	"github.com/naijahub/newscrawler/internal/archive"
	"github.com/naijahub/newscrawler/internal/changes"
	"github.com/naijahub/newscrawler/internal/classify"
	"github.com/naijahub/newscrawler/internal/discovery"
	"github.com/naijahub/newscrawler/internal/extract"
	"github.com/naijahub/newscrawler/internal/fetcher/render"
	"github.com/naijahub/newscrawler/internal/jobs"
	"github.com/naijahub/newscrawler/internal/metrics"
	"github.com/naijahub/newscrawler/internal/ratelimit"
	"github.com/naijahub/newscrawler/internal/scraper"
	"github.com/naijahub/newscrawler/internal/validate"
)

// Config controls the per-job worker pool and discovery behavior.
type Config struct {
	MaxWorkers int
	Discovery  discovery.Config
}

// Deps are the collaborators a Service orchestrates.
type Deps struct {
	Gateway    scraper.Gateway
	Fetcher    scraper.Fetcher
	Headless   scraper.Fetcher
	Archiver   scraper.Archiver
	AntiBan    *antiban.Manager
	Limiter    *ratelimit.Limiter
	Extractor  *extract.Extractor
	Render     *render.Detector
	Classifier *classify.Classifier
	Validator  *validate.Validator
	Detector   *changes.Detector
	Tracker    *jobs.Tracker
	Clock      scraper.Clock
	Logger     *zap.Logger
}

// Service runs scraping jobs against registered websites.
type Service struct {
	cfg  Config
	deps Deps
	disc *discovery.Discoverer
}

// New creates a Service. It initializes the metrics collectors so every run
// records its outcomes.
func New(cfg Config, deps Deps) *Service {
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 5
	}
	metrics.Init()

	limited := &limitedFetcher{inner: deps.Fetcher, limiter: deps.Limiter}
	return &Service{
		cfg:  cfg,
		deps: deps,
		disc: discovery.New(limited, deps.AntiBan.FetchOptions, cfg.Discovery, deps.Logger),
	}
}

// limitedFetcher applies the rate limiter to every fetch, including the ones
// discovery makes on its own.
type limitedFetcher struct {
	inner   scraper.Fetcher
	limiter *ratelimit.Limiter
}

func (f *limitedFetcher) Fetch(ctx context.Context, pageURL string, opts scraper.FetchOptions) (*scraper.FetchResult, error) {
	return ratelimit.Execute(ctx, f.limiter, pageURL, func(ctx context.Context) (*scraper.FetchResult, error) {
		return f.inner.Fetch(ctx, pageURL, opts)
	})
}

// ScrapeAll runs one scraping job per active website. A failing website does
// not stop the others; its summary carries the failure message.
func (s *Service) ScrapeAll(ctx context.Context, force bool) ([]scraper.JobSummary, error) {
	sites, err := s.deps.Gateway.ListActiveWebsites(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active websites: %w", err)
	}

	summaries := make([]scraper.JobSummary, 0, len(sites))
	for _, site := range sites {
		summary, err := s.ScrapeWebsite(ctx, site.ID, force)
		if err != nil {
			s.deps.Logger.Error("website scrape failed",
				zap.Int64("website_id", site.ID),
				zap.String("website", site.Name),
				zap.Error(err),
			)
			summaries = append(summaries, scraper.JobSummary{
				WebsiteID: site.ID,
				Status:    scraper.JobStatusFailed,
				Message:   err.Error(),
			})
			continue
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}

// ScrapeWebsite runs one scraping job for one website: discover candidate
// URLs, then fetch, extract, classify, validate and store each one through a
// bounded worker pool.
func (s *Service) ScrapeWebsite(ctx context.Context, websiteID int64, force bool) (*scraper.JobSummary, error) {
	site, err := s.deps.Gateway.GetWebsiteByID(ctx, websiteID)
	if err != nil {
		if errors.Is(err, scraper.ErrNotFound) {
			return nil, scraper.NewScrapeError(scraper.ErrorTypeValidation,
				fmt.Sprintf("website %d not found", websiteID), err)
		}
		return nil, fmt.Errorf("load website %d: %w", websiteID, err)
	}

	runID := uuid.NewString()
	job, err := s.deps.Tracker.Begin(ctx, websiteID, s.jobConfig(runID, force))
	if err != nil {
		return nil, err
	}

	discovered := s.disc.Discover(ctx, *site)
	for source, n := range discovered.BySource {
		metrics.ObserveDiscoveredURLs(source, n)
	}
	found := len(discovered.URLs)
	s.deps.Logger.Info("url discovery finished",
		zap.Int64("job_id", job.ID),
		zap.String("website", site.Name),
		zap.Int("urls", found),
	)

	counts := s.processURLs(ctx, job.ID, runID, *site, discovered.URLs, force)

	sort.Slice(counts.articles, func(i, j int) bool {
		return counts.articles[i].URL < counts.articles[j].URL
	})
	summary := &scraper.JobSummary{
		JobID:            job.ID,
		WebsiteID:        websiteID,
		ArticlesFound:    found,
		ArticlesScraped:  counts.scraped,
		ArticlesExisting: counts.existing,
		ArticlesFailed:   counts.failed,
		Articles:         counts.articles,
	}

	switch {
	case counts.terminal != nil:
		summary.Status = scraper.JobStatusFailed
		summary.Message = counts.terminal.Error()
		if err := s.deps.Tracker.Fail(ctx, job.ID, summary.Message); err != nil {
			return nil, err
		}
	case ctx.Err() != nil:
		summary.Status = scraper.JobStatusFailed
		summary.Message = ctx.Err().Error()
		if err := s.deps.Tracker.Fail(context.WithoutCancel(ctx), job.ID, summary.Message); err != nil {
			return nil, err
		}
	default:
		summary.Status = scraper.JobStatusCompleted
		summary.Message = fmt.Sprintf("Scraped %d of %d articles", counts.scraped, found)
		if err := s.deps.Tracker.Complete(ctx, job.ID, found, counts.scraped); err != nil {
			return nil, err
		}
	}
	metrics.ObserveJob(string(summary.Status))
	return summary, nil
}

// jobConfig snapshots the effective crawl settings into the job record.
func (s *Service) jobConfig(runID string, force bool) map[string]any {
	vcfg := s.deps.Validator.Config()
	return map[string]any{
		"run_id":                runID,
		"force":                 force,
		"max_workers":           s.cfg.MaxWorkers,
		"sitemap_only":          s.cfg.Discovery.SitemapOnly,
		"enable_rss":            s.cfg.Discovery.EnableRSS,
		"enable_category_pages": s.cfg.Discovery.EnableCategoryPages,
		"max_urls":              s.cfg.Discovery.MaxURLs,
		"validation_enabled":    vcfg.Enabled,
		"min_quality_score":     vcfg.MinQualityScore,
	}
}

type runCounts struct {
	mu       sync.Mutex
	articles []scraper.ArticleResult
	scraped  int
	existing int
	failed   int
	terminal error
}

func (c *runCounts) recordResult(res scraper.ArticleResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.articles = append(c.articles, res)
	switch res.Status {
	case scraper.ArticleStatusNew, scraper.ArticleStatusUpdated:
		c.scraped++
	case scraper.ArticleStatusExisting, scraper.ArticleStatusUnchanged:
		c.existing++
	}
}

func (c *runCounts) recordFailure() {
	c.mu.Lock()
	c.failed++
	c.mu.Unlock()
}

func (c *runCounts) recordTerminal(err error) {
	c.mu.Lock()
	if c.terminal == nil {
		c.terminal = err
	}
	c.mu.Unlock()
}

// processURLs runs the per-URL pipeline through a bounded worker pool. A
// critical error cancels the remaining work and surfaces as the job's
// terminal failure.
func (s *Service) processURLs(ctx context.Context, jobID int64, runID string, site scraper.Website, urls []string, force bool) *runCounts {
	counts := &runCounts{}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.cfg.MaxWorkers)

	for _, pageURL := range urls {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(pageURL string) {
			defer wg.Done()
			defer func() { <-sem }()

			metrics.IncActiveWorkers()
			defer metrics.DecActiveWorkers()

			result, err := s.processURL(ctx, jobID, runID, site, pageURL, force)
			if err != nil {
				counts.recordFailure()
				metrics.ObserveArticle(site.BaseURL, "failed")
				entry, recordErr := s.deps.Tracker.RecordError(context.WithoutCancel(ctx), jobID, pageURL, err, map[string]any{
					"run_id": runID,
				})
				if recordErr != nil {
					s.deps.Logger.Error("failed to record scraping error",
						zap.Int64("job_id", jobID),
						zap.Error(recordErr),
					)
					counts.recordTerminal(recordErr)
					cancel()
					return
				}
				if entry.Severity == scraper.SeverityCritical {
					counts.recordTerminal(err)
					cancel()
				}
				return
			}
			counts.recordResult(*result)
			metrics.ObserveArticle(site.BaseURL, string(result.Status))
		}(pageURL)
	}
	wg.Wait()
	return counts
}

// processURL runs the pipeline for one candidate URL and reports how it
// resolved against storage.
func (s *Service) processURL(ctx context.Context, jobID int64, runID string, site scraper.Website, pageURL string, force bool) (*scraper.ArticleResult, error) {
	res, err := s.fetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	metrics.ObservePage(site.BaseURL, strconv.Itoa(res.StatusCode))

	if s.deps.Archiver != nil {
		if _, err := s.deps.Archiver.Put(ctx, archive.PagePath(runID, res.URL), []byte(res.HTML)); err != nil {
			s.deps.Logger.Warn("failed to archive page",
				zap.String("url", res.URL),
				zap.Error(err),
			)
		}
	}

	draft, err := s.extractWithFallback(ctx, res)
	if err != nil {
		return nil, err
	}
	draft.WebsiteID = site.ID

	categories := s.deps.Classifier.Categorize(draft, res, site.BaseURL)

	result := s.deps.Validator.Validate(draft)
	metrics.ObserveValidationScore(result.Score)
	if draft.Metadata == nil {
		draft.Metadata = map[string]any{}
	}
	draft.Metadata["validation"] = result
	if !result.IsValid {
		return nil, scraper.NewScrapeError(scraper.ErrorTypeValidation,
			fmt.Sprintf("article failed validation with score %.0f", result.Score), nil)
	}

	return s.storeArticle(ctx, site, draft, categories, force)
}

// fetchPage fetches over plain HTTP first. It falls back to the headless
// renderer when that fails, or when the response looks like a JavaScript
// shell rather than the article.
func (s *Service) fetchPage(ctx context.Context, pageURL string) (*scraper.FetchResult, error) {
	res, err := s.fetchWith(ctx, s.deps.Fetcher, pageURL)
	if err == nil {
		if s.deps.Headless != nil && s.deps.Render.NeedsRender(res.HTML) {
			s.deps.Logger.Debug("page looks script gated, rendering headless",
				zap.String("url", pageURL),
			)
			rendered, renderErr := s.fetchWith(ctx, s.deps.Headless, pageURL)
			if renderErr == nil {
				metrics.ObserveFetchDuration("headless", rendered.Duration)
				return rendered, nil
			}
			s.deps.Logger.Warn("headless render failed, keeping http response",
				zap.String("url", pageURL),
				zap.Error(renderErr),
			)
		}
		metrics.ObserveFetchDuration("http", res.Duration)
		return res, nil
	}
	if s.deps.Headless == nil {
		return nil, err
	}

	s.deps.Logger.Debug("http fetch failed, rendering headless",
		zap.String("url", pageURL),
		zap.Error(err),
	)
	res, err = s.fetchWith(ctx, s.deps.Headless, pageURL)
	if err != nil {
		return nil, err
	}
	metrics.ObserveFetchDuration("headless", res.Duration)
	return res, nil
}

func (s *Service) fetchWith(ctx context.Context, fetcher scraper.Fetcher, pageURL string) (*scraper.FetchResult, error) {
	return ratelimit.Execute(ctx, s.deps.Limiter, pageURL, func(ctx context.Context) (*scraper.FetchResult, error) {
		return fetcher.Fetch(ctx, pageURL, s.deps.AntiBan.FetchOptions(pageURL))
	})
}

// extractWithFallback extracts the fetched page and, when a plain HTTP fetch
// yields no usable content, renders the page headless and tries again.
func (s *Service) extractWithFallback(ctx context.Context, res *scraper.FetchResult) (*scraper.ArticleDraft, error) {
	draft, err := s.deps.Extractor.Extract(res)
	if err == nil {
		return draft, nil
	}
	if s.deps.Headless == nil || res.UsedHeadless || scraper.ClassifyError(err) != scraper.ErrorTypeContent {
		return nil, err
	}

	rendered, renderErr := s.fetchWith(ctx, s.deps.Headless, res.URL)
	if renderErr != nil {
		return nil, err
	}
	metrics.ObserveFetchDuration("headless", rendered.Duration)
	return s.deps.Extractor.Extract(rendered)
}

// storeArticle resolves the draft against storage: create it when unseen,
// rewrite it when the change detector approves, otherwise leave it alone.
func (s *Service) storeArticle(ctx context.Context, site scraper.Website, draft *scraper.ArticleDraft, categories []scraper.Category, force bool) (*scraper.ArticleResult, error) {
	key, err := scraper.NormalizeURL(draft.URL)
	if err != nil {
		key = draft.URL
	}
	existing, err := s.deps.Gateway.GetArticleByURL(ctx, key)
	if err != nil && !errors.Is(err, scraper.ErrNotFound) {
		return nil, err
	}

	categoryNames := make([]string, 0, len(categories))
	for _, c := range categories {
		categoryNames = append(categoryNames, c.Name)
	}

	if existing == nil {
		article := s.newArticle(site, draft, key, categoryNames)
		id, err := s.deps.Gateway.CreateArticle(ctx, article)
		if err != nil {
			return nil, err
		}
		if err := s.linkCategories(ctx, id, site.ID, categories); err != nil {
			return nil, err
		}
		return &scraper.ArticleResult{
			ID:            id,
			Title:         article.Title,
			URL:           key,
			Status:        scraper.ArticleStatusNew,
			LastCheckedAt: article.LastCheckedAt,
		}, nil
	}

	should, reasons := s.deps.Detector.ShouldUpdate(existing, draft, storedCategoryNames(existing), force)
	if !should {
		status := scraper.ArticleStatusUnchanged
		for _, reason := range reasons {
			if reason == changes.ReasonRecentlyChecked {
				status = scraper.ArticleStatusExisting
				break
			}
		}
		s.deps.Logger.Debug("article left unchanged",
			zap.String("url", key),
			zap.Strings("reasons", reasons),
		)
		return &scraper.ArticleResult{
			ID:            existing.ID,
			Title:         existing.Title,
			URL:           key,
			Status:        status,
			LastCheckedAt: existing.LastCheckedAt,
		}, nil
	}

	changeSummary := changes.Summary(existing, draft, storedCategoryNames(existing))
	merged := s.deps.Detector.Merge(existing, draft)
	merged.Metadata["categories"] = categoryNames
	if err := s.deps.Gateway.UpdateArticle(ctx, merged); err != nil {
		return nil, err
	}
	if err := s.linkCategories(ctx, merged.ID, site.ID, categories); err != nil {
		return nil, err
	}
	s.deps.Logger.Info("article updated",
		zap.String("url", key),
		zap.Strings("reasons", reasons),
		zap.String("changes", changeSummary),
	)
	return &scraper.ArticleResult{
		ID:            merged.ID,
		Title:         merged.Title,
		URL:           key,
		Status:        scraper.ArticleStatusUpdated,
		LastCheckedAt: merged.LastCheckedAt,
	}, nil
}

func (s *Service) newArticle(site scraper.Website, draft *scraper.ArticleDraft, key string, categoryNames []string) *scraper.Article {
	metadata := make(map[string]any, len(draft.Metadata)+1)
	for k, v := range draft.Metadata {
		metadata[k] = v
	}
	metadata["categories"] = categoryNames

	return &scraper.Article{
		Title:           draft.Title,
		URL:             key,
		Content:         draft.Content,
		ContentMarkdown: draft.ContentMarkdown,
		ContentHTML:     draft.ContentHTML,
		Author:          draft.Author,
		PublishedAt:     draft.PublishedAt,
		ImageURL:        draft.ImageURL,
		WebsiteID:       site.ID,
		Metadata:        metadata,
		Active:          true,
		LastCheckedAt:   s.deps.Clock.Now(),
	}
}

func (s *Service) linkCategories(ctx context.Context, articleID, websiteID int64, categories []scraper.Category) error {
	for _, c := range categories {
		cat, err := s.deps.Gateway.GetCategoryByURL(ctx, websiteID, c.URL)
		var categoryID int64
		switch {
		case errors.Is(err, scraper.ErrNotFound):
			categoryID, err = s.deps.Gateway.CreateCategory(ctx, &scraper.Category{
				Name:      c.Name,
				URL:       c.URL,
				WebsiteID: websiteID,
				Active:    true,
			})
			if err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			categoryID = cat.ID
		}
		if err := s.deps.Gateway.AddArticleCategory(ctx, articleID, categoryID); err != nil {
			return err
		}
	}
	return nil
}

// storedCategoryNames reads the category names recorded in the article's
// metadata at its last write.
func storedCategoryNames(a *scraper.Article) []string {
	switch v := a.Metadata["categories"].(type) {
	case []string:
		return v
	case []any:
		names := make([]string, 0, len(v))
		for _, entry := range v {
			if s, ok := entry.(string); ok {
				names = append(names, s)
			}
		}
		return names
	default:
		return nil
	}
}
