package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/naijahub/newscrawler/internal/antiban"
	"github.com/naijahub/newscrawler/internal/changes"
	"github.com/naijahub/newscrawler/internal/classify"
	"github.com/naijahub/newscrawler/internal/discovery"
	"github.com/naijahub/newscrawler/internal/extract"
	"github.com/naijahub/newscrawler/internal/fetcher/render"
	"github.com/naijahub/newscrawler/internal/jobs"
	"github.com/naijahub/newscrawler/internal/ratelimit"
	"github.com/naijahub/newscrawler/internal/scraper"
	"github.com/naijahub/newscrawler/internal/storage/memory"
	"github.com/naijahub/newscrawler/internal/validate"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type noopSleeper struct{}

func (noopSleeper) Sleep(context.Context, time.Duration) error { return nil }

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls map[string]int
}

func (f *fakeFetcher) Fetch(_ context.Context, pageURL string, _ scraper.FetchOptions) (*scraper.FetchResult, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[pageURL]++
	body, ok := f.pages[pageURL]
	f.mu.Unlock()

	if !ok {
		return nil, scraper.NewScrapeError(scraper.ErrorTypeNetwork, "no response for "+pageURL, nil)
	}
	return &scraper.FetchResult{
		URL:        pageURL,
		StatusCode: 200,
		HTML:       body,
		Metadata:   map[string]string{},
		Success:    true,
	}, nil
}

const base = "https://example.ng"

func sitemapXML(urls ...string) string {
	body := `<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`
	for _, u := range urls {
		body += "<url><loc>" + u + "</loc></url>"
	}
	return body + "</urlset>"
}

func articleHTML(title string) string {
	return fmt.Sprintf(`<html><head><title>%s</title></head><body>
<h1 class="entry-title">%s</h1>
<a rel="author">Ada Obi</a>
<time class="entry-date" datetime="2026-08-28T09:30:00+01:00">August 28, 2026</time>
<img class="wp-post-image" src="%s/img/cover.jpg">
<div class="entry-content">
<p>The state government announced a comprehensive new transport programme on Monday covering
bus corridors, ferry routes and last mile connections for commuters across the metropolis
according to officials briefed on the matter.</p>
<p>Implementation will begin in the first quarter and reach all local government areas within
three years, with funding drawn from a mix of state bonds and private partners according to
the commissioner who announced the programme.</p>
</div>
</body></html>`, title, title, base)
}

func newTestService(t *testing.T, fetcher scraper.Fetcher, store *memory.Store) *Service {
	t.Helper()
	logger := zap.NewNop()
	clock := fixedClock{now: testNow}

	limiter := ratelimit.New(
		ratelimit.Config{RequestsPerMinute: 600},
		clock, logger,
		ratelimit.WithSleeper(noopSleeper{}),
	)
	return New(
		Config{
			MaxWorkers: 2,
			Discovery:  discovery.Config{SitemapOnly: true},
		},
		Deps{
			Gateway:    store,
			Fetcher:    fetcher,
			AntiBan:    antiban.New(antiban.WithoutRotation()),
			Limiter:    limiter,
			Extractor:  extract.New(nil, logger),
			Classifier: classify.New(logger),
			Validator:  validate.New(validate.DefaultConfig(), clock),
			Detector:   changes.New(changes.DefaultConfig(), clock, logger),
			Tracker:    jobs.NewTracker(store, clock, logger),
			Clock:      clock,
			Logger:     logger,
		},
	)
}

func newsSite(t *testing.T) (*fakeFetcher, *memory.Store, int64) {
	t.Helper()
	urlOne := base + "/lagos-unveils-transport-programme"
	urlTwo := base + "/senate-passes-appropriation-bill"

	fetcher := &fakeFetcher{pages: map[string]string{
		base + "/sitemap.xml": sitemapXML(urlOne, urlTwo),
		urlOne:                articleHTML("Lagos unveils sweeping transport programme"),
		urlTwo:                articleHTML("Senate passes the appropriation bill"),
	}}

	store := memory.New()
	websiteID := store.AddWebsite(scraper.Website{
		Name:    "Example News",
		BaseURL: base,
		Active:  true,
	})
	return fetcher, store, websiteID
}

func TestScrapeWebsiteStoresNewArticles(t *testing.T) {
	fetcher, store, websiteID := newsSite(t)
	svc := newTestService(t, fetcher, store)

	summary, err := svc.ScrapeWebsite(context.Background(), websiteID, false)
	require.NoError(t, err)
	require.Equal(t, scraper.JobStatusCompleted, summary.Status)
	require.Equal(t, 2, summary.ArticlesFound)
	require.Equal(t, 2, summary.ArticlesScraped)
	require.Zero(t, summary.ArticlesFailed)

	require.Len(t, summary.Articles, 2)
	first := summary.Articles[0]
	require.Equal(t, base+"/lagos-unveils-transport-programme", first.URL)
	require.Equal(t, scraper.ArticleStatusNew, first.Status)
	require.Equal(t, "Lagos unveils sweeping transport programme", first.Title)
	require.NotZero(t, first.ID)
	require.Equal(t, testNow, first.LastCheckedAt)

	a, err := store.GetArticleByURL(context.Background(), base+"/lagos-unveils-transport-programme")
	require.NoError(t, err)
	require.Equal(t, "Lagos unveils sweeping transport programme", a.Title)
	require.Equal(t, "Ada Obi", a.Author)
	require.Equal(t, 8, a.PublishedAt.UTC().Hour())
	require.NotEmpty(t, a.Content)
	require.NotEmpty(t, store.ArticleCategories(a.ID))

	job, ok := store.Job(summary.JobID)
	require.True(t, ok)
	require.Equal(t, scraper.JobStatusCompleted, job.Status)
	require.Equal(t, 2, job.ArticlesScraped)
	require.Equal(t, 2, job.Config["max_workers"])
	require.Equal(t, true, job.Config["sitemap_only"])
	require.Equal(t, true, job.Config["validation_enabled"])
	require.Equal(t, 50.0, job.Config["min_quality_score"])
}

func TestScrapeWebsiteRescrapeLeavesArticlesUnchanged(t *testing.T) {
	fetcher, store, websiteID := newsSite(t)
	svc := newTestService(t, fetcher, store)

	_, err := svc.ScrapeWebsite(context.Background(), websiteID, false)
	require.NoError(t, err)

	summary, err := svc.ScrapeWebsite(context.Background(), websiteID, false)
	require.NoError(t, err)
	require.Equal(t, scraper.JobStatusCompleted, summary.Status)
	require.Equal(t, 2, summary.ArticlesExisting)
	require.Zero(t, summary.ArticlesScraped)

	require.Len(t, summary.Articles, 2)
	for _, res := range summary.Articles {
		require.Equal(t, scraper.ArticleStatusExisting, res.Status)
	}

	a, err := store.GetArticleByURL(context.Background(), base+"/lagos-unveils-transport-programme")
	require.NoError(t, err)
	require.Zero(t, a.UpdateCount)
}

func TestScrapeWebsiteForceRewrites(t *testing.T) {
	fetcher, store, websiteID := newsSite(t)
	svc := newTestService(t, fetcher, store)

	_, err := svc.ScrapeWebsite(context.Background(), websiteID, false)
	require.NoError(t, err)

	summary, err := svc.ScrapeWebsite(context.Background(), websiteID, true)
	require.NoError(t, err)
	require.Equal(t, 2, summary.ArticlesScraped)

	require.Len(t, summary.Articles, 2)
	for _, res := range summary.Articles {
		require.Equal(t, scraper.ArticleStatusUpdated, res.Status)
	}

	a, err := store.GetArticleByURL(context.Background(), base+"/lagos-unveils-transport-programme")
	require.NoError(t, err)
	require.Equal(t, 1, a.UpdateCount)
}

func TestScrapeWebsiteUnchangedAfterInterval(t *testing.T) {
	fetcher, store, websiteID := newsSite(t)
	svc := newTestService(t, fetcher, store)

	_, err := svc.ScrapeWebsite(context.Background(), websiteID, false)
	require.NoError(t, err)

	a, err := store.GetArticleByURL(context.Background(), base+"/lagos-unveils-transport-programme")
	require.NoError(t, err)
	a.LastCheckedAt = testNow.Add(-48 * time.Hour)
	require.NoError(t, store.UpdateArticle(context.Background(), a))

	summary, err := svc.ScrapeWebsite(context.Background(), websiteID, false)
	require.NoError(t, err)
	require.Len(t, summary.Articles, 2)
	for _, res := range summary.Articles {
		if res.URL == base+"/lagos-unveils-transport-programme" {
			require.Equal(t, scraper.ArticleStatusUnchanged, res.Status)
		} else {
			require.Equal(t, scraper.ArticleStatusExisting, res.Status)
		}
	}
}

func TestScrapeWebsiteUnknownSite(t *testing.T) {
	fetcher, store, _ := newsSite(t)
	svc := newTestService(t, fetcher, store)

	_, err := svc.ScrapeWebsite(context.Background(), 99, false)
	require.Error(t, err)
	require.Equal(t, scraper.ErrorTypeValidation, scraper.ClassifyError(err))
}

func TestScrapeWebsiteCountsFailures(t *testing.T) {
	thin := base + "/placeholder-story-not-yet-written"
	fetcher := &fakeFetcher{pages: map[string]string{
		base + "/sitemap.xml": sitemapXML(thin),
		thin:                  "<html><body><p>coming soon</p></body></html>",
	}}
	store := memory.New()
	websiteID := store.AddWebsite(scraper.Website{Name: "Thin", BaseURL: base, Active: true})
	svc := newTestService(t, fetcher, store)

	summary, err := svc.ScrapeWebsite(context.Background(), websiteID, false)
	require.NoError(t, err)
	require.Equal(t, scraper.JobStatusCompleted, summary.Status)
	require.Equal(t, 1, summary.ArticlesFound)
	require.Equal(t, 1, summary.ArticlesFailed)
	require.Zero(t, summary.ArticlesScraped)

	job, _ := store.Job(summary.JobID)
	require.Equal(t, 1, job.ErrorCount)
}

func TestScrapeWebsiteRendersScriptGatedPages(t *testing.T) {
	pageURL := base + "/governor-signs-electricity-law"
	shell := `<html><body><div id="app">Please enable JavaScript to continue.</div></body></html>`

	httpFetcher := &fakeFetcher{pages: map[string]string{
		base + "/sitemap.xml": sitemapXML(pageURL),
		pageURL:               shell,
	}}
	headless := &fakeFetcher{pages: map[string]string{
		pageURL: articleHTML("Governor signs the electricity law"),
	}}

	store := memory.New()
	websiteID := store.AddWebsite(scraper.Website{Name: "Gated", BaseURL: base, Active: true})

	logger := zap.NewNop()
	clock := fixedClock{now: testNow}
	limiter := ratelimit.New(
		ratelimit.Config{RequestsPerMinute: 600},
		clock, logger,
		ratelimit.WithSleeper(noopSleeper{}),
	)
	svc := New(
		Config{MaxWorkers: 1, Discovery: discovery.Config{SitemapOnly: true}},
		Deps{
			Gateway:    store,
			Fetcher:    httpFetcher,
			Headless:   headless,
			AntiBan:    antiban.New(antiban.WithoutRotation()),
			Limiter:    limiter,
			Extractor:  extract.New(nil, logger),
			Render:     render.Default(),
			Classifier: classify.New(logger),
			Validator:  validate.New(validate.DefaultConfig(), clock),
			Detector:   changes.New(changes.DefaultConfig(), clock, logger),
			Tracker:    jobs.NewTracker(store, clock, logger),
			Clock:      clock,
			Logger:     logger,
		},
	)

	summary, err := svc.ScrapeWebsite(context.Background(), websiteID, false)
	require.NoError(t, err)
	require.Equal(t, 1, summary.ArticlesScraped)

	a, err := store.GetArticleByURL(context.Background(), pageURL)
	require.NoError(t, err)
	require.Equal(t, "Governor signs the electricity law", a.Title)

	headless.mu.Lock()
	defer headless.mu.Unlock()
	require.Equal(t, 1, headless.calls[pageURL])
}

func TestScrapeAllCoversActiveSitesOnly(t *testing.T) {
	fetcher, store, _ := newsSite(t)
	store.AddWebsite(scraper.Website{Name: "Dormant", BaseURL: "https://dormant.ng", Active: false})
	svc := newTestService(t, fetcher, store)

	summaries, err := svc.ScrapeAll(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, scraper.JobStatusCompleted, summaries[0].Status)
}

func TestScrapeWebsiteDiscoveryUsesSitemapOnly(t *testing.T) {
	fetcher, store, websiteID := newsSite(t)
	fetcher.pages[base] = `<html><body><a href="/should-not-be-visited-at-all">x</a></body></html>`
	svc := newTestService(t, fetcher, store)

	_, err := svc.ScrapeWebsite(context.Background(), websiteID, false)
	require.NoError(t, err)

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	require.Zero(t, fetcher.calls[base])
}
