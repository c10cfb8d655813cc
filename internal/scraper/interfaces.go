package scraper

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by gateway lookups when no row matches.
var ErrNotFound = errors.New("not found")

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// Sleeper abstracts blocking waits so rate-limit tests can observe delays
// instead of incurring them.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Fetcher retrieves and optionally renders a single page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string, opts FetchOptions) (*FetchResult, error)
}

// ArticleStore persists articles keyed by URL.
type ArticleStore interface {
	GetArticleByURL(ctx context.Context, url string) (*Article, error)
	CreateArticle(ctx context.Context, a *Article) (int64, error)
	UpdateArticle(ctx context.Context, a *Article) error
}

// WebsiteStore reads registered crawl targets.
type WebsiteStore interface {
	GetWebsiteByID(ctx context.Context, id int64) (*Website, error)
	ListActiveWebsites(ctx context.Context) ([]Website, error)
}

// CategoryStore persists categories, reused by (website, url).
type CategoryStore interface {
	GetCategoryByURL(ctx context.Context, websiteID int64, url string) (*Category, error)
	CreateCategory(ctx context.Context, c *Category) (int64, error)
	AddArticleCategory(ctx context.Context, articleID, categoryID int64) error
}

// JobStore tracks scraping job lifecycle and error logs.
type JobStore interface {
	CreateJob(ctx context.Context, job *ScrapingJob) (int64, error)
	StartJob(ctx context.Context, jobID int64, at time.Time) error
	CompleteJob(ctx context.Context, jobID int64, found, scraped int, at time.Time) error
	FailJob(ctx context.Context, jobID int64, message string, at time.Time) error
	IncrementJobErrors(ctx context.Context, jobID int64) error
	CreateErrorLog(ctx context.Context, e *ErrorLog) (int64, error)
	ErrorSummary(ctx context.Context, jobID int64) (*ErrorSummary, error)
}

// Gateway is the full storage surface the orchestrator depends on.
type Gateway interface {
	ArticleStore
	WebsiteStore
	CategoryStore
	JobStore
}

// Archiver stores raw page HTML for later reprocessing.
type Archiver interface {
	Put(ctx context.Context, path string, data []byte) (string, error)
}
