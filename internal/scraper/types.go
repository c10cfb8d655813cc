// Package scraper defines core types shared across the crawling pipeline.
package scraper

import (
	"time"
)

// JobStatus represents the lifecycle state of a scraping job.
type JobStatus string

// Job status values persisted in the job store. The lifecycle is a strict
// forward state machine: pending -> running -> completed | failed.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Website is a crawl target registered by an operator.
type Website struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	BaseURL    string    `json:"base_url"`
	SitemapURL string    `json:"sitemap_url,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

// Category groups articles within a website. Categories are created on first
// sighting during extraction or classification and reused afterwards.
type Category struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	WebsiteID int64  `json:"website_id"`
	Active    bool   `json:"active"`
}

// Article is the persisted form of an extracted news article. URL is the
// natural key for idempotent upsert.
type Article struct {
	ID              int64          `json:"id"`
	Title           string         `json:"title"`
	URL             string         `json:"url"`
	Content         string         `json:"content"`
	ContentMarkdown string         `json:"content_markdown"`
	ContentHTML     string         `json:"content_html"`
	Author          string         `json:"author"`
	PublishedAt     time.Time      `json:"published_at"`
	ImageURL        string         `json:"image_url"`
	WebsiteID       int64          `json:"website_id"`
	Metadata        map[string]any `json:"metadata"`
	Active          bool           `json:"active"`
	LastCheckedAt   time.Time      `json:"last_checked_at"`
	UpdateCount     int            `json:"update_count"`
}

// ArticleDraft is the in-memory extraction result prior to validation and
// merge. PublishedAt stays zero when no date could be parsed; the draft never
// substitutes the current time for a missing date.
type ArticleDraft struct {
	Title           string
	URL             string
	Content         string
	ContentMarkdown string
	ContentHTML     string
	Author          string
	PublishedAt     time.Time
	DateMissing     bool
	ImageURL        string
	WebsiteID       int64
	Categories      []string
	Tags            []string
	Metadata        map[string]any
}

// ScrapingJob tracks one crawl execution against one website.
type ScrapingJob struct {
	ID              int64          `json:"id"`
	WebsiteID       int64          `json:"website_id"`
	Status          JobStatus      `json:"status"`
	StartTime       *time.Time     `json:"start_time,omitempty"`
	EndTime         *time.Time     `json:"end_time,omitempty"`
	ArticlesFound   int            `json:"articles_found"`
	ArticlesScraped int            `json:"articles_scraped"`
	ErrorCount      int            `json:"error_count"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	Config          map[string]any `json:"config,omitempty"`
}

// ErrorLog is an append-only record of a classified failure during a job.
type ErrorLog struct {
	ID              int64          `json:"id"`
	JobID           int64          `json:"job_id"`
	Type            ErrorType      `json:"error_type"`
	Severity        ErrorSeverity  `json:"severity"`
	Message         string         `json:"message"`
	URL             string         `json:"url,omitempty"`
	Context         map[string]any `json:"context,omitempty"`
	StackTrace      string         `json:"stack_trace,omitempty"`
	RecoveryActions string         `json:"recovery_actions,omitempty"`
	OccurredAt      time.Time      `json:"occurred_at"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
}

// ErrorSummary aggregates error logs for a single job.
type ErrorSummary struct {
	Total              int               `json:"total_errors"`
	ByType             map[ErrorType]int `json:"by_type"`
	BySeverity         map[ErrorSeverity]int
	UnresolvedCritical int `json:"unresolved_critical"`
}

// ValidationResult is the outcome of content-quality scoring. It is embedded
// in Article.Metadata under the "validation" key.
type ValidationResult struct {
	IsValid   bool               `json:"is_valid"`
	Score     float64            `json:"score"`
	Issues    []string           `json:"issues"`
	SubScores map[string]float64 `json:"sub_scores"`
}

// ArticleStatus classifies how a visited URL resolved against storage.
type ArticleStatus string

// Article outcome values reported per URL.
const (
	ArticleStatusNew       ArticleStatus = "new"
	ArticleStatusUpdated   ArticleStatus = "updated"
	ArticleStatusExisting  ArticleStatus = "existing"
	ArticleStatusUnchanged ArticleStatus = "unchanged"
)

// ArticleResult is the per-URL outcome surfaced to the orchestrator.
type ArticleResult struct {
	ID            int64         `json:"id"`
	Title         string        `json:"title"`
	URL           string        `json:"url"`
	Status        ArticleStatus `json:"status"`
	LastCheckedAt time.Time     `json:"last_checked_at"`
}

// JobSummary is the per-job result reported to the orchestrator and the API
// layer. Counts are reported even on partial failure; Articles carries the
// per-URL outcomes for every URL that resolved against storage.
type JobSummary struct {
	JobID            int64           `json:"job_id"`
	WebsiteID        int64           `json:"website_id"`
	ArticlesFound    int             `json:"articles_found"`
	ArticlesScraped  int             `json:"articles_scraped"`
	ArticlesExisting int             `json:"articles_existing"`
	ArticlesFailed   int             `json:"articles_failed"`
	Status           JobStatus       `json:"status"`
	Message          string          `json:"message"`
	Articles         []ArticleResult `json:"articles,omitempty"`
}

// Link is a single hyperlink discovered on a fetched page.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text,omitempty"`
}

// PageLinks splits discovered links by domain relative to the fetched page.
type PageLinks struct {
	Internal []Link `json:"internal"`
	External []Link `json:"external"`
}

// ImageRef is an image discovered on a fetched page.
type ImageRef struct {
	Src   string `json:"src"`
	Alt   string `json:"alt,omitempty"`
	Score int    `json:"score,omitempty"`
}

// PageMedia holds media discovered on a fetched page.
type PageMedia struct {
	Images []ImageRef `json:"images"`
}

// FetchResult is the shape every fetch/render collaborator produces. The
// pipeline depends only on this shape, not on how rendering happened.
type FetchResult struct {
	URL          string
	StatusCode   int
	HTML         string
	CleanedHTML  string
	Markdown     string
	Links        PageLinks
	Media        PageMedia
	Metadata     map[string]string
	Success      bool
	ErrorMessage string
	UsedHeadless bool
	Duration     time.Duration
}

// BrowserConfig carries per-request browser settings chosen by the anti-ban
// layer. HTTP-only fetchers use UserAgent and ignore the rest.
type BrowserConfig struct {
	Headless       bool
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
}

// FetchOptions bundles the identity the anti-ban layer assigned to a request.
type FetchOptions struct {
	Headers map[string]string
	Browser BrowserConfig
}
