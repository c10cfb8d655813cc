// Package postgres provides the Postgres-backed storage gateway.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/naijahub/newscrawler/internal/scraper"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Gateway implements scraper.Gateway on a pgx connection pool.
type Gateway struct {
	pool querier
}

var _ scraper.Gateway = (*Gateway)(nil)

// New connects a Gateway to Postgres using the provided config.
func New(ctx context.Context, cfg Config) (*Gateway, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Gateway{pool: pool}, nil
}

// NewWithPool constructs a Gateway from an existing pool (primarily for testing).
func NewWithPool(pool querier) (*Gateway, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Gateway{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (g *Gateway) Close() {
	if g == nil || g.pool == nil {
		return
	}
	g.pool.Close()
}

const articleColumns = `id, title, url, content, content_markdown, content_html,
author, published_at, image_url, website_id, metadata, active,
last_checked_at, update_count`

// GetArticleByURL looks an article up by its natural key.
func (g *Gateway) GetArticleByURL(ctx context.Context, url string) (*scraper.Article, error) {
	row := g.pool.QueryRow(ctx, `
SELECT `+articleColumns+`
FROM articles
WHERE url = $1`, url)

	var a scraper.Article
	var metadata []byte
	err := row.Scan(
		&a.ID, &a.Title, &a.URL, &a.Content, &a.ContentMarkdown, &a.ContentHTML,
		&a.Author, &a.PublishedAt, &a.ImageURL, &a.WebsiteID, &metadata, &a.Active,
		&a.LastCheckedAt, &a.UpdateCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, scraper.ErrNotFound
	}
	if err != nil {
		return nil, dbError("select article", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
			return nil, fmt.Errorf("decode article metadata: %w", err)
		}
	}
	return &a, nil
}

// CreateArticle inserts an article and returns its assigned ID.
func (g *Gateway) CreateArticle(ctx context.Context, a *scraper.Article) (int64, error) {
	metadata, err := marshalMetadata(a.Metadata)
	if err != nil {
		return 0, err
	}
	var id int64
	err = g.pool.QueryRow(ctx, `
INSERT INTO articles (
	title, url, content, content_markdown, content_html, author,
	published_at, image_url, website_id, metadata, active,
	last_checked_at, update_count
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING id`,
		a.Title, a.URL, a.Content, a.ContentMarkdown, a.ContentHTML, a.Author,
		a.PublishedAt, a.ImageURL, a.WebsiteID, metadata, a.Active,
		a.LastCheckedAt, a.UpdateCount,
	).Scan(&id)
	if err != nil {
		return 0, dbError("insert article", err)
	}
	return id, nil
}

// UpdateArticle rewrites an article row in place.
func (g *Gateway) UpdateArticle(ctx context.Context, a *scraper.Article) error {
	metadata, err := marshalMetadata(a.Metadata)
	if err != nil {
		return err
	}
	tag, err := g.pool.Exec(ctx, `
UPDATE articles SET
	title = $2, content = $3, content_markdown = $4, content_html = $5,
	author = $6, published_at = $7, image_url = $8, metadata = $9,
	last_checked_at = $10, update_count = $11
WHERE id = $1`,
		a.ID, a.Title, a.Content, a.ContentMarkdown, a.ContentHTML,
		a.Author, a.PublishedAt, a.ImageURL, metadata,
		a.LastCheckedAt, a.UpdateCount,
	)
	if err != nil {
		return dbError("update article", err)
	}
	if tag.RowsAffected() == 0 {
		return scraper.ErrNotFound
	}
	return nil
}

// GetWebsiteByID returns one registered crawl target.
func (g *Gateway) GetWebsiteByID(ctx context.Context, id int64) (*scraper.Website, error) {
	row := g.pool.QueryRow(ctx, `
SELECT id, name, base_url, sitemap_url, active, created_at
FROM websites
WHERE id = $1`, id)

	var w scraper.Website
	err := row.Scan(&w.ID, &w.Name, &w.BaseURL, &w.SitemapURL, &w.Active, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, scraper.ErrNotFound
	}
	if err != nil {
		return nil, dbError("select website", err)
	}
	return &w, nil
}

// ListActiveWebsites returns all crawl targets marked active.
func (g *Gateway) ListActiveWebsites(ctx context.Context) ([]scraper.Website, error) {
	rows, err := g.pool.Query(ctx, `
SELECT id, name, base_url, sitemap_url, active, created_at
FROM websites
WHERE active
ORDER BY id`)
	if err != nil {
		return nil, dbError("list websites", err)
	}
	defer rows.Close()

	var out []scraper.Website
	for rows.Next() {
		var w scraper.Website
		if err := rows.Scan(&w.ID, &w.Name, &w.BaseURL, &w.SitemapURL, &w.Active, &w.CreatedAt); err != nil {
			return nil, dbError("scan website", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("list websites", err)
	}
	return out, nil
}

// GetCategoryByURL looks a category up by its (website, url) key.
func (g *Gateway) GetCategoryByURL(ctx context.Context, websiteID int64, url string) (*scraper.Category, error) {
	row := g.pool.QueryRow(ctx, `
SELECT id, name, url, website_id, active
FROM categories
WHERE website_id = $1 AND url = $2`, websiteID, url)

	var c scraper.Category
	err := row.Scan(&c.ID, &c.Name, &c.URL, &c.WebsiteID, &c.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, scraper.ErrNotFound
	}
	if err != nil {
		return nil, dbError("select category", err)
	}
	return &c, nil
}

// CreateCategory inserts a category, reusing the existing row when the
// (website, url) key is already taken.
func (g *Gateway) CreateCategory(ctx context.Context, c *scraper.Category) (int64, error) {
	var id int64
	err := g.pool.QueryRow(ctx, `
INSERT INTO categories (name, url, website_id, active)
VALUES ($1, $2, $3, $4)
ON CONFLICT (website_id, url) DO UPDATE SET name = EXCLUDED.name
RETURNING id`,
		c.Name, c.URL, c.WebsiteID, c.Active,
	).Scan(&id)
	if err != nil {
		return 0, dbError("insert category", err)
	}
	return id, nil
}

// AddArticleCategory links an article to a category. Duplicate links are a
// no-op.
func (g *Gateway) AddArticleCategory(ctx context.Context, articleID, categoryID int64) error {
	_, err := g.pool.Exec(ctx, `
INSERT INTO article_categories (article_id, category_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`, articleID, categoryID)
	if err != nil {
		return dbError("link article category", err)
	}
	return nil
}

// CreateJob inserts a pending job and returns its assigned ID.
func (g *Gateway) CreateJob(ctx context.Context, job *scraper.ScrapingJob) (int64, error) {
	config, err := marshalMetadata(job.Config)
	if err != nil {
		return 0, err
	}
	var id int64
	err = g.pool.QueryRow(ctx, `
INSERT INTO scraping_jobs (website_id, status, config)
VALUES ($1, $2, $3)
RETURNING id`,
		job.WebsiteID, string(job.Status), config,
	).Scan(&id)
	if err != nil {
		return 0, dbError("insert job", err)
	}
	return id, nil
}

// StartJob marks a job running.
func (g *Gateway) StartJob(ctx context.Context, jobID int64, at time.Time) error {
	return g.updateJob(ctx, "start job", `
UPDATE scraping_jobs SET status = 'running', start_time = $2
WHERE id = $1`, jobID, at)
}

// CompleteJob marks a job completed with its final counters.
func (g *Gateway) CompleteJob(ctx context.Context, jobID int64, found, scraped int, at time.Time) error {
	return g.updateJob(ctx, "complete job", `
UPDATE scraping_jobs SET
	status = 'completed', end_time = $2, articles_found = $3, articles_scraped = $4
WHERE id = $1`, jobID, at, found, scraped)
}

// FailJob marks a job failed with its terminal message.
func (g *Gateway) FailJob(ctx context.Context, jobID int64, message string, at time.Time) error {
	return g.updateJob(ctx, "fail job", `
UPDATE scraping_jobs SET status = 'failed', end_time = $2, error_message = $3
WHERE id = $1`, jobID, at, message)
}

// IncrementJobErrors bumps a job's error counter.
func (g *Gateway) IncrementJobErrors(ctx context.Context, jobID int64) error {
	return g.updateJob(ctx, "increment job errors", `
UPDATE scraping_jobs SET error_count = error_count + 1
WHERE id = $1`, jobID)
}

func (g *Gateway) updateJob(ctx context.Context, op, sql string, args ...any) error {
	tag, err := g.pool.Exec(ctx, sql, args...)
	if err != nil {
		return dbError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return scraper.ErrNotFound
	}
	return nil
}

// CreateErrorLog appends a classified error to the job's log.
func (g *Gateway) CreateErrorLog(ctx context.Context, e *scraper.ErrorLog) (int64, error) {
	errCtx, err := marshalMetadata(e.Context)
	if err != nil {
		return 0, err
	}
	var id int64
	err = g.pool.QueryRow(ctx, `
INSERT INTO scraping_errors (
	job_id, error_type, severity, message, url, context,
	stack_trace, recovery_actions, occurred_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING id`,
		e.JobID, string(e.Type), string(e.Severity), e.Message, e.URL, errCtx,
		e.StackTrace, e.RecoveryActions, e.OccurredAt,
	).Scan(&id)
	if err != nil {
		return 0, dbError("insert error log", err)
	}
	return id, nil
}

// ErrorSummary aggregates a job's error log by type and severity.
func (g *Gateway) ErrorSummary(ctx context.Context, jobID int64) (*scraper.ErrorSummary, error) {
	rows, err := g.pool.Query(ctx, `
SELECT error_type, severity, resolved_at IS NULL, COUNT(*)
FROM scraping_errors
WHERE job_id = $1
GROUP BY error_type, severity, resolved_at IS NULL`, jobID)
	if err != nil {
		return nil, dbError("error summary", err)
	}
	defer rows.Close()

	summary := &scraper.ErrorSummary{
		ByType:     make(map[scraper.ErrorType]int),
		BySeverity: make(map[scraper.ErrorSeverity]int),
	}
	for rows.Next() {
		var errType, severity string
		var unresolved bool
		var count int
		if err := rows.Scan(&errType, &severity, &unresolved, &count); err != nil {
			return nil, dbError("scan error summary", err)
		}
		summary.Total += count
		summary.ByType[scraper.ErrorType(errType)] += count
		summary.BySeverity[scraper.ErrorSeverity(severity)] += count
		if unresolved && scraper.ErrorSeverity(severity) == scraper.SeverityCritical {
			summary.UnresolvedCritical += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("error summary", err)
	}
	return summary, nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return data, nil
}

// dbError classifies storage failures as DATABASE so the job layer records
// them at critical severity.
func dbError(op string, err error) error {
	return scraper.NewScrapeError(scraper.ErrorTypeDatabase, op, err)
}
