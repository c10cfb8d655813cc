// Package jobs runs the scraping job lifecycle: pending, running, then
// completed or failed. It also records classified errors against the owning
// job as they happen.
package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/naijahub/newscrawler/internal/scraper"
)

// Tracker drives job state transitions through a JobStore.
type Tracker struct {
	store  scraper.JobStore
	clock  scraper.Clock
	logger *zap.Logger
}

// NewTracker creates a Tracker.
func NewTracker(store scraper.JobStore, clock scraper.Clock, logger *zap.Logger) *Tracker {
	return &Tracker{store: store, clock: clock, logger: logger}
}

// Begin creates a pending job for the website and immediately marks it
// running. The returned job carries its assigned ID and start time.
func (t *Tracker) Begin(ctx context.Context, websiteID int64, config map[string]any) (*scraper.ScrapingJob, error) {
	job := &scraper.ScrapingJob{
		WebsiteID: websiteID,
		Status:    scraper.JobStatusPending,
		Config:    config,
	}
	id, err := t.store.CreateJob(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	job.ID = id

	now := t.clock.Now()
	if err := t.store.StartJob(ctx, id, now); err != nil {
		return nil, fmt.Errorf("start job %d: %w", id, err)
	}
	job.Status = scraper.JobStatusRunning
	job.StartTime = &now

	t.logger.Info("scraping job started",
		zap.Int64("job_id", id),
		zap.Int64("website_id", websiteID),
	)
	return job, nil
}

// Complete marks the job completed with its final counters.
func (t *Tracker) Complete(ctx context.Context, jobID int64, found, scraped int) error {
	if err := t.store.CompleteJob(ctx, jobID, found, scraped, t.clock.Now()); err != nil {
		return fmt.Errorf("complete job %d: %w", jobID, err)
	}
	t.logger.Info("scraping job completed",
		zap.Int64("job_id", jobID),
		zap.Int("articles_found", found),
		zap.Int("articles_scraped", scraped),
	)
	return nil
}

// Fail marks the job failed with the terminal error message.
func (t *Tracker) Fail(ctx context.Context, jobID int64, message string) error {
	if err := t.store.FailJob(ctx, jobID, message, t.clock.Now()); err != nil {
		return fmt.Errorf("fail job %d: %w", jobID, err)
	}
	t.logger.Warn("scraping job failed",
		zap.Int64("job_id", jobID),
		zap.String("message", message),
	)
	return nil
}

// RecordError classifies a failure, persists it against the job, and bumps
// the job's error counter. The returned log tells the caller the assigned
// severity; critical errors should terminate the job.
func (t *Tracker) RecordError(ctx context.Context, jobID int64, pageURL string, cause error, errCtx map[string]any) (*scraper.ErrorLog, error) {
	errType := scraper.ClassifyError(cause)
	entry := &scraper.ErrorLog{
		JobID:           jobID,
		Type:            errType,
		Severity:        scraper.SeverityFor(errType),
		Message:         cause.Error(),
		URL:             pageURL,
		Context:         errCtx,
		RecoveryActions: scraper.RecoveryActions(errType),
		OccurredAt:      t.clock.Now(),
	}

	id, err := t.store.CreateErrorLog(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("record error for job %d: %w", jobID, err)
	}
	entry.ID = id

	if err := t.store.IncrementJobErrors(ctx, jobID); err != nil {
		return nil, fmt.Errorf("increment errors for job %d: %w", jobID, err)
	}

	logFn := t.logger.Warn
	if entry.Severity == scraper.SeverityCritical {
		logFn = t.logger.Error
	}
	logFn("scraping error recorded",
		zap.Int64("job_id", jobID),
		zap.String("error_type", string(entry.Type)),
		zap.String("severity", string(entry.Severity)),
		zap.String("url", pageURL),
		zap.Error(cause),
	)
	return entry, nil
}

// Summary returns the aggregated error counts for a job.
func (t *Tracker) Summary(ctx context.Context, jobID int64) (*scraper.ErrorSummary, error) {
	summary, err := t.store.ErrorSummary(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("error summary for job %d: %w", jobID, err)
	}
	return summary, nil
}
