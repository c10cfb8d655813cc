package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/naijahub/newscrawler/internal/jobs"
	"github.com/naijahub/newscrawler/internal/scraper"
	"github.com/naijahub/newscrawler/internal/storage/memory"
)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }

type fakeScraper struct {
	summary *scraper.JobSummary
	all     []scraper.JobSummary
	err     error

	lastWebsiteID int64
	lastForce     bool
}

func (f *fakeScraper) ScrapeWebsite(_ context.Context, websiteID int64, force bool) (*scraper.JobSummary, error) {
	f.lastWebsiteID = websiteID
	f.lastForce = force
	return f.summary, f.err
}

func (f *fakeScraper) ScrapeAll(_ context.Context, force bool) ([]scraper.JobSummary, error) {
	f.lastForce = force
	return f.all, f.err
}

func newServer(svc *fakeScraper, store *memory.Store) *Server {
	tracker := jobs.NewTracker(store, fixedClock{}, zap.NewNop())
	return NewServer(svc, store, tracker, zap.NewNop())
}

func TestHealthz(t *testing.T) {
	srv := newServer(&fakeScraper{}, memory.New())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestScrapeWebsite(t *testing.T) {
	svc := &fakeScraper{summary: &scraper.JobSummary{
		JobID: 4, WebsiteID: 2, ArticlesFound: 12, ArticlesScraped: 10,
		Status: scraper.JobStatusCompleted,
	}}
	srv := newServer(svc, memory.New())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/scrape/2?force=true", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(2), svc.lastWebsiteID)
	require.True(t, svc.lastForce)

	var got scraper.JobSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, int64(4), got.JobID)
	require.Equal(t, 10, got.ArticlesScraped)
}

func TestScrapeWebsiteInvalidID(t *testing.T) {
	srv := newServer(&fakeScraper{}, memory.New())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/scrape/abc", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScrapeWebsiteUnknownSite(t *testing.T) {
	svc := &fakeScraper{err: scraper.NewScrapeError(scraper.ErrorTypeValidation, "website 9 not found", nil)}
	srv := newServer(svc, memory.New())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/scrape/9", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScrapeAllFailure(t *testing.T) {
	svc := &fakeScraper{err: errors.New("boom")}
	srv := newServer(svc, memory.New())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/scrape", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListWebsites(t *testing.T) {
	store := memory.New()
	store.AddWebsite(scraper.Website{Name: "Blueprint", BaseURL: "https://www.blueprint.ng", Active: true})
	srv := newServer(&fakeScraper{}, store)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/websites", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Blueprint")
}

func TestJobErrors(t *testing.T) {
	store := memory.New()
	srv := newServer(&fakeScraper{}, store)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/1/errors", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var summary scraper.ErrorSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Zero(t, summary.Total)
}

func TestJobErrorsReportsRecordedErrors(t *testing.T) {
	store := memory.New()
	tracker := jobs.NewTracker(store, fixedClock{}, zap.NewNop())
	srv := NewServer(&fakeScraper{}, store, tracker, zap.NewNop())

	job, err := tracker.Begin(context.Background(), 1, nil)
	require.NoError(t, err)
	_, err = tracker.RecordError(context.Background(), job.ID, "https://example.ng/x",
		scraper.NewScrapeError(scraper.ErrorTypeNetwork, "connection reset", nil), nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/1/errors", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var summary scraper.ErrorSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, 1, summary.Total)
	require.Equal(t, 1, summary.ByType[scraper.ErrorTypeNetwork])
}
