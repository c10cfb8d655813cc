// Package memory is a mutex-guarded in-memory implementation of the storage
// gateway. It backs tests and local development runs where no Postgres is
// available.
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/naijahub/newscrawler/internal/scraper"
)

// Store implements scraper.Gateway in process memory.
type Store struct {
	mu sync.RWMutex

	websites   map[int64]scraper.Website
	articles   map[int64]scraper.Article
	byURL      map[string]int64
	categories map[int64]scraper.Category
	catByKey   map[string]int64
	links      map[int64]map[int64]bool
	jobs       map[int64]scraper.ScrapingJob
	errorLogs  map[int64]scraper.ErrorLog

	nextWebsiteID  int64
	nextArticleID  int64
	nextCategoryID int64
	nextJobID      int64
	nextErrorID    int64
}

var _ scraper.Gateway = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		websites:   make(map[int64]scraper.Website),
		articles:   make(map[int64]scraper.Article),
		byURL:      make(map[string]int64),
		categories: make(map[int64]scraper.Category),
		catByKey:   make(map[string]int64),
		links:      make(map[int64]map[int64]bool),
		jobs:       make(map[int64]scraper.ScrapingJob),
		errorLogs:  make(map[int64]scraper.ErrorLog),
	}
}

// AddWebsite registers a crawl target and returns its assigned ID.
func (s *Store) AddWebsite(w scraper.Website) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextWebsiteID++
	w.ID = s.nextWebsiteID
	s.websites[w.ID] = w
	return w.ID
}

func (s *Store) GetWebsiteByID(_ context.Context, id int64) (*scraper.Website, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.websites[id]
	if !ok {
		return nil, scraper.ErrNotFound
	}
	return &w, nil
}

func (s *Store) ListActiveWebsites(_ context.Context) ([]scraper.Website, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []scraper.Website
	for id := int64(1); id <= s.nextWebsiteID; id++ {
		if w, ok := s.websites[id]; ok && w.Active {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *Store) GetArticleByURL(_ context.Context, url string) (*scraper.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byURL[url]
	if !ok {
		return nil, scraper.ErrNotFound
	}
	a := cloneArticle(s.articles[id])
	return &a, nil
}

func (s *Store) CreateArticle(_ context.Context, a *scraper.Article) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextArticleID++
	stored := cloneArticle(*a)
	stored.ID = s.nextArticleID
	s.articles[stored.ID] = stored
	s.byURL[stored.URL] = stored.ID
	return stored.ID, nil
}

func (s *Store) UpdateArticle(_ context.Context, a *scraper.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[a.ID]; !ok {
		return scraper.ErrNotFound
	}
	s.articles[a.ID] = cloneArticle(*a)
	s.byURL[a.URL] = a.ID
	return nil
}

func (s *Store) GetCategoryByURL(_ context.Context, websiteID int64, url string) (*scraper.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.catByKey[categoryKey(websiteID, url)]
	if !ok {
		return nil, scraper.ErrNotFound
	}
	c := s.categories[id]
	return &c, nil
}

func (s *Store) CreateCategory(_ context.Context, c *scraper.Category) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := categoryKey(c.WebsiteID, c.URL)
	if id, ok := s.catByKey[key]; ok {
		return id, nil
	}
	s.nextCategoryID++
	stored := *c
	stored.ID = s.nextCategoryID
	s.categories[stored.ID] = stored
	s.catByKey[key] = stored.ID
	return stored.ID, nil
}

func (s *Store) AddArticleCategory(_ context.Context, articleID, categoryID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.links[articleID] == nil {
		s.links[articleID] = make(map[int64]bool)
	}
	s.links[articleID][categoryID] = true
	return nil
}

// ArticleCategories returns the category names linked to an article, in
// creation order.
func (s *Store) ArticleCategories(articleID int64) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id := int64(1); id <= s.nextCategoryID; id++ {
		if s.links[articleID][id] {
			out = append(out, s.categories[id].Name)
		}
	}
	return out
}

func (s *Store) CreateJob(_ context.Context, job *scraper.ScrapingJob) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextJobID++
	stored := *job
	stored.ID = s.nextJobID
	s.jobs[stored.ID] = stored
	return stored.ID, nil
}

func (s *Store) StartJob(_ context.Context, jobID int64, at time.Time) error {
	return s.mutateJob(jobID, func(job *scraper.ScrapingJob) {
		job.Status = scraper.JobStatusRunning
		job.StartTime = &at
	})
}

func (s *Store) CompleteJob(_ context.Context, jobID int64, found, scraped int, at time.Time) error {
	return s.mutateJob(jobID, func(job *scraper.ScrapingJob) {
		job.Status = scraper.JobStatusCompleted
		job.EndTime = &at
		job.ArticlesFound = found
		job.ArticlesScraped = scraped
	})
}

func (s *Store) FailJob(_ context.Context, jobID int64, message string, at time.Time) error {
	return s.mutateJob(jobID, func(job *scraper.ScrapingJob) {
		job.Status = scraper.JobStatusFailed
		job.EndTime = &at
		job.ErrorMessage = message
	})
}

func (s *Store) IncrementJobErrors(_ context.Context, jobID int64) error {
	return s.mutateJob(jobID, func(job *scraper.ScrapingJob) {
		job.ErrorCount++
	})
}

// Job returns a snapshot of a stored job for assertions.
func (s *Store) Job(jobID int64) (scraper.ScrapingJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	return job, ok
}

func (s *Store) CreateErrorLog(_ context.Context, e *scraper.ErrorLog) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextErrorID++
	stored := *e
	stored.ID = s.nextErrorID
	s.errorLogs[stored.ID] = stored
	return stored.ID, nil
}

func (s *Store) ErrorSummary(_ context.Context, jobID int64) (*scraper.ErrorSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary := &scraper.ErrorSummary{
		ByType:     make(map[scraper.ErrorType]int),
		BySeverity: make(map[scraper.ErrorSeverity]int),
	}
	for _, e := range s.errorLogs {
		if e.JobID != jobID {
			continue
		}
		summary.Total++
		summary.ByType[e.Type]++
		summary.BySeverity[e.Severity]++
		if e.Severity == scraper.SeverityCritical && e.ResolvedAt == nil {
			summary.UnresolvedCritical++
		}
	}
	return summary, nil
}

func (s *Store) mutateJob(jobID int64, fn func(*scraper.ScrapingJob)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return scraper.ErrNotFound
	}
	fn(&job)
	s.jobs[jobID] = job
	return nil
}

func categoryKey(websiteID int64, url string) string {
	return strconv.FormatInt(websiteID, 10) + "|" + url
}

// cloneArticle deep-copies metadata so callers cannot mutate stored state
// through a returned pointer.
func cloneArticle(a scraper.Article) scraper.Article {
	if a.Metadata != nil {
		metadata := make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			metadata[k] = v
		}
		a.Metadata = metadata
	}
	return a
}
