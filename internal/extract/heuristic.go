package extract

import (
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"github.com/naijahub/newscrawler/internal/scraper"
)

// Heuristic extracts with go-readability. It is the second tier, used when
// the site schema misses fields or the page layout changed.
type Heuristic struct{}

// NewHeuristic creates the readability strategy.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Name identifies the tier in metadata and metrics.
func (h *Heuristic) Name() string { return "heuristic" }

// Extract runs readability over the raw page.
func (h *Heuristic) Extract(res *scraper.FetchResult) (*scraper.ArticleDraft, error) {
	parsedURL, err := url.Parse(res.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(res.HTML), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("readability: %w", err)
	}

	draft := &scraper.ArticleDraft{
		URL:      res.URL,
		Title:    strings.TrimSpace(article.Title),
		Author:   strings.TrimSpace(article.Byline),
		Content:  strings.TrimSpace(article.TextContent),
		ImageURL: article.Image,
		Metadata: map[string]any{},
	}
	if article.Content != "" {
		draft.ContentHTML = CleanContentHTML(article.Content)
	}
	if excerpt := strings.TrimSpace(article.Excerpt); excerpt != "" {
		draft.Metadata["excerpt"] = excerpt
	}
	if raw, ok := res.Metadata["article:published_time"]; ok {
		draft.Metadata["raw_published_date"] = raw
	}
	return draft, nil
}
