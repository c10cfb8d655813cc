// Package extract turns fetched pages into article drafts using a tiered
// strategy chain: a per-site CSS schema, then readability heuristics, then a
// plain-text walk. Later tiers only fill fields the earlier tiers left empty.
package extract

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"go.uber.org/zap"

	"github.com/naijahub/newscrawler/internal/scraper"
)

// Strategy is one extraction tier.
type Strategy interface {
	Name() string
	Extract(res *scraper.FetchResult) (*scraper.ArticleDraft, error)
}

// Extractor runs the tier chain for one website.
type Extractor struct {
	strategies []Strategy
	logger     *zap.Logger
	onTierHit  func(tier string)
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTierObserver registers a callback invoked once per tier that
// contributed any field.
func WithTierObserver(fn func(tier string)) Option {
	return func(e *Extractor) { e.onTierHit = fn }
}

// New builds an Extractor. A nil schema means the structured tier runs with
// the default WordPress-style schema.
func New(schema *Schema, logger *zap.Logger, opts ...Option) *Extractor {
	s := DefaultSchema()
	if schema != nil {
		s = *schema
	}
	e := &Extractor{
		strategies: []Strategy{
			NewStructured(s),
			NewHeuristic(),
			NewPlainText(),
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract produces the article draft for a fetched page. Every tier failure
// falls through to the next tier; only a fully empty result is an error.
func (e *Extractor) Extract(res *scraper.FetchResult) (*scraper.ArticleDraft, error) {
	draft := &scraper.ArticleDraft{
		URL:      res.URL,
		Metadata: map[string]any{},
	}
	var tiersUsed []string

	for _, strategy := range e.strategies {
		if complete(draft) {
			break
		}
		candidate, err := strategy.Extract(res)
		if err != nil {
			e.logger.Warn("extraction tier failed",
				zap.String("tier", strategy.Name()),
				zap.String("url", res.URL),
				zap.Error(err),
			)
			continue
		}
		if merge(draft, candidate) {
			tiersUsed = append(tiersUsed, strategy.Name())
			if e.onTierHit != nil {
				e.onTierHit(strategy.Name())
			}
		}
	}

	if draft.Title == "" && draft.Content == "" {
		return nil, scraper.NewScrapeError(scraper.ErrorTypeContent,
			"no tier extracted title or content from "+res.URL, nil)
	}

	e.finalize(draft, res, tiersUsed)
	return draft, nil
}

// merge copies non-empty fields of src into empty fields of dst and reports
// whether anything was taken.
func merge(dst, src *scraper.ArticleDraft) bool {
	took := false
	if dst.Title == "" && src.Title != "" {
		dst.Title = src.Title
		took = true
	}
	if dst.Content == "" && src.Content != "" {
		dst.Content = src.Content
		took = true
	}
	if dst.ContentHTML == "" && src.ContentHTML != "" {
		dst.ContentHTML = src.ContentHTML
		took = true
	}
	if dst.Author == "" && src.Author != "" {
		dst.Author = src.Author
		took = true
	}
	if dst.ImageURL == "" && src.ImageURL != "" {
		dst.ImageURL = src.ImageURL
		took = true
	}
	if len(dst.Categories) == 0 && len(src.Categories) > 0 {
		dst.Categories = src.Categories
		took = true
	}
	if len(dst.Tags) == 0 && len(src.Tags) > 0 {
		dst.Tags = src.Tags
		took = true
	}
	for k, v := range src.Metadata {
		if _, exists := dst.Metadata[k]; !exists {
			dst.Metadata[k] = v
			took = true
		}
	}
	return took
}

func complete(d *scraper.ArticleDraft) bool {
	_, hasDate := d.Metadata["raw_published_date"]
	return d.Title != "" && d.Content != "" && d.Author != "" &&
		d.ImageURL != "" && hasDate
}

// finalize normalizes the date, supplements tags from page metadata, and
// attaches derived metadata.
func (e *Extractor) finalize(draft *scraper.ArticleDraft, res *scraper.FetchResult, tiersUsed []string) {
	if draft.ContentMarkdown == "" {
		draft.ContentMarkdown = res.Markdown
	}
	if draft.ImageURL == "" {
		if img, ok := res.Metadata["og:image"]; ok {
			draft.ImageURL = img
		}
	}

	e.normalizeDate(draft, res)
	supplementTags(draft, res)

	wc := WordCount(draft.Content)
	draft.Metadata["word_count"] = wc
	draft.Metadata["reading_time"] = ReadingTime(wc)
	draft.Metadata["extraction_tiers"] = tiersUsed
	if res.UsedHeadless {
		draft.Metadata["rendered"] = true
	}
}

// normalizeDate parses whatever date string the tiers found and stores it as
// UTC. A missing or unparseable date stays missing; the draft is flagged
// instead of stamped with the current time.
func (e *Extractor) normalizeDate(draft *scraper.ArticleDraft, res *scraper.FetchResult) {
	raw, _ := draft.Metadata["raw_published_date"].(string)
	if raw == "" {
		raw = res.Metadata["article:published_time"]
	}
	if raw == "" {
		raw = res.Metadata["og:article:published_time"]
	}

	if raw != "" {
		if t, err := dateparse.ParseAny(raw); err == nil {
			draft.PublishedAt = t.UTC()
			delete(draft.Metadata, "raw_published_date")
			return
		}
		e.logger.Debug("unparseable published date",
			zap.String("url", draft.URL),
			zap.String("raw", raw),
		)
	}

	draft.DateMissing = true
	draft.PublishedAt = time.Time{}
	draft.Metadata["date_missing"] = true
}

func supplementTags(draft *scraper.ArticleDraft, res *scraper.FetchResult) {
	seen := make(map[string]bool, len(draft.Tags))
	for _, t := range draft.Tags {
		seen[strings.ToLower(t)] = true
	}
	add := func(tag string) {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[strings.ToLower(tag)] {
			return
		}
		seen[strings.ToLower(tag)] = true
		draft.Tags = append(draft.Tags, tag)
	}

	if tag, ok := res.Metadata["article:tag"]; ok {
		add(tag)
	}
	if keywords, ok := res.Metadata["keywords"]; ok {
		for _, k := range strings.Split(keywords, ",") {
			add(k)
		}
	}
}
