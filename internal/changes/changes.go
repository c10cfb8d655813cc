// Package changes decides whether a re-scraped article warrants a database
// update, and merges fresh extraction data over the stored record when it
// does. Update decisions are rule-ordered: a forced update wins, a recently
// checked article is refused, then content, metadata, category, image, author
// and date drift are checked in turn.
package changes

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"

	"github.com/naijahub/newscrawler/internal/scraper"
)

// Config holds the change-detection thresholds.
type Config struct {
	// MinUpdateInterval refuses re-checks of articles checked more recently
	// than this, unless the update is forced.
	MinUpdateInterval time.Duration
	// MaxLengthDiffPercent is the content length drift above which the
	// change counts as significant.
	MaxLengthDiffPercent float64
	// MinSimilarityRatio is the diff similarity below which the change
	// counts as significant.
	MinSimilarityRatio float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MinUpdateInterval:    24 * time.Hour,
		MaxLengthDiffPercent: 10,
		MinSimilarityRatio:   0.9,
	}
}

// ReasonRecentlyChecked is the refusal reason reported when the article is
// still inside the minimum update interval.
const ReasonRecentlyChecked = "Article was checked recently"

// Detector compares stored articles against fresh extraction drafts.
type Detector struct {
	cfg    Config
	clock  scraper.Clock
	logger *zap.Logger
}

// New creates a Detector.
func New(cfg Config, clock scraper.Clock, logger *zap.Logger) *Detector {
	if cfg.MinUpdateInterval <= 0 {
		cfg.MinUpdateInterval = 24 * time.Hour
	}
	if cfg.MaxLengthDiffPercent <= 0 {
		cfg.MaxLengthDiffPercent = 10
	}
	if cfg.MinSimilarityRatio <= 0 {
		cfg.MinSimilarityRatio = 0.9
	}
	return &Detector{cfg: cfg, clock: clock, logger: logger}
}

// ShouldUpdate reports whether the stored article should be rewritten with the
// draft's data, together with the reasons for the decision. existingCategories
// are the category names already linked to the stored article; draft
// categories not in that set count as new.
func (d *Detector) ShouldUpdate(existing *scraper.Article, draft *scraper.ArticleDraft, existingCategories []string, force bool) (bool, []string) {
	if force {
		return true, []string{"Force update enabled"}
	}

	now := d.clock.Now()
	if !existing.LastCheckedAt.IsZero() && now.Sub(existing.LastCheckedAt) < d.cfg.MinUpdateInterval {
		return false, []string{ReasonRecentlyChecked}
	}

	var reasons []string

	if d.significantContentChange(existing.Content, draft.Content) {
		reasons = append(reasons, "Significant content changes detected")
	}
	if metadataChanged(existing.Metadata, draft.Metadata) {
		reasons = append(reasons, "Metadata changes detected")
	}
	if len(newCategories(existingCategories, draft.Categories)) > 0 {
		reasons = append(reasons, "New categories available")
	}
	if draft.ImageURL != "" && draft.ImageURL != existing.ImageURL {
		reasons = append(reasons, "Image URL changed")
	}
	if draft.Author != "" && draft.Author != existing.Author {
		reasons = append(reasons, "Author information changed")
	}
	if !draft.PublishedAt.IsZero() && !draft.PublishedAt.Equal(existing.PublishedAt) {
		reasons = append(reasons, "Published date changed")
	}

	if len(reasons) == 0 {
		return false, []string{"No significant changes detected"}
	}

	d.logger.Debug("article update warranted",
		zap.String("url", existing.URL),
		zap.Strings("reasons", reasons),
	)
	return true, reasons
}

// significantContentChange reports whether the body text drifted enough to
// matter: a length change beyond the threshold, a similarity ratio below the
// threshold, or paragraphs absent from the stored copy.
func (d *Detector) significantContentChange(existing, fresh string) bool {
	if existing == "" && fresh != "" {
		return true
	}
	if fresh == "" {
		return false
	}

	lengthDiff := len(fresh) - len(existing)
	if lengthDiff < 0 {
		lengthDiff = -lengthDiff
	}
	maxLen := len(existing)
	if maxLen < 1 {
		maxLen = 1
	}
	if float64(lengthDiff)/float64(maxLen)*100 > d.cfg.MaxLengthDiffPercent {
		return true
	}

	matcher := difflib.NewMatcher(difflib.SplitLines(existing), difflib.SplitLines(fresh))
	if matcher.Ratio() < d.cfg.MinSimilarityRatio {
		return true
	}

	existingParagraphs := paragraphSet(existing)
	for _, p := range paragraphs(fresh) {
		if !existingParagraphs[p] {
			return true
		}
	}
	return false
}

// metadataChanged reports new keys or changed values in the fresh metadata.
// The validation key is the validator's own output and never counts as a
// content change.
func metadataChanged(existing, fresh map[string]any) bool {
	for key, value := range fresh {
		if key == "validation" {
			continue
		}
		old, ok := existing[key]
		if !ok {
			return true
		}
		if !reflect.DeepEqual(old, value) {
			return true
		}
	}
	return false
}

func newCategories(existing, fresh []string) []string {
	known := make(map[string]bool, len(existing))
	for _, name := range existing {
		known[strings.ToLower(strings.TrimSpace(name))] = true
	}
	var out []string
	for _, name := range fresh {
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		if !known[strings.ToLower(name)] {
			out = append(out, name)
		}
	}
	return out
}

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

func paragraphs(content string) []string {
	var out []string
	for _, block := range paragraphBreak.Split(content, -1) {
		if block = strings.TrimSpace(block); block != "" {
			out = append(out, block)
		}
	}
	return out
}

func paragraphSet(content string) map[string]bool {
	set := make(map[string]bool)
	for _, p := range paragraphs(content) {
		set[p] = true
	}
	return set
}

// Merge returns the stored article rewritten with the draft's non-empty
// fields. Empty draft fields keep the stored value, metadata is merged key by
// key with fresh values winning, the check timestamp is refreshed and the
// update counter incremented. The input article is not modified.
func (d *Detector) Merge(existing *scraper.Article, draft *scraper.ArticleDraft) *scraper.Article {
	merged := *existing
	merged.LastCheckedAt = d.clock.Now()
	merged.UpdateCount = existing.UpdateCount + 1

	if draft.Title != "" {
		merged.Title = draft.Title
	}
	if draft.Content != "" {
		merged.Content = draft.Content
	}
	if draft.ContentMarkdown != "" {
		merged.ContentMarkdown = draft.ContentMarkdown
	}
	if draft.ContentHTML != "" {
		merged.ContentHTML = draft.ContentHTML
	}
	if draft.Author != "" {
		merged.Author = draft.Author
	}
	if draft.ImageURL != "" {
		merged.ImageURL = draft.ImageURL
	}
	if !draft.PublishedAt.IsZero() {
		merged.PublishedAt = draft.PublishedAt
	}

	metadata := make(map[string]any, len(existing.Metadata)+len(draft.Metadata))
	for key, value := range existing.Metadata {
		metadata[key] = value
	}
	for key, value := range draft.Metadata {
		metadata[key] = value
	}
	merged.Metadata = metadata

	return &merged
}

// Summary renders a human-readable list of the differences between the stored
// article and the draft, one change per line.
func Summary(existing *scraper.Article, draft *scraper.ArticleDraft, existingCategories []string) string {
	var lines []string

	if draft.Title != "" && draft.Title != existing.Title {
		lines = append(lines, fmt.Sprintf("Title changed: '%s' -> '%s'", existing.Title, draft.Title))
	}
	if draft.Content != "" && draft.Content != existing.Content {
		lengthDiff := len(draft.Content) - len(existing.Content)
		maxLen := len(existing.Content)
		if maxLen < 1 {
			maxLen = 1
		}
		lines = append(lines, fmt.Sprintf("Content length changed by %d characters (%.2f%%)",
			lengthDiff, float64(lengthDiff)/float64(maxLen)*100))
	}
	if draft.Author != "" && draft.Author != existing.Author {
		lines = append(lines, fmt.Sprintf("Author changed: '%s' -> '%s'", existing.Author, draft.Author))
	}
	if !draft.PublishedAt.IsZero() && !draft.PublishedAt.Equal(existing.PublishedAt) {
		lines = append(lines, fmt.Sprintf("Published date changed: '%s' -> '%s'",
			existing.PublishedAt.Format(time.RFC3339), draft.PublishedAt.Format(time.RFC3339)))
	}
	if draft.ImageURL != "" && draft.ImageURL != existing.ImageURL {
		lines = append(lines, fmt.Sprintf("Image URL changed: '%s' -> '%s'", existing.ImageURL, draft.ImageURL))
	}

	keys := make([]string, 0, len(draft.Metadata))
	for key := range draft.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		old, ok := existing.Metadata[key]
		switch {
		case !ok:
			lines = append(lines, fmt.Sprintf("New metadata key: '%s'", key))
		case key != "validation" && !reflect.DeepEqual(old, draft.Metadata[key]):
			lines = append(lines, fmt.Sprintf("Metadata value changed for key: '%s'", key))
		}
	}

	if added := newCategories(existingCategories, draft.Categories); len(added) > 0 {
		lines = append(lines, fmt.Sprintf("New categories: %s", strings.Join(added, ", ")))
	}

	if len(lines) == 0 {
		return "No significant changes detected"
	}
	return strings.Join(lines, "\n")
}
