package changes

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/naijahub/newscrawler/internal/scraper"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func newDetector() *Detector {
	return New(DefaultConfig(), fixedClock{now: testNow}, zap.NewNop())
}

const bodyText = "The federal government approved a new rail corridor on Monday.\n\n" +
	"Construction is expected to start in the first quarter of next year.\n\n" +
	"Officials said funding comes from a mix of bonds and private partners."

func storedArticle() *scraper.Article {
	return &scraper.Article{
		ID:            7,
		Title:         "Government approves new rail corridor",
		URL:           "https://www.blueprint.ng/government-approves-new-rail-corridor",
		Content:       bodyText,
		Author:        "Ada Obi",
		PublishedAt:   testNow.AddDate(0, 0, -10),
		ImageURL:      "https://www.blueprint.ng/img/rail.jpg",
		Metadata:      map[string]any{"word_count": 33},
		LastCheckedAt: testNow.Add(-48 * time.Hour),
		UpdateCount:   2,
	}
}

func identicalDraft() *scraper.ArticleDraft {
	stored := storedArticle()
	return &scraper.ArticleDraft{
		Title:       stored.Title,
		URL:         stored.URL,
		Content:     stored.Content,
		Author:      stored.Author,
		PublishedAt: stored.PublishedAt,
		ImageURL:    stored.ImageURL,
		Metadata:    map[string]any{"word_count": 33},
	}
}

func TestShouldUpdateIdenticalRescrape(t *testing.T) {
	update, reasons := newDetector().ShouldUpdate(storedArticle(), identicalDraft(), nil, false)
	require.False(t, update)
	require.Equal(t, []string{"No significant changes detected"}, reasons)
}

func TestShouldUpdateForceWins(t *testing.T) {
	existing := storedArticle()
	existing.LastCheckedAt = testNow.Add(-time.Minute)

	update, reasons := newDetector().ShouldUpdate(existing, identicalDraft(), nil, true)
	require.True(t, update)
	require.Equal(t, []string{"Force update enabled"}, reasons)
}

func TestShouldUpdateRecentlyCheckedRefused(t *testing.T) {
	existing := storedArticle()
	existing.LastCheckedAt = testNow.Add(-time.Hour)

	draft := identicalDraft()
	draft.Content = "Completely different body that would otherwise force an update.\n\nWith a second paragraph too."

	update, reasons := newDetector().ShouldUpdate(existing, draft, nil, false)
	require.False(t, update)
	require.Equal(t, []string{"Article was checked recently"}, reasons)
}

func TestShouldUpdateContentGrewBeyondThreshold(t *testing.T) {
	draft := identicalDraft()
	draft.Content = bodyText + "\n\n" + strings.Repeat("Extra reporting on the corridor route. ", 3)

	update, reasons := newDetector().ShouldUpdate(storedArticle(), draft, nil, false)
	require.True(t, update)
	require.Contains(t, reasons, "Significant content changes detected")
}

func TestShouldUpdateRewrittenContentSimilarLength(t *testing.T) {
	draft := identicalDraft()
	draft.Content = "The state government rejected an old road corridor on Friday.\n\n" +
		"Demolition is expected to start in the final quarter of this year.\n\n" +
		"Critics said funding relies on a mix of loans and foreign partners."

	update, reasons := newDetector().ShouldUpdate(storedArticle(), draft, nil, false)
	require.True(t, update)
	require.Contains(t, reasons, "Significant content changes detected")
}

func TestShouldUpdateEmptyFreshContentIsNotAChange(t *testing.T) {
	draft := identicalDraft()
	draft.Content = ""

	update, reasons := newDetector().ShouldUpdate(storedArticle(), draft, nil, false)
	require.False(t, update)
	require.Equal(t, []string{"No significant changes detected"}, reasons)
}

func TestShouldUpdateFillsEmptyStoredContent(t *testing.T) {
	existing := storedArticle()
	existing.Content = ""

	update, _ := newDetector().ShouldUpdate(existing, identicalDraft(), nil, false)
	require.True(t, update)
}

func TestShouldUpdateMetadataDelta(t *testing.T) {
	draft := identicalDraft()
	draft.Metadata["reading_time"] = 2

	update, reasons := newDetector().ShouldUpdate(storedArticle(), draft, nil, false)
	require.True(t, update)
	require.Contains(t, reasons, "Metadata changes detected")
}

func TestShouldUpdateIgnoresValidationMetadata(t *testing.T) {
	existing := storedArticle()
	existing.Metadata["validation"] = map[string]any{"score": 90.0}

	draft := identicalDraft()
	draft.Metadata["validation"] = map[string]any{"score": 95.0}

	update, _ := newDetector().ShouldUpdate(existing, draft, nil, false)
	require.False(t, update)
}

func TestShouldUpdateNewCategories(t *testing.T) {
	draft := identicalDraft()
	draft.Categories = []string{"Politics", "Metro"}

	update, reasons := newDetector().ShouldUpdate(storedArticle(), draft, []string{"politics"}, false)
	require.True(t, update)
	require.Contains(t, reasons, "New categories available")
}

func TestShouldUpdateKnownCategoriesAreNotNew(t *testing.T) {
	draft := identicalDraft()
	draft.Categories = []string{"Politics"}

	update, _ := newDetector().ShouldUpdate(storedArticle(), draft, []string{"Politics"}, false)
	require.False(t, update)
}

func TestShouldUpdateFieldDrift(t *testing.T) {
	for name, mutate := range map[string]func(*scraper.ArticleDraft){
		"Image URL changed":          func(d *scraper.ArticleDraft) { d.ImageURL = "https://www.blueprint.ng/img/other.jpg" },
		"Author information changed": func(d *scraper.ArticleDraft) { d.Author = "Bola Ade" },
		"Published date changed":     func(d *scraper.ArticleDraft) { d.PublishedAt = testNow.AddDate(0, 0, -9) },
	} {
		draft := identicalDraft()
		mutate(draft)
		update, reasons := newDetector().ShouldUpdate(storedArticle(), draft, nil, false)
		require.True(t, update, name)
		require.Contains(t, reasons, name)
	}
}

func TestMergeOverlaysNonEmptyFields(t *testing.T) {
	existing := storedArticle()
	draft := identicalDraft()
	draft.Title = "Government approves new rail corridor for Lagos"
	draft.Author = ""
	draft.Metadata = map[string]any{"word_count": 40, "reading_time": 1}

	merged := newDetector().Merge(existing, draft)

	require.Equal(t, draft.Title, merged.Title)
	require.Equal(t, existing.Author, merged.Author)
	require.Equal(t, existing.ID, merged.ID)
	require.Equal(t, testNow, merged.LastCheckedAt)
	require.Equal(t, existing.UpdateCount+1, merged.UpdateCount)
	require.Equal(t, 40, merged.Metadata["word_count"])
	require.Equal(t, 1, merged.Metadata["reading_time"])

	// The stored article is left untouched.
	require.Equal(t, "Government approves new rail corridor", existing.Title)
	require.Equal(t, 2, existing.UpdateCount)
}

func TestMergeKeepsMissingDate(t *testing.T) {
	existing := storedArticle()
	existing.PublishedAt = time.Time{}

	draft := identicalDraft()
	draft.PublishedAt = time.Time{}
	draft.DateMissing = true

	merged := newDetector().Merge(existing, draft)
	require.True(t, merged.PublishedAt.IsZero())
}

func TestMergeIdempotent(t *testing.T) {
	existing := storedArticle()
	draft := identicalDraft()
	draft.Content = bodyText + "\n\nA fourth paragraph added by the site editors."

	first := newDetector().Merge(existing, draft)
	second := newDetector().Merge(first, draft)

	require.Equal(t, first.UpdateCount+1, second.UpdateCount)
	second.UpdateCount = first.UpdateCount
	require.Equal(t, first, second)
}

func TestSummaryListsChanges(t *testing.T) {
	draft := identicalDraft()
	draft.Title = "Government approves rail corridor after review"
	draft.Author = "Bola Ade"
	draft.Metadata["reading_time"] = 1
	draft.Categories = []string{"Metro"}

	summary := Summary(storedArticle(), draft, nil)
	require.Contains(t, summary, "Title changed:")
	require.Contains(t, summary, "Author changed: 'Ada Obi' -> 'Bola Ade'")
	require.Contains(t, summary, "New metadata key: 'reading_time'")
	require.Contains(t, summary, "New categories: Metro")
}

func TestSummaryNoChanges(t *testing.T) {
	require.Equal(t, "No significant changes detected", Summary(storedArticle(), identicalDraft(), nil))
}
