package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/naijahub/newscrawler/internal/scraper"
)

const schemaPage = `<!DOCTYPE html>
<html><head>
<title>Budget passed | Blueprint</title>
<meta property="og:image" content="https://www.blueprint.ng/img/budget.jpg">
<meta property="article:tag" content="Budget">
<meta name="keywords" content="senate, appropriation">
</head><body>
<article>
<h1 class="entry-title">Senate passes 2026 budget</h1>
<a rel="author">Musa Ibrahim</a>
<time class="entry-date" datetime="2026-01-15T09:30:00+01:00">January 15, 2026</time>
<div class="entry-content">
<p>The Senate on Wednesday passed the 2026 appropriation bill.</p>
<p>The bill now goes to the president for assent.</p>
<div class="advertisement">Buy gold now!</div>
</div>
<div class="cat-links"><a href="/category/politics">Politics</a></div>
<div class="tags-links"><a href="/tag/senate">Senate</a></div>
</article>
</body></html>`

func fetchResult(html string) *scraper.FetchResult {
	return &scraper.FetchResult{
		URL:        "https://www.blueprint.ng/senate-passes-2026-budget",
		StatusCode: 200,
		HTML:       html,
		Markdown:   "# fallback markdown",
		Metadata:   map[string]string{},
		Success:    true,
	}
}

func TestExtractStructuredPage(t *testing.T) {
	e := New(nil, zap.NewNop())
	draft, err := e.Extract(fetchResult(schemaPage))
	require.NoError(t, err)

	require.Equal(t, "Senate passes 2026 budget", draft.Title)
	require.Equal(t, "Musa Ibrahim", draft.Author)
	require.Contains(t, draft.Content, "appropriation bill")
	require.NotContains(t, draft.ContentHTML, "Buy gold now!")
	require.Equal(t, []string{"Politics"}, draft.Categories)
	require.Contains(t, draft.Tags, "Senate")
	require.Contains(t, draft.Tags, "Budget")
	require.Contains(t, draft.Tags, "appropriation")

	tiers, ok := draft.Metadata["extraction_tiers"].([]string)
	require.True(t, ok)
	require.Contains(t, tiers, "structured")
}

func TestExtractNormalizesDateToUTC(t *testing.T) {
	e := New(nil, zap.NewNop())
	draft, err := e.Extract(fetchResult(schemaPage))
	require.NoError(t, err)

	require.False(t, draft.DateMissing)
	require.Equal(t, time.UTC, draft.PublishedAt.Location())
	require.Equal(t, 2026, draft.PublishedAt.Year())
	require.Equal(t, 8, draft.PublishedAt.Hour())
}

func TestExtractMissingDateStaysMissing(t *testing.T) {
	page := strings.ReplaceAll(schemaPage,
		`<time class="entry-date" datetime="2026-01-15T09:30:00+01:00">January 15, 2026</time>`, "")
	e := New(nil, zap.NewNop())
	draft, err := e.Extract(fetchResult(page))
	require.NoError(t, err)

	require.True(t, draft.DateMissing)
	require.True(t, draft.PublishedAt.IsZero())
	require.Equal(t, true, draft.Metadata["date_missing"])
}

func TestExtractFallsThroughWhenSchemaMisses(t *testing.T) {
	plain := `<html><body>
<p>Gunmen attacked a village in Zamfara state on Friday, residents said.</p>
<p>Security forces have been deployed to the area, a spokesman confirmed.</p>
<p>The attack is the third in the region this month.</p>
</body></html>`

	var tiersHit []string
	e := New(nil, zap.NewNop(), WithTierObserver(func(tier string) {
		tiersHit = append(tiersHit, tier)
	}))

	draft, err := e.Extract(fetchResult(plain))
	require.NoError(t, err)

	require.Contains(t, draft.Content, "Zamfara")
	require.NotContains(t, tiersHit, "structured")
	require.NotEmpty(t, tiersHit)
}

func TestExtractLaterTiersNeverOverwrite(t *testing.T) {
	page := `<html><head><title>Doc Title From Head</title></head><body>
<h1 class="entry-title">Structured Wins Title</h1>
<p>Paragraph one about the governor and the new road project in Kano.</p>
<p>Paragraph two with more reporting details from correspondents.</p>
</body></html>`

	e := New(nil, zap.NewNop())
	draft, err := e.Extract(fetchResult(page))
	require.NoError(t, err)

	require.Equal(t, "Structured Wins Title", draft.Title)
	require.NotEmpty(t, draft.Content)
}

func TestExtractEmptyPageFails(t *testing.T) {
	e := New(nil, zap.NewNop())
	_, err := e.Extract(fetchResult("<html><body></body></html>"))
	require.Error(t, err)
	require.Equal(t, scraper.ErrorTypeContent, scraper.ClassifyError(err))
}

func TestExtractDerivedMetadata(t *testing.T) {
	e := New(nil, zap.NewNop())
	draft, err := e.Extract(fetchResult(schemaPage))
	require.NoError(t, err)

	wc, ok := draft.Metadata["word_count"].(int)
	require.True(t, ok)
	require.Greater(t, wc, 5)
	require.Equal(t, 1, draft.Metadata["reading_time"])
	require.Equal(t, "# fallback markdown", draft.ContentMarkdown)
}

func TestPlainTextStrategy(t *testing.T) {
	res := fetchResult(`<html><head><title>Head Title</title></head><body>
<nav><p>Skip this navigation text</p></nav>
<p>Keep this paragraph.</p>
<p>And this one too.</p>
</body></html>`)

	draft, err := NewPlainText().Extract(res)
	require.NoError(t, err)
	require.Equal(t, "Head Title", draft.Title)
	require.Equal(t, "Keep this paragraph.\n\nAnd this one too.", draft.Content)
	require.NotContains(t, draft.Content, "navigation")
}

func TestCleanContentHTML(t *testing.T) {
	in := `<div><p>Real content stays.</p>
<div class="advertisement">ads</div>
<div class="share-buttons">share</div>
<script>evil()</script>
<p>  </p>
<p>More real content.</p></div>`

	out := CleanContentHTML(in)
	require.Contains(t, out, "Real content stays.")
	require.Contains(t, out, "More real content.")
	require.NotContains(t, out, "ads")
	require.NotContains(t, out, "share")
	require.NotContains(t, out, "evil")
}

func TestReadingTime(t *testing.T) {
	require.Equal(t, 1, ReadingTime(0))
	require.Equal(t, 1, ReadingTime(150))
	require.Equal(t, 2, ReadingTime(450))
}
