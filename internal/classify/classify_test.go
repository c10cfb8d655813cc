package classify

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/naijahub/newscrawler/internal/scraper"
)

const base = "https://www.blueprint.ng"

func result(html string, meta map[string]string) *scraper.FetchResult {
	if meta == nil {
		meta = map[string]string{}
	}
	return &scraper.FetchResult{
		URL:      base + "/some-story-slug-here",
		HTML:     html,
		Metadata: meta,
		Success:  true,
	}
}

func names(cats []scraper.Category) []string {
	out := make([]string, 0, len(cats))
	for _, c := range cats {
		out = append(out, c.Name)
	}
	return out
}

func TestCategorizeFromSectionMeta(t *testing.T) {
	c := New(zap.NewNop())
	cats := c.Categorize(&scraper.ArticleDraft{}, result("", map[string]string{
		"article:section": "politics",
	}), base)

	require.Equal(t, []string{"Politics"}, names(cats))
	require.Equal(t, base+"/category/politics", cats[0].URL)
}

func TestCategorizeFromDCSubject(t *testing.T) {
	c := New(zap.NewNop())
	cats := c.Categorize(&scraper.ArticleDraft{}, result("", map[string]string{
		"dc.subject": "business, economy watch",
	}), base)

	require.Equal(t, []string{"Business", "Economy Watch"}, names(cats))
	require.Equal(t, base+"/category/economy-watch", cats[1].URL)
}

func TestCategorizeFromBreadcrumbs(t *testing.T) {
	html := `<ol>
<li class="breadcrumb-item"><a href="/">Home</a></li>
<li class="breadcrumb-item"><a href="/category/metro">Metro</a></li>
</ol>`
	c := New(zap.NewNop())
	cats := c.Categorize(&scraper.ArticleDraft{}, result(html, nil), base)
	require.Contains(t, names(cats), "Metro")
}

func TestCategorizeFromJSONLD(t *testing.T) {
	html := `<script type="application/ld+json">
{"@type":"NewsArticle","articleSection":["Sports","Football"],
"breadcrumb":{"itemListElement":[{"name":"Sports"}]}}
</script>`
	c := New(zap.NewNop())
	cats := c.Categorize(&scraper.ArticleDraft{}, result(html, nil), base)
	require.ElementsMatch(t, []string{"Sports", "Football"}, names(cats))
}

func TestCategorizeFromURLSegment(t *testing.T) {
	c := New(zap.NewNop())
	res := result("", map[string]string{
		"canonical": base + "/category/tech-news/new-phone-launch",
	})
	cats := c.Categorize(&scraper.ArticleDraft{}, res, base)
	require.Contains(t, names(cats), "Tech News")
}

func TestCategorizeKeywordFallback(t *testing.T) {
	c := New(zap.NewNop())
	draft := &scraper.ArticleDraft{
		Title:   "Super Eagles win the football championship",
		Content: "The team played a great match. The tournament final drew fans of the league from every state.",
	}
	cats := c.Categorize(draft, result("", nil), base)

	require.NotEmpty(t, cats)
	require.Equal(t, "Sports", cats[0].Name)
	require.LessOrEqual(t, len(cats), 3)
}

func TestCategorizeDefaultsToNews(t *testing.T) {
	c := New(zap.NewNop())
	cats := c.Categorize(&scraper.ArticleDraft{Title: "Zzz", Content: "Qqq"}, result("", nil), base)
	require.Equal(t, []string{"News"}, names(cats))
}

func TestCategorizeExtractorCategoriesSuppressSignals(t *testing.T) {
	c := New(zap.NewNop())
	draft := &scraper.ArticleDraft{Categories: []string{"Politics"}}
	res := result(`<ol><li class="breadcrumb-item"><a href="/metro">Metro</a></li></ol>`,
		map[string]string{"article:section": "Entertainment"})

	cats := c.Categorize(draft, res, base)
	require.Equal(t, []string{"Politics"}, names(cats))
}

func TestCategorizeDeduplicates(t *testing.T) {
	c := New(zap.NewNop())
	draft := &scraper.ArticleDraft{Categories: []string{"politics", "Politics", "POLITICS"}}
	cats := c.Categorize(draft, result("", nil), base)
	require.Equal(t, []string{"Politics"}, names(cats))
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "Politics", NormalizeName(" politics "))
	require.Equal(t, "AI News", NormalizeName("ai news"))
	require.Equal(t, "TV Entertainment", NormalizeName("tv & entertainment"))
	require.Equal(t, "UK Affairs", NormalizeName("uk affairs"))
}

func TestCategoryURL(t *testing.T) {
	require.Equal(t, base+"/category/politics", CategoryURL(base, "Politics"))
	require.Equal(t, base+"/category/tv-entertainment", CategoryURL(base+"/", "TV & Entertainment"))
}
