// Package classify assigns categories to articles the extractor left
// uncategorized. It reads explicit page signals first (section meta tags,
// breadcrumbs, JSON-LD, category segments in the URL) and falls back to
// keyword-frequency scoring over the title and body. Every article gets at
// least one category.
package classify

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/naijahub/newscrawler/internal/scraper"
)

// DefaultCategory is used when no signal and no keyword scored.
const DefaultCategory = "News"

var urlCategoryIndicators = map[string]bool{
	"category": true, "section": true, "topic": true,
	"cat": true, "dept": true, "channel": true,
}

var categoryKeywords = map[string][]string{
	"Politics":      {"politics", "government", "election", "vote", "president", "minister", "parliament", "senate", "congress", "democrat", "republican"},
	"Business":      {"business", "economy", "market", "stock", "finance", "investment", "company", "corporate", "entrepreneur", "startup"},
	"Technology":    {"technology", "tech", "software", "hardware", "app", "digital", "internet", "web", "online", "cyber", "ai", "artificial intelligence", "machine learning", "blockchain", "crypto"},
	"Entertainment": {"entertainment", "celebrity", "movie", "film", "music", "album", "song", "artist", "actor", "actress", "tv", "television", "show", "series"},
	"Sports":        {"sports", "football", "soccer", "basketball", "tennis", "golf", "cricket", "rugby", "athlete", "tournament", "championship", "league", "match", "game", "player", "team"},
	"Health":        {"health", "medical", "medicine", "doctor", "hospital", "disease", "virus", "pandemic", "vaccine", "treatment", "wellness", "fitness"},
	"Science":       {"science", "research", "study", "scientist", "discovery", "space", "astronomy", "physics", "chemistry", "biology", "environment", "climate"},
	"Education":     {"education", "school", "university", "college", "student", "teacher", "professor", "academic", "learning", "course", "degree", "curriculum"},
	"Travel":        {"travel", "tourism", "tourist", "destination", "vacation", "holiday", "trip", "tour", "hotel", "resort", "flight", "airline"},
	"Food":          {"food", "recipe", "cooking", "chef", "restaurant", "cuisine", "meal", "dish", "ingredient", "diet", "nutrition"},
	"Fashion":       {"fashion", "style", "clothing", "dress", "outfit", "designer", "model", "trend", "collection", "runway", "brand"},
	"Lifestyle":     {"lifestyle", "living", "home", "family", "relationship", "marriage", "wedding", "parenting", "child", "baby"},
	"Opinion":       {"opinion", "editorial", "column", "commentary", "perspective", "viewpoint", "analysis"},
	"World":         {"world", "international", "global", "foreign", "country", "nation", "continent", "region"},
	"Local":         {"local", "community", "neighborhood", "city", "town", "municipal", "regional", "state", "provincial"},
}

// Abbreviations restored after title-casing mangles them.
var abbreviations = [][2]string{
	{"Ai", "AI"}, {"Ml", "ML"}, {"Iot", "IoT"}, {"Nft", "NFT"},
	{"Vr", "VR"}, {"Ar", "AR"}, {"Ui", "UI"}, {"Ux", "UX"},
	{"Api", "API"}, {"Seo", "SEO"}, {"Ceo", "CEO"}, {"Cto", "CTO"},
	{"Cfo", "CFO"}, {"Hr", "HR"}, {"Pr", "PR"}, {"Tv", "TV"},
	{"Usa", "USA"}, {"Uk", "UK"}, {"Eu", "EU"}, {"Un", "UN"}, {"Us", "US"},
}

var nonWordOrSpace = regexp.MustCompile(`[^\w\s]`)
var multiSpace = regexp.MustCompile(`\s+`)
var nonSlugChar = regexp.MustCompile(`[^\w\-]`)

// Classifier derives categories for one article at a time.
type Classifier struct {
	logger *zap.Logger
}

// New creates a Classifier.
func New(logger *zap.Logger) *Classifier {
	return &Classifier{logger: logger}
}

// Categorize returns the normalized categories for a draft, each with a
// deterministic category URL under the site's base URL. Extractor-produced
// categories take precedence: page signals and keyword scoring only run when
// the draft carries none.
func (c *Classifier) Categorize(draft *scraper.ArticleDraft, res *scraper.FetchResult, baseURL string) []scraper.Category {
	names := append([]string(nil), draft.Categories...)
	if len(names) == 0 {
		names = c.signalCategories(res)
	}
	if len(names) == 0 {
		names = c.keywordCategories(draft.Title, draft.Content)
	}
	if len(names) == 0 {
		names = []string{DefaultCategory}
	}

	seen := make(map[string]bool)
	var out []scraper.Category
	for _, name := range names {
		normalized := NormalizeName(name)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, scraper.Category{
			Name: normalized,
			URL:  CategoryURL(baseURL, normalized),
		})
	}
	return out
}

// signalCategories collects the explicit category markers on the page.
func (c *Classifier) signalCategories(res *scraper.FetchResult) []string {
	var names []string

	for _, key := range []string{"article:section", "og:article:section", "article:section:secondary"} {
		if v := strings.TrimSpace(res.Metadata[key]); v != "" {
			names = append(names, v)
		}
	}
	if subjects := res.Metadata["dc.subject"]; subjects != "" {
		for _, s := range strings.Split(subjects, ",") {
			if s = strings.TrimSpace(s); s != "" {
				names = append(names, s)
			}
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
	if err == nil {
		doc.Find("li.breadcrumb-item a").Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				names = append(names, text)
			}
		})
		doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
			names = append(names, jsonLDCategories(s.Text())...)
		})
	}

	names = append(names, urlPathCategories(res.URL, res.Metadata["canonical"])...)
	return names
}

type jsonLDDoc struct {
	ArticleSection any `json:"articleSection"`
	Breadcrumb     struct {
		ItemListElement []struct {
			Name string `json:"name"`
		} `json:"itemListElement"`
	} `json:"breadcrumb"`
}

func jsonLDCategories(raw string) []string {
	var doc jsonLDDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil
	}
	var names []string
	switch v := doc.ArticleSection.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			names = append(names, s)
		}
	case []any:
		for _, entry := range v {
			if s, ok := entry.(string); ok && strings.TrimSpace(s) != "" {
				names = append(names, strings.TrimSpace(s))
			}
		}
	}
	for _, item := range doc.Breadcrumb.ItemListElement {
		if s := strings.TrimSpace(item.Name); s != "" {
			names = append(names, s)
		}
	}
	return names
}

// urlPathCategories finds /category/<name>/ style segments in the canonical
// or final URL.
func urlPathCategories(pageURL, canonical string) []string {
	target := canonical
	if target == "" {
		target = pageURL
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	var names []string
	for i, part := range parts {
		if urlCategoryIndicators[strings.ToLower(part)] && i+1 < len(parts) {
			name := strings.ReplaceAll(parts[i+1], "-", " ")
			name = strings.ReplaceAll(name, "_", " ")
			names = append(names, strings.Title(name))
		}
	}
	return names
}

// keywordCategories scores each known category by keyword occurrences, title
// hits weighted triple, and returns up to the top three non-zero scorers.
func (c *Classifier) keywordCategories(title, content string) []string {
	titleLower := strings.ToLower(title)
	contentLower := strings.ToLower(content)

	scores := make(map[string]int, len(categoryKeywords))
	for category, keywords := range categoryKeywords {
		for _, keyword := range keywords {
			if strings.Contains(titleLower, keyword) {
				scores[category] += 3
			}
			scores[category] += strings.Count(contentLower, keyword)
		}
	}

	type scored struct {
		name  string
		score int
	}
	ranked := make([]scored, 0, len(scores))
	for name, score := range scores {
		if score > 0 {
			ranked = append(ranked, scored{name, score})
		}
	}
	// Stable order: score desc, then name asc so ties are deterministic.
	for i := range ranked {
		for j := i + 1; j < len(ranked); j++ {
			if ranked[j].score > ranked[i].score ||
				(ranked[j].score == ranked[i].score && ranked[j].name < ranked[i].name) {
				ranked[i], ranked[j] = ranked[j], ranked[i]
			}
		}
	}

	var names []string
	for i, r := range ranked {
		if i >= 3 {
			break
		}
		names = append(names, r.name)
	}
	return names
}

// NormalizeName title-cases a category name, restores known abbreviations,
// and strips punctuation.
func NormalizeName(name string) string {
	normalized := strings.Title(strings.ToLower(strings.TrimSpace(name)))
	for _, pair := range abbreviations {
		normalized = strings.ReplaceAll(normalized, pair[0], pair[1])
	}
	normalized = nonWordOrSpace.ReplaceAllString(normalized, " ")
	normalized = multiSpace.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}

// CategoryURL builds the deterministic slug URL for a category.
func CategoryURL(baseURL, categoryName string) string {
	slug := strings.ToLower(NormalizeName(categoryName))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = nonSlugChar.ReplaceAllString(slug, "")
	return strings.TrimRight(baseURL, "/") + "/category/" + slug
}
