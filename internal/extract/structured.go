package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/naijahub/newscrawler/internal/scraper"
)

// Field is one extractable article field: selectors are tried in order and
// the first non-empty match wins. Meta selectors read the content attribute
// automatically.
type Field struct {
	Selectors []string
	Attribute string
	Exclude   []string
	Multiple  bool
}

// Schema describes where a specific site keeps its article fields.
type Schema struct {
	Title         Field
	Author        Field
	PublishedDate Field
	Content       Field
	ImageURL      Field
	Categories    Field
	Tags          Field
}

// DefaultSchema covers the common WordPress layout most Nigerian news sites
// use. Site-specific schemas override it per website.
func DefaultSchema() Schema {
	return Schema{
		Title: Field{Selectors: []string{
			"h1.entry-title", "h1", "meta[property='og:title']",
		}},
		Author: Field{Selectors: []string{
			"a[rel='author']", ".author-name", ".entry-author", "meta[name='author']",
		}},
		PublishedDate: Field{Selectors: []string{
			"time.entry-date", ".entry-date", "meta[property='article:published_time']",
		}},
		Content: Field{
			Selectors: []string{".entry-content", "article"},
			Exclude: []string{
				".related-posts", ".share-buttons", ".advertisement", "script", "style",
			},
		},
		ImageURL: Field{
			Selectors: []string{
				"img.wp-post-image", ".post-thumbnail img", "meta[property='og:image']",
			},
			Attribute: "src",
		},
		Categories: Field{
			Selectors: []string{".cat-links a", ".categories a"},
			Multiple:  true,
		},
		Tags: Field{
			Selectors: []string{".tags-links a", ".tags a"},
			Multiple:  true,
		},
	}
}

// Structured extracts fields with a per-site CSS schema. It is the first and
// most precise tier.
type Structured struct {
	schema Schema
}

// NewStructured creates the structured strategy for a schema.
func NewStructured(schema Schema) *Structured {
	return &Structured{schema: schema}
}

// Name identifies the tier in metadata and metrics.
func (s *Structured) Name() string { return "structured" }

// Extract pulls the schema fields out of the fetched page.
func (s *Structured) Extract(res *scraper.FetchResult) (*scraper.ArticleDraft, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	draft := &scraper.ArticleDraft{
		URL:        res.URL,
		Title:      firstText(doc, s.schema.Title),
		Author:     firstText(doc, s.schema.Author),
		ImageURL:   firstAttr(doc, s.schema.ImageURL),
		Categories: allTexts(doc, s.schema.Categories),
		Tags:       allTexts(doc, s.schema.Tags),
		Metadata:   map[string]any{},
	}

	if raw := publishedDate(doc, s.schema.PublishedDate); raw != "" {
		draft.Metadata["raw_published_date"] = raw
	}

	if contentHTML := contentFragment(doc, s.schema.Content); contentHTML != "" {
		cleaned := CleanContentHTML(contentHTML)
		draft.ContentHTML = cleaned
		draft.Content = textOfHTML(cleaned)
	}

	return draft, nil
}

// publishedDate finds the raw date string. The machine-readable datetime
// attribute beats display text when both exist.
func publishedDate(doc *goquery.Document, f Field) string {
	for _, sel := range f.Selectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if v, ok := node.Attr("datetime"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		if goquery.NodeName(node) == "meta" {
			if v, ok := node.Attr("content"); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
			continue
		}
		if text := strings.TrimSpace(node.Text()); text != "" {
			return text
		}
	}
	return ""
}

// firstText returns the first non-empty text match across the selectors.
func firstText(doc *goquery.Document, f Field) string {
	for _, sel := range f.Selectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if goquery.NodeName(node) == "meta" {
			if v, ok := node.Attr("content"); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
			continue
		}
		if text := strings.TrimSpace(node.Text()); text != "" {
			return text
		}
	}
	return ""
}

// firstAttr returns the first non-empty attribute match across the selectors.
func firstAttr(doc *goquery.Document, f Field) string {
	for _, sel := range f.Selectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		attr := f.Attribute
		if goquery.NodeName(node) == "meta" {
			attr = "content"
		}
		if v, ok := node.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func allTexts(doc *goquery.Document, f Field) []string {
	var out []string
	seen := make(map[string]bool)
	for _, sel := range f.Selectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if text == "" || seen[text] {
				return
			}
			seen[text] = true
			out = append(out, text)
		})
		if len(out) > 0 && !f.Multiple {
			break
		}
	}
	return out
}

func contentFragment(doc *goquery.Document, f Field) string {
	for _, sel := range f.Selectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		clone := node.Clone()
		for _, ex := range f.Exclude {
			clone.Find(ex).Remove()
		}
		html, err := goquery.OuterHtml(clone)
		if err != nil || strings.TrimSpace(clone.Text()) == "" {
			continue
		}
		return html
	}
	return ""
}

func textOfHTML(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(collapseSpace.ReplaceAllString(doc.Text(), " "))
}
