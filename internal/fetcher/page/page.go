// Package page turns raw fetched HTML into the enriched result shape the
// pipeline consumes: cleaned markup, a markdown rendering, link and image
// inventories, and page metadata.
package page

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/naijahub/newscrawler/internal/scraper"
)

// Elements stripped from the cleaned document. They carry navigation and
// page furniture, not article content.
var strippedSelectors = []string{
	"script", "style", "noscript", "iframe", "form",
	"nav", "header", "footer", "aside",
}

// Analysis is the enrichment derived from one HTML document.
type Analysis struct {
	CleanedHTML string
	Markdown    string
	Links       scraper.PageLinks
	Media       scraper.PageMedia
	Metadata    map[string]string
}

// Analyze parses raw HTML and derives the enriched page shape. The pageURL
// anchors relative link resolution and the internal/external split.
func Analyze(pageURL, rawHTML string) (*Analysis, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	a := &Analysis{
		Metadata: collectMetadata(doc),
		Links:    collectLinks(doc, base),
		Media:    collectImages(doc, base),
	}

	cleaned := cleanDocument(doc)
	a.CleanedHTML = cleaned
	a.Markdown = renderMarkdown(doc, base)
	return a, nil
}

func collectMetadata(doc *goquery.Document) map[string]string {
	meta := make(map[string]string)
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		meta["title"] = title
	}
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content, ok := s.Attr("content")
		if !ok || strings.TrimSpace(content) == "" {
			return
		}
		if name, ok := s.Attr("name"); ok && name != "" {
			meta[strings.ToLower(name)] = content
			return
		}
		if prop, ok := s.Attr("property"); ok && prop != "" {
			meta[strings.ToLower(prop)] = content
		}
	})
	if lang, ok := doc.Find("html").Attr("lang"); ok && lang != "" {
		meta["lang"] = lang
	}
	if canonical, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
		meta["canonical"] = canonical
	}
	return meta
}

func collectLinks(doc *goquery.Document, base *url.URL) scraper.PageLinks {
	var links scraper.PageLinks
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return
		}
		resolved := resolveRef(base, href)
		if resolved == nil || (resolved.Scheme != "http" && resolved.Scheme != "https") {
			return
		}
		abs := resolved.String()
		if seen[abs] {
			return
		}
		seen[abs] = true

		link := scraper.Link{URL: abs, Text: strings.TrimSpace(s.Text())}
		if resolved.Host == base.Host {
			links.Internal = append(links.Internal, link)
		} else {
			links.External = append(links.External, link)
		}
	})
	return links
}

func collectImages(doc *goquery.Document, base *url.URL) scraper.PageMedia {
	var media scraper.PageMedia
	seen := make(map[string]bool)

	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		resolved := resolveRef(base, src)
		if resolved == nil {
			return
		}
		abs := resolved.String()
		if seen[abs] {
			return
		}
		seen[abs] = true

		alt, _ := s.Attr("alt")
		media.Images = append(media.Images, scraper.ImageRef{
			Src: abs,
			Alt: strings.TrimSpace(alt),
		})
	})
	return media
}

func resolveRef(base *url.URL, ref string) *url.URL {
	u, err := url.Parse(ref)
	if err != nil {
		return nil
	}
	return base.ResolveReference(u)
}

func cleanDocument(doc *goquery.Document) string {
	clone := goquery.CloneDocument(doc)
	for _, sel := range strippedSelectors {
		clone.Find(sel).Remove()
	}
	body := clone.Find("body")
	if body.Length() == 0 {
		html, err := clone.Html()
		if err != nil {
			return ""
		}
		return html
	}
	html, err := body.Html()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(html)
}

// renderMarkdown produces a flat markdown rendering of the article-bearing
// elements, enough for storage and diffing. It is not a general converter.
func renderMarkdown(doc *goquery.Document, base *url.URL) string {
	var b strings.Builder

	doc.Find("h1, h2, h3, h4, h5, h6, p, li, blockquote").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered(strings.Join(strippedSelectors, ", ")).Length() > 0 {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		switch goquery.NodeName(s) {
		case "h1":
			b.WriteString("# " + text + "\n\n")
		case "h2":
			b.WriteString("## " + text + "\n\n")
		case "h3":
			b.WriteString("### " + text + "\n\n")
		case "h4", "h5", "h6":
			b.WriteString("#### " + text + "\n\n")
		case "li":
			b.WriteString("- " + text + "\n")
		case "blockquote":
			b.WriteString("> " + text + "\n\n")
		default:
			b.WriteString(text + "\n\n")
		}
	})

	if img, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
		if resolved := resolveRef(base, img); resolved != nil {
			b.WriteString("![](" + resolved.String() + ")\n")
		}
	}

	return strings.TrimSpace(b.String())
}
