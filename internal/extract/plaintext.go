package extract

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/naijahub/newscrawler/internal/scraper"
)

// PlainText is the last-resort tier: walk the DOM and keep paragraph text.
// It produces content only, so earlier tiers always win on other fields.
type PlainText struct{}

// NewPlainText creates the plain-text strategy.
func NewPlainText() *PlainText {
	return &PlainText{}
}

// Name identifies the tier in metadata and metrics.
func (p *PlainText) Name() string { return "plaintext" }

var plaintextSkipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true,
	"nav": true, "header": true, "footer": true, "aside": true, "form": true,
}

// Extract collects the text of every paragraph outside page furniture.
func (p *PlainText) Extract(res *scraper.FetchResult) (*scraper.ArticleDraft, error) {
	root, err := html.Parse(strings.NewReader(res.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var paragraphs []string
	var walk func(n *html.Node, skipped bool)
	walk = func(n *html.Node, skipped bool) {
		if n.Type == html.ElementNode {
			if plaintextSkipTags[n.Data] {
				return
			}
			if n.Data == "p" && !skipped {
				if text := strings.TrimSpace(nodeText(n)); text != "" {
					paragraphs = append(paragraphs, text)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, skipped)
		}
	}
	walk(root, false)

	var title string
	var findTitle func(n *html.Node)
	findTitle = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && (n.Data == "h1" || n.Data == "title") {
			title = strings.TrimSpace(nodeText(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findTitle(c)
		}
	}
	findTitle(root)

	return &scraper.ArticleDraft{
		URL:      res.URL,
		Title:    title,
		Content:  strings.Join(paragraphs, "\n\n"),
		Metadata: map[string]any{},
	}, nil
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return collapseSpace.ReplaceAllString(b.String(), " ")
}
