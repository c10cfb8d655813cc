// Package render decides whether a fetched page needs a headless browser to
// produce its real content.
package render

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Detector flags pages whose plain HTTP response is a JavaScript shell.
type Detector struct {
	minHTMLBytes int
	selectors    []string
	keywords     [][]byte
}

// NewDetector constructs a Detector with the configured thresholds. A page
// needs rendering when its body is below the byte threshold, contains one of
// the keywords, or matches none of the content selectors.
func NewDetector(minBytes int, selectors, keywords []string) *Detector {
	lowerKeywords := make([][]byte, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		lowerKeywords = append(lowerKeywords, bytes.ToLower([]byte(kw)))
	}
	return &Detector{
		minHTMLBytes: minBytes,
		selectors:    selectors,
		keywords:     lowerKeywords,
	}
}

// Default returns a Detector tuned for news article pages.
func Default() *Detector {
	return NewDetector(
		2048,
		[]string{"article", ".entry-content", "h1", "p"},
		[]string{
			"enable javascript",
			"javascript is required",
			"please turn on javascript",
			"cf-browser-verification",
			"checking your browser",
		},
	)
}

// NeedsRender inspects the page for signals that a headless render would
// return different content.
func (d *Detector) NeedsRender(html string) bool {
	if d == nil {
		return false
	}
	body := []byte(html)
	switch {
	case d.bodyBelowThreshold(body):
		return true
	case d.containsKeywords(body):
		return true
	default:
		return d.missingSelectors(body)
	}
}

func (d *Detector) bodyBelowThreshold(body []byte) bool {
	return d.minHTMLBytes > 0 && len(body) < d.minHTMLBytes
}

func (d *Detector) containsKeywords(body []byte) bool {
	if len(body) == 0 || len(d.keywords) == 0 {
		return false
	}
	lowerBody := bytes.ToLower(body)
	for _, kw := range d.keywords {
		if bytes.Contains(lowerBody, kw) {
			return true
		}
	}
	return false
}

func (d *Detector) missingSelectors(body []byte) bool {
	if len(d.selectors) == 0 || len(body) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return true
	}
	for _, sel := range d.selectors {
		if sel == "" {
			continue
		}
		if doc.Find(sel).Length() > 0 {
			return false
		}
	}
	return true
}
