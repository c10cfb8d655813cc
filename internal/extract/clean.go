package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Class and id fragments that mark page furniture and ads inside article
// containers.
var noiseClassPattern = regexp.MustCompile(`(?i)^(ads?|ad-.*|advertisement|banner|sponsor.*|promo.*|related.*|share.*|social.*|comments?.*|footer|header|nav.*|navigation|menu|sidebar|widget.*)$`)

var noiseTags = []string{"script", "style", "iframe", "noscript"}

var emptyParagraph = regexp.MustCompile(`(?is)<p[^>]*>\s*</p>`)
var collapseSpace = regexp.MustCompile(`\s+`)

// CleanContentHTML strips ad blocks, sharing widgets and page furniture from
// an article content fragment and collapses whitespace.
func CleanContentHTML(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return strings.TrimSpace(content)
	}

	for _, tag := range noiseTags {
		doc.Find(tag).Remove()
	}
	doc.Find("div, section, ul").Each(func(_ int, s *goquery.Selection) {
		if isNoise(s) {
			s.Remove()
		}
	})

	body := doc.Find("body")
	html, err := body.Html()
	if err != nil {
		return strings.TrimSpace(content)
	}

	html = emptyParagraph.ReplaceAllString(html, "")
	html = collapseSpace.ReplaceAllString(html, " ")
	return strings.TrimSpace(html)
}

func isNoise(s *goquery.Selection) bool {
	if class, ok := s.Attr("class"); ok {
		for _, c := range strings.Fields(class) {
			if noiseClassPattern.MatchString(c) {
				return true
			}
		}
	}
	if id, ok := s.Attr("id"); ok && noiseClassPattern.MatchString(id) {
		return true
	}
	return false
}

var wordPattern = regexp.MustCompile(`\w+`)

// WordCount counts word tokens in text.
func WordCount(text string) int {
	return len(wordPattern.FindAllString(text, -1))
}

// ReadingTime estimates reading minutes at 200 words per minute, minimum 1.
func ReadingTime(wordCount int) int {
	minutes := wordCount / 200
	if minutes < 1 {
		return 1
	}
	return minutes
}
