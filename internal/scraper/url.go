package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// NormalizeURL standardizes a URL so discovery and storage agree on identity.
// It lowercases the scheme and host, strips default ports and fragments, and
// sorts query parameters.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""

	q := u.Query()
	u.RawQuery = q.Encode()

	return u.String(), nil
}

var urlExcludedPatterns = []string{
	"/wp-content/", "/wp-includes/", "/wp-admin/", "/feed/", "/comments/",
	"/login/", "/register/", "/logout/", "/admin/", "/wp-json/",
	".xml", ".pdf", ".jpg", ".png", ".gif", ".css", ".js",
}

var urlDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`/\d{4}/\d{2}/\d{2}/`),
	regexp.MustCompile(`/\d{4}-\d{2}-\d{2}/`),
	regexp.MustCompile(`/\d{2}-\d{2}-\d{4}/`),
	regexp.MustCompile(`/\d{2}/\d{2}/\d{4}/`),
}

var urlArticleIndicators = []string{
	"/article/", "/news/", "/story/", "/post/", "/read/",
	"/opinion/", "/editorial/", "/feature/", "/analysis/",
	"/politics/", "/business/", "/sports/", "/entertainment/",
	"/lifestyle/", "/health/", "/technology/", "/science/",
	"/education/", "/crime/", "/metro/", "/national/", "/world/",
}

// IsValidArticleURL reports whether a discovered link plausibly points to an
// article on the target site. It rejects cross-domain links, asset and admin
// paths, and bare roots, then accepts slug-shaped paths, dated paths, and
// paths under known article sections.
func IsValidArticleURL(rawURL, baseURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}

	if u.Host != base.Host {
		return false
	}
	if u.Path == "" || u.Path == "/" {
		return false
	}

	lowerPath := strings.ToLower(u.Path)
	for _, pattern := range urlExcludedPatterns {
		if strings.Contains(lowerPath, pattern) {
			return false
		}
	}

	segments := pathSegments(u.Path)

	// Single slug directly under the root, e.g. /some-article-title-123.
	if len(segments) == 1 && strings.Contains(segments[0], "-") && len(segments[0]) > 5 {
		return true
	}

	for _, re := range urlDatePatterns {
		if re.MatchString(u.Path) {
			return true
		}
	}

	for _, indicator := range urlArticleIndicators {
		if strings.Contains(lowerPath, indicator) {
			return true
		}
	}

	// Sectioned slug, e.g. /news/my-article-title-123.
	if len(segments) >= 2 {
		last := segments[len(segments)-1]
		if len(last) > 5 && strings.Contains(last, "-") {
			return true
		}
	}

	return false
}

func pathSegments(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
