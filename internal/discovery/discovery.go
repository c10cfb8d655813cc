// Package discovery finds candidate article URLs for a website by combining
// several strategies: the homepage link graph, XML sitemaps (including
// sitemap indexes and robots.txt pointers), RSS/Atom feeds, and category
// pages. Strategy failures are logged and skipped; discovery itself never
// fails a crawl.
package discovery

import (
	"context"
	"encoding/xml"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/naijahub/newscrawler/internal/scraper"
)

// maxSitemapDepth bounds sitemap-index recursion.
const maxSitemapDepth = 3

var sitemapLocations = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap-index.xml",
	"/post-sitemap.xml",
	"/page-sitemap.xml",
	"/news-sitemap.xml",
}

var rssLocations = []string{
	"/feed",
	"/rss",
	"/feed/rss",
	"/rss.xml",
	"/atom.xml",
	"/feed/atom",
}

var categoryPathPrefixes = []string{
	"/category/",
	"/categories/",
	"/topics/",
	"/sections/",
}

// Config selects the strategies to run.
type Config struct {
	SitemapOnly         bool
	EnableRSS           bool
	EnableCategoryPages bool
	MaxURLs             int
}

// OptionsFunc supplies the request identity for a URL.
type OptionsFunc func(pageURL string) scraper.FetchOptions

// Result carries the discovered URLs and per-strategy counts.
type Result struct {
	URLs     []string
	BySource map[string]int
}

// Discoverer runs the discovery strategies against one site at a time.
type Discoverer struct {
	fetcher scraper.Fetcher
	optsFor OptionsFunc
	cfg     Config
	logger  *zap.Logger
	parser  *gofeed.Parser
}

// New creates a Discoverer.
func New(fetcher scraper.Fetcher, optsFor OptionsFunc, cfg Config, logger *zap.Logger) *Discoverer {
	if optsFor == nil {
		optsFor = func(string) scraper.FetchOptions { return scraper.FetchOptions{} }
	}
	return &Discoverer{
		fetcher: fetcher,
		optsFor: optsFor,
		cfg:     cfg,
		logger:  logger,
		parser:  gofeed.NewParser(),
	}
}

// Discover returns the union of candidate article URLs from all enabled
// strategies, deduplicated by normalized URL.
func (d *Discoverer) Discover(ctx context.Context, site scraper.Website) Result {
	base := strings.TrimRight(site.BaseURL, "/")
	seen := make(map[string]bool)
	result := Result{BySource: make(map[string]int)}

	add := func(source string, urls []string) {
		for _, raw := range urls {
			if !scraper.IsValidArticleURL(raw, site.BaseURL) {
				continue
			}
			normalized, err := scraper.NormalizeURL(raw)
			if err != nil || seen[normalized] {
				continue
			}
			seen[normalized] = true
			result.URLs = append(result.URLs, normalized)
			result.BySource[source]++
			if d.cfg.MaxURLs > 0 && len(result.URLs) >= d.cfg.MaxURLs {
				return
			}
		}
	}

	full := func() bool {
		return d.cfg.MaxURLs > 0 && len(result.URLs) >= d.cfg.MaxURLs
	}

	// Sitemaps first: robots.txt pointers, the site's registered sitemap,
	// then the conventional locations.
	sitemaps := d.robotsSitemaps(ctx, base)
	if site.SitemapURL != "" {
		sitemaps = append(sitemaps, site.SitemapURL)
	}
	for _, loc := range sitemapLocations {
		sitemaps = append(sitemaps, base+loc)
	}
	visited := make(map[string]bool)
	for _, sm := range sitemaps {
		if full() {
			break
		}
		add("sitemap", d.sitemapURLs(ctx, sm, visited, 0))
	}

	if d.cfg.SitemapOnly {
		d.logger.Info("discovery finished (sitemap only)",
			zap.String("site", site.BaseURL),
			zap.Int("urls", len(result.URLs)),
		)
		return result
	}

	homepageLinks := d.homepageLinks(ctx, site.BaseURL)
	if !full() {
		add("homepage", homepageLinks)
	}

	if d.cfg.EnableRSS && !full() {
		for _, loc := range rssLocations {
			if full() {
				break
			}
			add("rss", d.feedURLs(ctx, base+loc))
		}
	}

	if d.cfg.EnableCategoryPages && !full() {
		for _, categoryURL := range categoryPages(homepageLinks, base) {
			if full() {
				break
			}
			add("category", d.homepageLinks(ctx, categoryURL))
		}
	}

	d.logger.Info("discovery finished",
		zap.String("site", site.BaseURL),
		zap.Int("urls", len(result.URLs)),
		zap.Any("by_source", result.BySource),
	)
	return result
}

// robotsSitemaps fetches robots.txt and returns any Sitemap directives.
func (d *Discoverer) robotsSitemaps(ctx context.Context, base string) []string {
	robotsURL := base + "/robots.txt"
	res, err := d.fetcher.Fetch(ctx, robotsURL, d.optsFor(robotsURL))
	if err != nil || !res.Success {
		d.logger.Debug("no robots.txt", zap.String("url", robotsURL), zap.Error(err))
		return nil
	}
	data, err := robotstxt.FromBytes([]byte(res.HTML))
	if err != nil {
		d.logger.Warn("parse robots.txt", zap.String("url", robotsURL), zap.Error(err))
		return nil
	}
	return data.Sitemaps
}

type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

type urlSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// sitemapURLs fetches one sitemap and returns the page URLs it lists,
// recursing into sitemap indexes.
func (d *Discoverer) sitemapURLs(ctx context.Context, sitemapURL string, visited map[string]bool, depth int) []string {
	if depth > maxSitemapDepth || visited[sitemapURL] {
		return nil
	}
	visited[sitemapURL] = true

	res, err := d.fetcher.Fetch(ctx, sitemapURL, d.optsFor(sitemapURL))
	if err != nil || !res.Success {
		d.logger.Debug("sitemap not available", zap.String("url", sitemapURL), zap.Error(err))
		return nil
	}
	body := []byte(res.HTML)

	var set urlSet
	if err := xml.Unmarshal(body, &set); err == nil && len(set.URLs) > 0 {
		urls := make([]string, 0, len(set.URLs))
		for _, u := range set.URLs {
			if loc := strings.TrimSpace(u.Loc); loc != "" {
				urls = append(urls, loc)
			}
		}
		return urls
	}

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		var urls []string
		for _, child := range index.Sitemaps {
			loc := strings.TrimSpace(child.Loc)
			if loc == "" {
				continue
			}
			urls = append(urls, d.sitemapURLs(ctx, loc, visited, depth+1)...)
		}
		return urls
	}

	d.logger.Debug("sitemap parsed empty", zap.String("url", sitemapURL))
	return nil
}

// homepageLinks fetches a page and returns its internal link URLs.
func (d *Discoverer) homepageLinks(ctx context.Context, pageURL string) []string {
	res, err := d.fetcher.Fetch(ctx, pageURL, d.optsFor(pageURL))
	if err != nil || !res.Success {
		d.logger.Warn("fetch page for discovery", zap.String("url", pageURL), zap.Error(err))
		return nil
	}
	urls := make([]string, 0, len(res.Links.Internal))
	for _, link := range res.Links.Internal {
		urls = append(urls, link.URL)
	}
	return urls
}

// feedURLs fetches an RSS/Atom feed and returns its entry links.
func (d *Discoverer) feedURLs(ctx context.Context, feedURL string) []string {
	res, err := d.fetcher.Fetch(ctx, feedURL, d.optsFor(feedURL))
	if err != nil || !res.Success {
		d.logger.Debug("feed not available", zap.String("url", feedURL), zap.Error(err))
		return nil
	}
	feed, err := d.parser.ParseString(res.HTML)
	if err != nil {
		d.logger.Debug("parse feed", zap.String("url", feedURL), zap.Error(err))
		return nil
	}
	urls := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link != "" {
			urls = append(urls, item.Link)
		}
	}
	return urls
}

// categoryPages filters homepage links down to category listing pages.
func categoryPages(links []string, base string) []string {
	var pages []string
	seen := make(map[string]bool)
	for _, link := range links {
		for _, prefix := range categoryPathPrefixes {
			if strings.HasPrefix(link, base+prefix) && !seen[link] {
				seen[link] = true
				pages = append(pages, link)
			}
		}
	}
	return pages
}
