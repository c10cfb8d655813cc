// Package antiban assigns per-request browser identity to reduce the chance
// of crawler blocks: rotated user agents, varied accept headers, synthetic
// referers, and randomized viewports.
package antiban

import (
	"math/rand"
	"net/url"
	"strings"

	"github.com/naijahub/newscrawler/internal/scraper"
)

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:123.0) Gecko/20100101 Firefox/123.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36 Edg/123.0.0.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:123.0) Gecko/20100101 Firefox/123.0",
}

var commonHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"Accept-Encoding":           "gzip, deflate, br",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
	"Pragma":                    "no-cache",
	"Cache-Control":             "no-cache",
}

var acceptVariations = []string{
	"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
}

var langVariations = []string{
	"en-US,en;q=0.9",
	"en-GB,en;q=0.9",
	"en-US,en;q=0.8",
	"en;q=0.9",
}

var viewportWidths = []int{1280, 1366, 1440, 1920}
var viewportHeights = []int{720, 768, 900, 1080}

// Manager produces request identities. Safe for concurrent use when the
// random source is; the default source is the global locked one.
type Manager struct {
	rotateUserAgents bool
	randomizeHeaders bool
	userAgents       []string
	pinnedByDomain   map[string]string
	rnd              *rand.Rand
}

// Option configures a Manager.
type Option func(*Manager)

// WithPinnedUserAgents pins a fixed user agent per domain, overriding
// rotation for those hosts.
func WithPinnedUserAgents(byDomain map[string]string) Option {
	return func(m *Manager) { m.pinnedByDomain = byDomain }
}

// WithUserAgents replaces the default rotation pool.
func WithUserAgents(agents []string) Option {
	return func(m *Manager) {
		if len(agents) > 0 {
			m.userAgents = agents
		}
	}
}

// WithRandSource fixes the random source for deterministic tests.
func WithRandSource(src rand.Source) Option {
	return func(m *Manager) { m.rnd = rand.New(src) }
}

// WithoutRotation disables user-agent rotation and header variation.
func WithoutRotation() Option {
	return func(m *Manager) {
		m.rotateUserAgents = false
		m.randomizeHeaders = false
	}
}

// New creates a Manager with rotation and header variation enabled.
func New(opts ...Option) *Manager {
	m := &Manager{
		rotateUserAgents: true,
		randomizeHeaders: true,
		userAgents:       defaultUserAgents,
		pinnedByDomain:   map[string]string{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) intn(n int) int {
	if m.rnd != nil {
		return m.rnd.Intn(n)
	}
	return rand.Intn(n)
}

func (m *Manager) float64() float64 {
	if m.rnd != nil {
		return m.rnd.Float64()
	}
	return rand.Float64()
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// UserAgent picks the user agent for a URL. Pinned domains always get their
// pinned agent.
func (m *Manager) UserAgent(pageURL string) string {
	domain := domainOf(pageURL)
	if ua, ok := m.pinnedByDomain[domain]; ok {
		return ua
	}
	if m.rotateUserAgents {
		return m.userAgents[m.intn(len(m.userAgents))]
	}
	return m.userAgents[0]
}

// Headers builds the full request header set for a URL. About 70% of
// requests carry a synthetic Google search referer for the target's base
// domain.
func (m *Manager) Headers(pageURL string) map[string]string {
	headers := make(map[string]string, len(commonHeaders)+2)
	for k, v := range commonHeaders {
		headers[k] = v
	}

	if m.randomizeHeaders {
		headers["Accept"] = acceptVariations[m.intn(len(acceptVariations))]
		headers["Accept-Language"] = langVariations[m.intn(len(langVariations))]
	}

	if m.float64() < 0.7 {
		parts := strings.Split(domainOf(pageURL), ".")
		if len(parts) >= 2 {
			baseDomain := parts[len(parts)-2] + "." + parts[len(parts)-1]
			headers["Referer"] = "https://www.google.com/search?q=site:" + baseDomain
		}
	}

	headers["User-Agent"] = m.UserAgent(pageURL)
	return headers
}

// BrowserConfig builds the headless browser settings for a URL with a
// randomized viewport.
func (m *Manager) BrowserConfig(pageURL string) scraper.BrowserConfig {
	return scraper.BrowserConfig{
		Headless:       true,
		UserAgent:      m.UserAgent(pageURL),
		ViewportWidth:  viewportWidths[m.intn(len(viewportWidths))],
		ViewportHeight: viewportHeights[m.intn(len(viewportHeights))],
	}
}

// FetchOptions bundles headers and browser settings for one request.
func (m *Manager) FetchOptions(pageURL string) scraper.FetchOptions {
	return scraper.FetchOptions{
		Headers: m.Headers(pageURL),
		Browser: m.BrowserConfig(pageURL),
	}
}
