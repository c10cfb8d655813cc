// Package validate scores article quality on a 0-100 scale. Each check
// subtracts a fixed penalty; critical issues (missing title or content) make
// the article invalid regardless of score.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/naijahub/newscrawler/internal/scraper"
)

// Config holds the validation thresholds.
type Config struct {
	Enabled                    bool
	MinQualityScore            float64
	MinTitleLength             int
	MaxTitleLength             int
	MinContentLength           int
	MaxContentLength           int
	MinWordCount               int
	MinParagraphCount          int
	MaxDuplicateParagraphRatio float64
	MaxAdContentRatio          float64
	MinImageCount              int
	MaxRecentDateDays          int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		Enabled:                    true,
		MinQualityScore:            50,
		MinTitleLength:             10,
		MaxTitleLength:             200,
		MinContentLength:           100,
		MaxContentLength:           50000,
		MinWordCount:               50,
		MinParagraphCount:          2,
		MaxDuplicateParagraphRatio: 0.3,
		MaxAdContentRatio:          0.2,
		MinImageCount:              1,
		MaxRecentDateDays:          365 * 5,
	}
}

var spamPatterns = []string{
	"buy now", "click here", "limited time offer", "discount", "sale",
	"subscribe now", "special offer", "best price", "free shipping",
	"money back guarantee", "act now", "call now", "exclusive deal",
	"limited stock", "order now", "satisfaction guaranteed",
	"while supplies last", "sign up now", "as seen on tv", "free trial",
}

var clickbaitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`you won't believe`),
	regexp.MustCompile(`shocking`),
	regexp.MustCompile(`amazing`),
	regexp.MustCompile(`incredible`),
	regexp.MustCompile(`mind-blowing`),
	regexp.MustCompile(`jaw-dropping`),
	regexp.MustCompile(`unbelievable`),
	regexp.MustCompile(`secret`),
	regexp.MustCompile(`trick`),
	regexp.MustCompile(`hack`),
	regexp.MustCompile(`this one weird`),
	regexp.MustCompile(`doctors hate`),
	regexp.MustCompile(`\d+ (things|ways|reasons|tips|tricks|hacks|facts)`),
	regexp.MustCompile(`number \d+ will shock you`),
	regexp.MustCompile(`what happens next`),
	regexp.MustCompile(`you'll never guess`),
	regexp.MustCompile(`this will blow your mind`),
	regexp.MustCompile(`changed my life`),
	regexp.MustCompile(`will change your life`),
	regexp.MustCompile(`the truth about`),
	regexp.MustCompile(`find out`),
	regexp.MustCompile(`discover`),
	regexp.MustCompile(`revealed`),
}

var adPatterns = []string{
	"advertisement", "sponsored content", "sponsored post", "promoted by",
	"advertise with us", "advertise here", "affiliate link", "paid partnership",
}

var placeholderPatterns = []string{
	"lorem ipsum", "sample text", "example content", "placeholder",
	"text here", "content here", "under construction", "coming soon",
	"to be updated", "to be added",
}

var genericAuthors = map[string]bool{
	"unknown": true, "admin": true, "administrator": true,
	"staff": true, "editor": true, "guest": true,
}

var wordToken = regexp.MustCompile(`\w+`)
var paragraphSplit = regexp.MustCompile(`\n\s*\n`)
var markdownImage = regexp.MustCompile(`!\[.*?\]\(.*?\)`)
var htmlImage = regexp.MustCompile(`<img[^>]+src=["'][^"']+["'][^>]*>`)

// Validator scores article drafts.
type Validator struct {
	cfg   Config
	clock scraper.Clock
}

// New creates a Validator.
func New(cfg Config, clock scraper.Clock) *Validator {
	return &Validator{cfg: cfg, clock: clock}
}

// Config returns the thresholds the validator scores against.
func (v *Validator) Config() Config {
	return v.cfg
}

// Validate scores a draft. A disabled validator accepts everything at score
// 100. The returned score is always within [0, 100].
func (v *Validator) Validate(draft *scraper.ArticleDraft) scraper.ValidationResult {
	if !v.cfg.Enabled {
		return scraper.ValidationResult{
			IsValid:   true,
			Score:     100,
			SubScores: map[string]float64{},
		}
	}

	content := mainContent(draft)

	var issues []string
	subScores := make(map[string]float64, 6)
	score := 100.0

	apply := func(name string, checkIssues []string, penalty float64) {
		issues = append(issues, checkIssues...)
		score -= penalty
		subScores[name] = 100 - penalty
	}

	titleIssues, titlePenalty := v.checkTitle(draft.Title)
	apply("title", titleIssues, titlePenalty)

	contentIssues, contentPenalty := v.checkContent(content)
	apply("content", contentIssues, contentPenalty)

	authorIssues, authorPenalty := v.checkAuthor(draft.Author)
	apply("author", authorIssues, authorPenalty)

	dateIssues, datePenalty := v.checkPublishedDate(draft.PublishedAt, draft.DateMissing)
	apply("date", dateIssues, datePenalty)

	imageIssues, imagePenalty := v.checkImages(draft.ImageURL, content)
	apply("images", imageIssues, imagePenalty)

	metaIssues, metaPenalty := v.checkMetadata(draft.Metadata)
	apply("metadata", metaIssues, metaPenalty)

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	critical := false
	for _, issue := range issues {
		if strings.HasPrefix(issue, "[CRITICAL]") {
			critical = true
			break
		}
	}

	return scraper.ValidationResult{
		IsValid:   score >= v.cfg.MinQualityScore && !critical,
		Score:     score,
		Issues:    issues,
		SubScores: subScores,
	}
}

func mainContent(draft *scraper.ArticleDraft) string {
	if draft.ContentMarkdown != "" {
		return draft.ContentMarkdown
	}
	if draft.Content != "" {
		return draft.Content
	}
	return stripHTMLTags(draft.ContentHTML)
}

func (v *Validator) checkTitle(title string) ([]string, float64) {
	var issues []string
	penalty := 0.0

	if title == "" {
		return []string{"[CRITICAL] Title is missing"}, 50
	}

	if len(title) < v.cfg.MinTitleLength {
		issues = append(issues, fmt.Sprintf("Title is too short (%d chars, minimum %d)", len(title), v.cfg.MinTitleLength))
		penalty += 10
	}
	if len(title) > v.cfg.MaxTitleLength {
		issues = append(issues, fmt.Sprintf("Title is too long (%d chars, maximum %d)", len(title), v.cfg.MaxTitleLength))
		penalty += 5
	}

	lower := strings.ToLower(title)
	clickbaitCount := 0
	for _, re := range clickbaitPatterns {
		if re.MatchString(lower) {
			clickbaitCount++
		}
	}
	if clickbaitCount > 0 {
		issues = append(issues, fmt.Sprintf("Title contains %d clickbait patterns", clickbaitCount))
		penalty += minFloat(20, float64(clickbaitCount)*5)
	}

	if len(title) > 10 && title == strings.ToUpper(title) && title != strings.ToLower(title) {
		issues = append(issues, "Title is in all caps")
		penalty += 10
	}

	if strings.Count(title, "!") > 1 || strings.Count(title, "?") > 2 {
		issues = append(issues, "Title contains excessive punctuation")
		penalty += 5
	}

	return issues, penalty
}

func (v *Validator) checkContent(content string) ([]string, float64) {
	var issues []string
	penalty := 0.0

	if content == "" {
		return []string{"[CRITICAL] Content is missing"}, 50
	}

	if len(content) < v.cfg.MinContentLength {
		issues = append(issues, fmt.Sprintf("Content is too short (%d chars, minimum %d)", len(content), v.cfg.MinContentLength))
		penalty += 20
	}
	if len(content) > v.cfg.MaxContentLength {
		issues = append(issues, fmt.Sprintf("Content is too long (%d chars, maximum %d)", len(content), v.cfg.MaxContentLength))
		penalty += 5
	}

	wordCount := len(wordToken.FindAllString(content, -1))
	if wordCount < v.cfg.MinWordCount {
		issues = append(issues, fmt.Sprintf("Content has too few words (%d words, minimum %d)", wordCount, v.cfg.MinWordCount))
		penalty += 15
	}

	paragraphs := paragraphSplit.Split(content, -1)
	if len(paragraphs) < v.cfg.MinParagraphCount {
		issues = append(issues, fmt.Sprintf("Content has too few paragraphs (%d paragraphs, minimum %d)", len(paragraphs), v.cfg.MinParagraphCount))
		penalty += 10
	}

	unique := make(map[string]bool, len(paragraphs))
	for _, p := range paragraphs {
		unique[p] = true
	}
	if len(paragraphs) > 0 {
		duplicateRatio := 1 - float64(len(unique))/float64(len(paragraphs))
		if duplicateRatio > v.cfg.MaxDuplicateParagraphRatio {
			issues = append(issues, fmt.Sprintf("Content has high duplicate paragraph ratio (%.2f, maximum %.2f)", duplicateRatio, v.cfg.MaxDuplicateParagraphRatio))
			penalty += 15
		}
	}

	if len(paragraphs) > 0 && v.cfg.MaxAdContentRatio > 0 {
		adParagraphs := 0
		for _, p := range paragraphs {
			pl := strings.ToLower(p)
			for _, pattern := range adPatterns {
				if strings.Contains(pl, pattern) {
					adParagraphs++
					break
				}
			}
		}
		adRatio := float64(adParagraphs) / float64(len(paragraphs))
		if adRatio > v.cfg.MaxAdContentRatio {
			issues = append(issues, fmt.Sprintf("Content has high ad content ratio (%.2f, maximum %.2f)", adRatio, v.cfg.MaxAdContentRatio))
			penalty += 10
		}
	}

	lower := strings.ToLower(content)
	spamCount := 0
	for _, pattern := range spamPatterns {
		spamCount += strings.Count(lower, pattern)
	}
	if spamCount > 0 {
		issues = append(issues, fmt.Sprintf("Content contains %d spam patterns", spamCount))
		penalty += minFloat(20, float64(spamCount)*2)
	}

	for _, pattern := range placeholderPatterns {
		if strings.Contains(lower, pattern) {
			issues = append(issues, "Content contains placeholder text")
			penalty += 30
			break
		}
	}

	return issues, penalty
}

func (v *Validator) checkAuthor(author string) ([]string, float64) {
	if author == "" {
		return []string{"Author is missing"}, 5
	}
	if genericAuthors[strings.ToLower(author)] {
		return []string{fmt.Sprintf("Author has generic name: %s", author)}, 3
	}
	return nil, 0
}

func (v *Validator) checkPublishedDate(publishedAt time.Time, missing bool) ([]string, float64) {
	if missing || publishedAt.IsZero() {
		return []string{"Published date is missing"}, 5
	}

	var issues []string
	penalty := 0.0
	now := v.clock.Now()

	if publishedAt.After(now) {
		issues = append(issues, fmt.Sprintf("Published date is in the future: %s", publishedAt.Format(time.RFC3339)))
		penalty += 10
	}
	if publishedAt.Before(now.AddDate(0, 0, -v.cfg.MaxRecentDateDays)) {
		issues = append(issues, fmt.Sprintf("Published date is too old: %s", publishedAt.Format(time.RFC3339)))
		penalty += 5
	}
	return issues, penalty
}

func (v *Validator) checkImages(imageURL, content string) ([]string, float64) {
	imageCount := 0
	if imageURL != "" {
		imageCount++
	}
	imageCount += len(markdownImage.FindAllString(content, -1))
	imageCount += len(htmlImage.FindAllString(content, -1))

	if imageCount < v.cfg.MinImageCount {
		return []string{fmt.Sprintf("Article has too few images (%d images, minimum %d)", imageCount, v.cfg.MinImageCount)}, 5
	}
	return nil, 0
}

func (v *Validator) checkMetadata(metadata map[string]any) ([]string, float64) {
	if len(metadata) == 0 {
		return []string{"Metadata is missing"}, 5
	}
	if wc, ok := metadata["word_count"].(int); ok && wc < v.cfg.MinWordCount {
		return []string{fmt.Sprintf("Metadata word count is too low (%d words, minimum %d)", wc, v.cfg.MinWordCount)}, 5
	}
	return nil, 0
}

var htmlTag = regexp.MustCompile(`<[^>]+>`)
var spaceRun = regexp.MustCompile(`\s+`)

func stripHTMLTags(html string) string {
	text := htmlTag.ReplaceAllString(html, " ")
	replacements := [][2]string{
		{"&nbsp;", " "}, {"&amp;", "&"}, {"&lt;", "<"},
		{"&gt;", ">"}, {"&quot;", `"`}, {"&#39;", "'"},
	}
	for _, r := range replacements {
		text = strings.ReplaceAll(text, r[0], r[1])
	}
	return strings.TrimSpace(spaceRun.ReplaceAllString(text, " "))
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
