package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func fullArticlePage() string {
	paragraph := "<p>The committee approved the revised budget after a lengthy debate on " +
		"allocations for roads, schools and primary health centres across the state.</p>\n"
	return `<html><head><title>Budget passes</title></head><body>
<article>
<h1>Budget passes after lengthy debate</h1>
` + strings.Repeat(paragraph, 20) + `
</article>
</body></html>`
}

func TestNeedsRenderFullPage(t *testing.T) {
	require.False(t, Default().NeedsRender(fullArticlePage()))
}

func TestNeedsRenderTinyShell(t *testing.T) {
	shell := `<html><body><div id="app"></div></body></html>`
	require.True(t, Default().NeedsRender(shell))
}

func TestNeedsRenderJavascriptNotice(t *testing.T) {
	page := strings.Replace(fullArticlePage(),
		"</article>",
		"</article><noscript>Please enable JavaScript to view this page.</noscript>", 1)
	require.True(t, Default().NeedsRender(page))
}

func TestNeedsRenderMissingContentSelectors(t *testing.T) {
	filler := strings.Repeat("<div>x</div>", 400)
	page := "<html><body>" + filler + "</body></html>"
	require.True(t, Default().NeedsRender(page))
}

func TestNeedsRenderSelectorPresent(t *testing.T) {
	d := NewDetector(0, []string{".entry-content"}, nil)
	require.False(t, d.NeedsRender(`<html><body><div class="entry-content">text</div></body></html>`))
	require.True(t, d.NeedsRender(`<html><body><div class="other">text</div></body></html>`))
}

func TestNeedsRenderNilDetector(t *testing.T) {
	var d *Detector
	require.False(t, d.NeedsRender("<html></html>"))
}
