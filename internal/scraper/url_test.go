package scraper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "lowercases scheme and host",
			in:   "HTTPS://Example.COM/News",
			want: "https://example.com/News",
		},
		{
			name: "strips default https port",
			in:   "https://example.com:443/a",
			want: "https://example.com/a",
		},
		{
			name: "strips default http port",
			in:   "http://example.com:80/a",
			want: "http://example.com/a",
		},
		{
			name: "removes fragment",
			in:   "https://example.com/a#comments",
			want: "https://example.com/a",
		},
		{
			name: "sorts query parameters",
			in:   "https://example.com/a?z=1&a=2",
			want: "https://example.com/a?a=2&z=1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestIsValidArticleURL(t *testing.T) {
	base := "https://www.blueprint.ng"

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"cross domain rejected", "https://other.com/news/some-story-here", false},
		{"bare root rejected", "https://www.blueprint.ng/", false},
		{"wp-content rejected", "https://www.blueprint.ng/wp-content/uploads/pic", false},
		{"admin rejected", "https://www.blueprint.ng/admin/panel-settings-page", false},
		{"asset extension rejected", "https://www.blueprint.ng/styles/site.css", false},
		{"feed rejected", "https://www.blueprint.ng/feed/", false},
		{"single slug accepted", "https://www.blueprint.ng/buhari-signs-new-bill-2024", true},
		{"short single segment rejected", "https://www.blueprint.ng/abuja", false},
		{"dated path accepted", "https://www.blueprint.ng/2024/03/15/item", true},
		{"dash dated path accepted", "https://www.blueprint.ng/2024-03-15/item", true},
		{"news section accepted", "https://www.blueprint.ng/news/x", true},
		{"politics section accepted", "https://www.blueprint.ng/politics/y", true},
		{"sectioned slug accepted", "https://www.blueprint.ng/metro-extra/lagos-traffic-update-today", true},
		{"sectioned short tail rejected", "https://www.blueprint.ng/misc/ab", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsValidArticleURL(tt.url, base))
		})
	}
}
