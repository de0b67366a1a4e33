package newsletter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatStars(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1k"},
		{12345, "12.3k"},
		{2000000, "2M"},
		{2500000, "2.5M"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatStars(tt.in), "stars %d", tt.in)
	}
}

func TestRenderer_Subject(t *testing.T) {
	r := NewRenderer()

	out, err := r.Subject("  {{ top_repository }} and {{ repository_count }} more  ", map[string]any{
		"top_repository":   "acme/rocket",
		"repository_count": 4,
	})
	require.NoError(t, err)
	assert.Equal(t, "acme/rocket and 4 more", out)

	out, err = r.Subject("Plain subject", nil)
	require.NoError(t, err)
	assert.Equal(t, "Plain subject", out)

	_, err = r.Subject("{% if %}", nil)
	assert.Error(t, err)
}

func TestRenderer_Body(t *testing.T) {
	r := NewRenderer()
	vars := map[string]any{
		"heading": "Trending",
		"repositories": []map[string]any{
			{"name": "rocket", "full_name": "acme/rocket", "description": "Fast <things>", "stars": 15200, "language": "Rust", "url": "https://example.com/r"},
		},
		"repository_count":     1,
		"reasons":              []string{"Matches your interest in Rust"},
		"include_social_proof": true,
		"cta_text":             "View on GitHub",
		"cta_url":              "https://example.com/r",
		"unsubscribe_url":      "https://t.example.com/track/unsubscribe/a/b",
		"open_pixel_url":       "https://t.example.com/track/open/a/b",
	}

	html, text, err := r.Body("v1", vars)
	require.NoError(t, err)
	assert.Contains(t, html, `<a href="https://example.com/r">acme/rocket</a>`)
	assert.Contains(t, html, "Fast &lt;things&gt;")
	assert.Contains(t, html, "15.2k")
	assert.Contains(t, html, "Matches your interest in Rust")
	assert.Contains(t, html, `<img src="https://t.example.com/track/open/a/b"`)
	assert.Contains(t, text, "1. acme/rocket (15.2k stars)")
	assert.Contains(t, text, "Unsubscribe: https://t.example.com/track/unsubscribe/a/b")

	compact, _, err := r.Body("compact", vars)
	require.NoError(t, err)
	assert.NotContains(t, compact, "Fast &lt;things&gt;")

	fallback, _, err := r.Body("v9", vars)
	require.NoError(t, err)
	assert.Equal(t, html, fallback)
}

func TestHasLayout(t *testing.T) {
	assert.True(t, HasLayout("v1"))
	assert.True(t, HasLayout("compact"))
	assert.False(t, HasLayout(""))
}
