package analytics_test

import (
	"testing"

	"github.com/ignite/newsletter-engine/internal/analytics"
	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUTM(t *testing.T) {
	s := newService()
	id := s.CreateCampaign("Weekly Digest", "Hello", "v1", nil)

	p, err := s.UTM(id, "repo-1")
	require.NoError(t, err)
	assert.Equal(t, domain.UTMParameters{
		Source:   "newsletter",
		Medium:   "email",
		Campaign: "Weekly Digest",
		Content:  "repo-1",
	}, p)

	_, err = s.UTM("missing", "repo-1")
	assert.ErrorIs(t, err, analytics.ErrCampaignNotFound)
}

func TestAddUTM(t *testing.T) {
	params := domain.UTMParameters{Source: "newsletter", Medium: "email", Campaign: "Weekly Digest", Content: "repo-1"}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain url",
			in:   "https://github.com/acme/widget",
			want: "https://github.com/acme/widget?utm_source=newsletter&utm_medium=email&utm_campaign=Weekly+Digest&utm_content=repo-1",
		},
		{
			name: "existing query and fragment",
			in:   "https://example.com/repo?ref=x#readme",
			want: "https://example.com/repo?ref=x&utm_source=newsletter&utm_medium=email&utm_campaign=Weekly+Digest&utm_content=repo-1#readme",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := analytics.AddUTM(tt.in, params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	withTerm := params
	withTerm.Term = "rust"
	got, err := analytics.AddUTM("https://example.com", withTerm)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com?utm_source=newsletter&utm_medium=email&utm_campaign=Weekly+Digest&utm_term=rust&utm_content=repo-1", got)
}

func TestAddUTM_InvalidURL(t *testing.T) {
	for _, raw := range []string{"not a url", "://missing-scheme", "/relative/path"} {
		_, err := analytics.AddUTM(raw, domain.UTMParameters{})
		assert.ErrorIs(t, err, analytics.ErrInvalidURL, raw)
	}
}
