package analytics

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ignite/newsletter-engine/internal/domain"
)

// UTM source and medium stamped on every newsletter link.
const (
	UTMSource = "newsletter"
	UTMMedium = "email"
)

// UTM returns the tracking parameters for one link of a campaign.
func (s *Service) UTM(campaignID, linkID string) (domain.UTMParameters, error) {
	c, err := s.Campaign(campaignID)
	if err != nil {
		return domain.UTMParameters{}, err
	}
	return domain.UTMParameters{
		Source:   UTMSource,
		Medium:   UTMMedium,
		Campaign: c.Name,
		Content:  linkID,
	}, nil
}

// AddUTM appends the parameters to rawURL, keeping any existing query and
// fragment. Parameters are emitted in source, medium, campaign, term,
// content order; empty optional ones are left out.
func AddUTM(rawURL string, p domain.UTMParameters) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not absolute", ErrInvalidURL, rawURL)
	}

	pairs := []string{
		"utm_source=" + url.QueryEscape(p.Source),
		"utm_medium=" + url.QueryEscape(p.Medium),
		"utm_campaign=" + url.QueryEscape(p.Campaign),
	}
	if p.Term != "" {
		pairs = append(pairs, "utm_term="+url.QueryEscape(p.Term))
	}
	if p.Content != "" {
		pairs = append(pairs, "utm_content="+url.QueryEscape(p.Content))
	}

	query := strings.Join(pairs, "&")
	if u.RawQuery != "" {
		query = u.RawQuery + "&" + query
	}
	u.RawQuery = query
	return u.String(), nil
}
