package apollo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xavierca1/sherpa/internal/usecase"
)

const DefaultBaseURL = "https://api.apollo.io/api/v1"

var ErrNotConfigured = errors.New("apollo: api key not configured")

// Client looks up contact details for a profile URL with the people/match
// endpoint.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(apiKey string, opts ...func(*Client)) *Client {
	c := &Client{
		BaseURL:    DefaultBaseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithBaseURL(baseURL string) func(*Client) {
	return func(c *Client) {
		if strings.TrimSpace(baseURL) != "" {
			c.BaseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// Lookup returns nil, nil when Apollo has no person with an email for the
// profile.
func (c *Client) Lookup(ctx context.Context, profileURL string) (*usecase.ContactInfo, error) {
	if c.APIKey == "" {
		return nil, ErrNotConfigured
	}

	payload, err := json.Marshal(matchRequest{LinkedInURL: profileURL})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/people/match", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("X-Api-Key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apollo people/match: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("apollo api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result matchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("apollo decode response: %w", err)
	}
	p := result.Person
	if p == nil || strings.TrimSpace(p.Email) == "" {
		return nil, nil
	}

	info := &usecase.ContactInfo{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     strings.TrimSpace(p.Email),
		Title:     p.Title,
		Location:  joinNonEmpty(", ", p.City, p.State, p.Country),
	}
	if p.Organization != nil {
		info.Company = p.Organization.Name
	}
	if len(p.PhoneNumbers) > 0 {
		info.Phone = p.PhoneNumbers[0].SanitizedNumber
	}
	return info, nil
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, sep)
}
