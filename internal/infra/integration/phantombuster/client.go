package phantombuster

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.phantombuster.com/api/v2"
	// profilesPerSearch is how many profiles one search export collects.
	profilesPerSearch = 60
)

var ErrNotConfigured = errors.New("phantombuster: api key or agent id not configured")

// Client drives two PhantomBuster agents: a profile search export used for
// discovery and a network booster used for connection requests.
type Client struct {
	BaseURL           string
	APIKey            string
	SearchAgentID     string
	ConnectionAgentID string
	HTTPClient        *http.Client
}

func NewClient(apiKey string, opts ...func(*Client)) *Client {
	c := &Client{
		BaseURL:    DefaultBaseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
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

func WithSearchAgent(id string) func(*Client) {
	return func(c *Client) { c.SearchAgentID = id }
}

func WithConnectionAgent(id string) func(*Client) {
	return func(c *Client) { c.ConnectionAgentID = id }
}

// Launch starts a search export for the given search URL and returns the
// container id of the run.
func (c *Client) Launch(ctx context.Context, searchURL string) (string, error) {
	if c.APIKey == "" || c.SearchAgentID == "" {
		return "", ErrNotConfigured
	}
	return c.launch(ctx, c.SearchAgentID, map[string]any{
		"searchUrl":        searchURL,
		"numberOfProfiles": profilesPerSearch,
	})
}

// LaunchConnection sends one connection request with note.
func (c *Client) LaunchConnection(ctx context.Context, profileURL, note string) (string, error) {
	if c.APIKey == "" || c.ConnectionAgentID == "" {
		return "", ErrNotConfigured
	}
	return c.launch(ctx, c.ConnectionAgentID, map[string]any{
		"profileUrls":           []string{profileURL},
		"message":               note,
		"numberOfAddsPerLaunch": 1,
	})
}

// FetchResult returns the profile URLs of a run. An empty jobID reads the
// latest output of the search agent.
func (c *Client) FetchResult(ctx context.Context, jobID string) (iter.Seq[string], error) {
	if c.APIKey == "" || c.SearchAgentID == "" {
		return nil, ErrNotConfigured
	}
	endpoint := "/agents/fetch-output?id=" + url.QueryEscape(c.SearchAgentID)
	if jobID != "" {
		endpoint = "/containers/fetch-output?id=" + url.QueryEscape(jobID)
	}

	var out outputResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return ProfileURLs(out.Output), nil
}

func (c *Client) launch(ctx context.Context, agentID string, argument map[string]any) (string, error) {
	var out launchResponse
	if err := c.do(ctx, http.MethodPost, "/agents/launch", launchRequest{ID: agentID, Argument: argument}, &out); err != nil {
		return "", err
	}
	return out.ContainerID, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("X-Phantombuster-Key", c.APIKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("phantombuster %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		_ = json.Unmarshal(raw, &e)
		msg := e.Error
		if msg == "" {
			msg = e.Message
		}
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return fmt.Errorf("phantombuster api error %d: %s", resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// ProfileURLs lazily extracts profile URLs from an agent output. The output
// may be a JSON list, a single JSON object or JSON lines; lines that do not
// parse are skipped.
func ProfileURLs(output string) iter.Seq[string] {
	return func(yield func(string) bool) {
		output = strings.TrimSpace(output)
		if output == "" {
			return
		}

		var list []map[string]any
		if err := json.Unmarshal([]byte(output), &list); err == nil {
			for _, item := range list {
				if u := profileURL(item); u != "" && !yield(u) {
					return
				}
			}
			return
		}
		var single map[string]any
		if err := json.Unmarshal([]byte(output), &single); err == nil {
			if u := profileURL(single); u != "" {
				yield(u)
			}
			return
		}

		sc := bufio.NewScanner(strings.NewReader(output))
		sc.Buffer(make([]byte, 64<<10), 1<<20)
		for sc.Scan() {
			var item map[string]any
			if err := json.Unmarshal(sc.Bytes(), &item); err != nil {
				continue
			}
			if u := profileURL(item); u != "" && !yield(u) {
				return
			}
		}
	}
}

func profileURL(item map[string]any) string {
	for _, key := range []string{"profileUrl", "url", "linkedinUrl"} {
		if s, ok := item[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
