package phantombuster

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileURLs(t *testing.T) {
	cases := map[string]string{
		"list":        `[{"profileUrl":"https://linkedin.com/in/a"},{"url":"https://linkedin.com/in/b"},{"name":"no url"}]`,
		"object":      "{\n  \"linkedinUrl\": \"https://linkedin.com/in/a\"\n}",
		"json lines":  "{\"profileUrl\":\"https://linkedin.com/in/a\"}\nnot json\n{\"url\":\"https://linkedin.com/in/b\"}\n",
		"empty":       "",
		"plain words": "the run failed",
	}
	want := map[string][]string{
		"list":        {"https://linkedin.com/in/a", "https://linkedin.com/in/b"},
		"object":      {"https://linkedin.com/in/a"},
		"json lines":  {"https://linkedin.com/in/a", "https://linkedin.com/in/b"},
		"empty":       nil,
		"plain words": nil,
	}
	for name, output := range cases {
		assert.Equal(t, want[name], slices.Collect(ProfileURLs(output)), name)
	}
}

func TestProfileURLs_StopsEarly(t *testing.T) {
	var got []string
	for u := range ProfileURLs(`[{"url":"a"},{"url":"b"},{"url":"c"}]`) {
		got = append(got, u)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestClient_LaunchAndFetch(t *testing.T) {
	var launched launchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pb-key", r.Header.Get("X-Phantombuster-Key"))
		switch r.URL.Path {
		case "/agents/launch":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&launched))
			_, _ = w.Write([]byte(`{"containerId":"c-1"}`))
		case "/containers/fetch-output":
			assert.Equal(t, "c-1", r.URL.Query().Get("id"))
			_, _ = w.Write([]byte(`{"status":"finished","output":"{\"profileUrl\":\"https://linkedin.com/in/a\"}\n"}`))
		case "/agents/fetch-output":
			assert.Equal(t, "search-1", r.URL.Query().Get("id"))
			_, _ = w.Write([]byte(`{"output":"[]"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"unknown route"}`))
		}
	}))
	defer srv.Close()

	c := NewClient("pb-key", WithBaseURL(srv.URL), WithSearchAgent("search-1"), WithConnectionAgent("conn-1"))
	ctx := context.Background()

	id, err := c.Launch(ctx, "https://linkedin.com/search/results/people/?keywords=cto")
	require.NoError(t, err)
	assert.Equal(t, "c-1", id)
	assert.Equal(t, "search-1", launched.ID)
	assert.Equal(t, "https://linkedin.com/search/results/people/?keywords=cto", launched.Argument["searchUrl"])

	urls, err := c.FetchResult(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://linkedin.com/in/a"}, slices.Collect(urls))

	urls, err = c.FetchResult(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, slices.Collect(urls))

	_, err = c.LaunchConnection(ctx, "https://linkedin.com/in/a", "Hi Ana")
	require.NoError(t, err)
	assert.Equal(t, "conn-1", launched.ID)
	assert.Equal(t, "Hi Ana", launched.Argument["message"])
	assert.Equal(t, []any{"https://linkedin.com/in/a"}, launched.Argument["profileUrls"])
}

func TestClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"Agent already running"}`))
	}))
	defer srv.Close()

	c := NewClient("pb-key", WithBaseURL(srv.URL), WithSearchAgent("s"))
	_, err := c.Launch(context.Background(), "q")
	assert.ErrorContains(t, err, "Agent already running")

	_, err = NewClient("pb-key").LaunchConnection(context.Background(), "u", "n")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
