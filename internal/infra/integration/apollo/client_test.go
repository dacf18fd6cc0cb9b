package apollo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/sherpa/internal/usecase"
)

func TestClient_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/people/match", r.URL.Path)
		assert.Equal(t, "apollo-key", r.Header.Get("X-Api-Key"))

		var req matchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.LinkedInURL {
		case "https://linkedin.com/in/ana":
			_, _ = w.Write([]byte(`{"person":{"first_name":"Ana","last_name":"Souza","email":"ana@acme.io",
				"title":"CTO","city":"Lisbon","country":"Portugal","organization":{"name":"Acme"},
				"phone_numbers":[{"sanitized_number":"+351910000000"}]}}`))
		case "https://linkedin.com/in/noemail":
			_, _ = w.Write([]byte(`{"person":{"first_name":"No","email":null}}`))
		default:
			_, _ = w.Write([]byte(`{"person":null}`))
		}
	}))
	defer srv.Close()

	c := NewClient("apollo-key", WithBaseURL(srv.URL))

	info, err := c.Lookup(context.Background(), "https://linkedin.com/in/ana")
	require.NoError(t, err)
	assert.Equal(t, &usecase.ContactInfo{
		FirstName: "Ana",
		LastName:  "Souza",
		Email:     "ana@acme.io",
		Phone:     "+351910000000",
		Company:   "Acme",
		Title:     "CTO",
		Location:  "Lisbon, Portugal",
	}, info)

	for _, u := range []string{"https://linkedin.com/in/noemail", "https://linkedin.com/in/ghost"} {
		info, err := c.Lookup(context.Background(), u)
		require.NoError(t, err, u)
		assert.Nil(t, info, u)
	}
}

func TestClient_LookupErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer srv.Close()

	_, err := NewClient("bad", WithBaseURL(srv.URL)).Lookup(context.Background(), "u")
	assert.ErrorContains(t, err, "401")

	_, err = NewClient("").Lookup(context.Background(), "u")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
