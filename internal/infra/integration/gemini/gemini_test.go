package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/sherpa/internal/entity"
	"github.com/xavierca1/sherpa/internal/usecase"
)

// fakeGemini answers every generateContent call with text and records the
// last request.
func fakeGemini(t *testing.T, status int, text string) (*Client, *generateRequest) {
	t.Helper()
	var last generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&last))
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exhausted"}}`))
			return
		}
		resp := map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{"text": text}}},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return NewClient("test-key", WithBaseURL(srv.URL)), &last
}

func TestDrafter_Generate(t *testing.T) {
	c, last := fakeGemini(t, http.StatusOK,
		"```json\n{\"email_subject\":\"quick question\",\"email_body\":\"Saw your post.\",\"connection_note\":null,\"chat_nudge\":\"hey\"}\n```")

	lead := entity.NewLead("", entity.StatusEnriched)
	lead.FirstName = "Ana"
	lead.Email = "ana@acme.io"
	ex, err := entity.NewTrainingExample(entity.ChannelEmail, "Loved your talk on pricing.", "conference")
	require.NoError(t, err)

	d, err := NewDrafter(c, "", entity.DefaultDraftPolicy()).Generate(context.Background(), lead, []*entity.TrainingExample{ex})
	require.NoError(t, err)

	assert.Equal(t, "quick question", entity.Text(d.EmailSubject))
	assert.Nil(t, d.ConnectionNote)
	assert.Equal(t, "hey", entity.Text(d.ChatNudge))

	prompt := last.Contents[0].Parts[0].Text
	assert.Contains(t, prompt, "Profile URL: N/A")
	assert.Contains(t, prompt, "Loved your talk on pricing.")
	assert.Equal(t, "application/json", last.GenerationConfig.ResponseMimeType)
}

func TestParseDraft_RequiresAllKeys(t *testing.T) {
	_, err := ParseDraft(`{"email_subject":"a","email_body":"b","connection_note":"c"}`)
	assert.ErrorContains(t, err, "chat_nudge")

	_, err = ParseDraft(`{"email_subject":1,"email_body":"b","connection_note":"c","chat_nudge":null}`)
	assert.Error(t, err)

	_, err = ParseDraft(`not json`)
	assert.Error(t, err)
}

func TestDrafter_APIError(t *testing.T) {
	c, _ := fakeGemini(t, http.StatusTooManyRequests, "")
	_, err := NewDrafter(c, "", entity.DefaultDraftPolicy()).Generate(context.Background(), entity.NewLead("", entity.StatusNew), nil)
	assert.ErrorContains(t, err, "quota exhausted")
}

func TestClient_NotConfigured(t *testing.T) {
	_, err := NewClient("").generate(context.Background(), "m", "p", false)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClassifier(t *testing.T) {
	cases := map[string]usecase.ReplyCategory{
		"INTERESTED":       usecase.CategoryInterested,
		"later.\n":         usecase.CategoryLater,
		"**STOP**":         usecase.CategoryStop,
		"OTHER - auto rep": usecase.CategoryOther,
	}
	for answer, want := range cases {
		c, _ := fakeGemini(t, http.StatusOK, answer)
		got, err := NewClassifier(c, "").Classify(context.Background(), usecase.InboundMessage{Body: "hi"})
		require.NoError(t, err, answer)
		assert.Equal(t, want, got, answer)
	}

	c, _ := fakeGemini(t, http.StatusOK, "MAYBE")
	_, err := NewClassifier(c, "").Classify(context.Background(), usecase.InboundMessage{Body: "hi"})
	assert.Error(t, err)
}
