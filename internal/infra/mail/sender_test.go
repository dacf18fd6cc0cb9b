package mail

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/xavierca1/sherpa/internal/usecase"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func TestSMTPTransport_Send(t *testing.T) {
	dir := t.TempDir()
	deck := filepath.Join(dir, "deck.pdf")
	require.NoError(t, os.WriteFile(deck, []byte("%PDF-1.4"), 0o600))

	d := &fakeDialer{}
	tr := NewSMTPTransportWithDialer(d, "outreach@sherpa.io")

	id, err := tr.Send(context.Background(), usecase.OutboundEmail{
		To:             "ana@acme.io",
		Name:           "Ana Souza",
		Subject:        "quick question",
		Body:           "Saw your post.",
		AttachmentPath: deck,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "<"))
	assert.True(t, strings.HasSuffix(id, "@sherpa.io>"))

	require.Len(t, d.sent, 1)
	m := d.sent[0]
	assert.Equal(t, []string{id}, m.GetHeader("Message-Id"))
	assert.Equal(t, []string{"quick question"}, m.GetHeader("Subject"))
	assert.Contains(t, m.GetHeader("To")[0], "ana@acme.io")

	var raw bytes.Buffer
	_, err = m.WriteTo(&raw)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), "Saw your post.")
	assert.Contains(t, raw.String(), `filename="deck.pdf"`)
}

func TestSMTPTransport_SendError(t *testing.T) {
	tr := NewSMTPTransportWithDialer(&fakeDialer{err: errors.New("421 try later")}, "outreach@sherpa.io")

	_, err := tr.Send(context.Background(), usecase.OutboundEmail{To: "ana@acme.io", Subject: "s", Body: "b"})
	assert.ErrorContains(t, err, "421 try later")

	_, err = tr.Send(context.Background(), usecase.OutboundEmail{Subject: "s"})
	assert.Error(t, err)
}
