package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/xavierca1/sherpa/internal/usecase"
)

// Classifier labels a reply with one of the four reply categories.
type Classifier struct {
	Client *Client
	Model  string
}

func NewClassifier(c *Client, model string) *Classifier {
	if model == "" {
		model = DefaultClassifierModel
	}
	return &Classifier{Client: c, Model: model}
}

func (c *Classifier) Classify(ctx context.Context, msg usecase.InboundMessage) (usecase.ReplyCategory, error) {
	prompt := fmt.Sprintf(`Classify this reply to a sales outreach email into exactly one category:
- INTERESTED: they want to know more, meet, or chat.
- LATER: they are interested but busy, or asked to follow up later.
- STOP: they are not interested, asked to unsubscribe, or asked to stop contacting them.
- OTHER: out of office, automatic replies, or unclear.

Subject: %s
Body:
%s

Answer with the category name only.`, msg.Subject, msg.Body)

	text, err := c.Client.generate(ctx, c.Model, prompt, false)
	if err != nil {
		return "", err
	}
	word := strings.Trim(strings.TrimSpace(text), ".*`\"'")
	if i := strings.IndexAny(word, " \n"); i > 0 {
		word = word[:i]
	}
	return usecase.ParseCategory(word)
}
