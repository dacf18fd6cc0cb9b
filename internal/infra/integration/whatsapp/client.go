package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/xavierca1/sherpa/internal/logging"
)

const DefaultBaseURL = "https://graph.facebook.com/v18.0"

var ErrNotConfigured = errors.New("whatsapp: access token or phone id not configured")

// Client sends chat nudges through the WhatsApp Cloud API.
type Client struct {
	accessToken string
	phoneID     string
	baseURL     string
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewClient(accessToken, phoneID, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		accessToken: accessToken,
		phoneID:     phoneID,
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		logger:      logging.New("whatsapp"),
	}
}

// IsReady reports whether the client has credentials.
func (c *Client) IsReady(context.Context) bool {
	return c.accessToken != "" && c.phoneID != ""
}

// Send delivers text to phone. It satisfies the chat session contract.
func (c *Client) Send(ctx context.Context, phone, text string) error {
	_, err := c.SendMessage(ctx, SendMessageInput{PhoneNumber: phone, Text: text})
	return err
}

// SendMessage returns the WhatsApp message id.
func (c *Client) SendMessage(ctx context.Context, input SendMessageInput) (string, error) {
	if !c.IsReady(ctx) {
		return "", ErrNotConfigured
	}

	to := digits(input.PhoneNumber)
	if to == "" {
		return "", fmt.Errorf("whatsapp: invalid phone number %q", input.PhoneNumber)
	}

	body, err := json.Marshal(sendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             textBody{Body: input.Text},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var result SendMessageResponse
	_ = json.Unmarshal(respBody, &result)
	if result.Error != nil {
		return "", fmt.Errorf("whatsapp api error %d: %s (code %d)", resp.StatusCode, result.Error.Message, result.Error.Code)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("whatsapp api error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	id := ""
	if len(result.Messages) > 0 {
		id = result.Messages[0].ID
	}
	c.logger.Debug("message sent", "to", to, "message_id", id)
	return id, nil
}

func digits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
