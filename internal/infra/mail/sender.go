package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/xavierca1/sherpa/internal/logging"
	"github.com/xavierca1/sherpa/internal/usecase"
)

func NewSMTPTransport(host string, port int, user, password, from string) *SMTPTransport {
	return NewSMTPTransportWithDialer(gomail.NewDialer(host, port, user, password), from)
}

func NewSMTPTransportWithDialer(d Dialer, from string) *SMTPTransport {
	domain := "sherpa.local"
	if i := strings.LastIndex(from, "@"); i >= 0 && i < len(from)-1 {
		domain = strings.Trim(from[i+1:], "> ")
	}
	return &SMTPTransport{
		From:   from,
		domain: domain,
		dialer: d,
		logger: logging.New("smtp"),
	}
}

// Send delivers one plain-text message and returns its Message-ID.
func (s *SMTPTransport) Send(ctx context.Context, msg usecase.OutboundEmail) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if msg.To == "" {
		return "", fmt.Errorf("smtp: recipient is required")
	}

	id := fmt.Sprintf("<%s@%s>", uuid.New().String(), s.domain)

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	if msg.Name != "" {
		m.SetAddressHeader("To", msg.To, msg.Name)
	} else {
		m.SetHeader("To", msg.To)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-Id", id)
	m.SetBody("text/plain", msg.Body)
	if msg.AttachmentPath != "" {
		m.Attach(msg.AttachmentPath)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return "", fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	s.logger.Debug("email sent", "to", msg.To, "message_id", id)
	return id, nil
}
