package mail

import (
	"log/slog"

	"gopkg.in/gomail.v2"
)

// Dialer is the part of *gomail.Dialer the transport uses.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPTransport struct {
	From   string
	domain string
	dialer Dialer
	logger *slog.Logger
}
