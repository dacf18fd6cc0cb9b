package mail

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	netmail "net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	mimemail "github.com/emersion/go-message/mail"

	"github.com/xavierca1/sherpa/internal/logging"
	"github.com/xavierca1/sherpa/internal/usecase"
)

const maxBodyBytes = 256 << 10

type imapClient interface {
	Login(username, password string) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	Logout() error
}

// IMAPInbox reads unread replies from one mailbox. Message ids are IMAP UIDs.
type IMAPInbox struct {
	Addr     string
	User     string
	Password string
	Mailbox  string

	dial   func(addr string) (imapClient, error)
	logger *slog.Logger
}

func NewIMAPInbox(addr, user, password, mailbox string) *IMAPInbox {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &IMAPInbox{
		Addr:     addr,
		User:     user,
		Password: password,
		Mailbox:  mailbox,
		dial:     dialTLS,
		logger:   logging.New("imap"),
	}
}

func dialTLS(addr string) (imapClient, error) {
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, err
	}
	c.Timeout = 30 * time.Second
	return c, nil
}

func (in *IMAPInbox) session(ctx context.Context) (imapClient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := in.dial(in.Addr)
	if err != nil {
		return nil, fmt.Errorf("imap dial %s: %w", in.Addr, err)
	}
	if err := c.Login(in.User, in.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select(in.Mailbox, false); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap select %s: %w", in.Mailbox, err)
	}
	return c, nil
}

// ListUnread fetches every message without the \Seen flag. Bodies are read
// with BODY.PEEK so listing does not mark anything read.
func (in *IMAPInbox) ListUnread(ctx context.Context) ([]usecase.InboundMessage, error) {
	c, err := in.session(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	set := new(imap.SeqSet)
	set.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, section.FetchItem()}

	ch := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() { done <- c.UidFetch(set, items, ch) }()

	var out []usecase.InboundMessage
	for m := range ch {
		msg, err := toInbound(m, section)
		if err != nil {
			in.logger.Warn("unreadable message body", "uid", m.Uid, logging.Err(err))
		}
		out = append(out, msg)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}
	return out, nil
}

func (in *IMAPInbox) MarkRead(ctx context.Context, id string) error {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return fmt.Errorf("imap: bad message id %q", id)
	}
	c, err := in.session(ctx)
	if err != nil {
		return err
	}
	defer c.Logout()

	set := new(imap.SeqSet)
	set.AddNum(uint32(uid))
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.UidStore(set, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		return fmt.Errorf("imap store \\Seen on %s: %w", id, err)
	}
	return nil
}

func toInbound(m *imap.Message, section *imap.BodySectionName) (usecase.InboundMessage, error) {
	msg := usecase.InboundMessage{MessageID: strconv.FormatUint(uint64(m.Uid), 10)}
	if env := m.Envelope; env != nil {
		msg.Subject = env.Subject
		if len(env.From) > 0 {
			from := env.From[0]
			msg.Sender = (&netmail.Address{Name: from.PersonalName, Address: from.Address()}).String()
		}
	}
	body := m.GetBody(section)
	if body == nil {
		return msg, nil
	}
	text, err := plainText(body)
	msg.Body = text
	return msg, err
}

// plainText returns the first text/plain part of a raw RFC 5322 message,
// decoded from its transfer encoding and charset to UTF-8. Nested multiparts
// are walked depth first.
func plainText(r io.Reader) (string, error) {
	mr, err := mimemail.CreateReader(io.LimitReader(r, maxBodyBytes))
	if err != nil && !message.IsUnknownCharset(err) {
		return "", err
	}
	defer mr.Close()

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return "", nil
		}
		if err != nil && (p == nil || !message.IsUnknownCharset(err)) {
			return "", err
		}
		h, ok := p.Header.(*mimemail.InlineHeader)
		if !ok {
			continue
		}
		if ct, _, err := h.ContentType(); err == nil && ct != "text/plain" {
			continue
		}
		b, err := io.ReadAll(p.Body)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
}
