package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/xavierca1/sherpa/internal/entity"
	"github.com/xavierca1/sherpa/internal/logging"
)

// IngestRepliesUseCase reconciles inbound mail with lead status. It is
// trigger agnostic: a ticker, the CLI or an HTTP call runs IngestOnce.
type IngestRepliesUseCase struct {
	Leads      entity.LeadRepositoryInterface
	Inbox      Inbox
	Classifier Classifier
	CRM        CRM
	// UnclearAsReplied moves leads to Replied on OTHER instead of leaving
	// the status as it is.
	UnclearAsReplied bool
	Logger           *slog.Logger
}

// IngestOnce handles every unread message once. Messages that could not be
// applied stay unread for the next run.
func (uc *IngestRepliesUseCase) IngestOnce(ctx context.Context) (report PassReport, err error) {
	report = newPassReport("ingest")
	defer report.finish()
	log := uc.logger()

	msgs, err := uc.Inbox.ListUnread(ctx)
	if err != nil {
		return report, err
	}

	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Examined++
		uc.handle(context.WithoutCancel(ctx), msg, &report, log)
	}

	log.Info("ingest pass finished",
		"messages", report.Examined,
		"transitioned", report.Advanced,
		"skipped", report.Skipped,
		"failed", len(report.Failures))
	return report, nil
}

func (uc *IngestRepliesUseCase) handle(ctx context.Context, msg InboundMessage, report *PassReport, log *slog.Logger) {
	log = log.With("message_id", msg.MessageID)

	addr, ok := senderAddress(msg.Sender)
	if !ok {
		log.Debug("sender address unreadable, message left unread", "sender", msg.Sender)
		report.Skipped++
		return
	}

	lead, err := uc.Leads.FindByEmail(ctx, addr)
	if errors.Is(err, entity.ErrLeadNotFound) {
		log.Debug("no lead for sender, message left unread", "sender", addr)
		report.Skipped++
		return
	}
	if err != nil {
		log.Error("look up sender", logging.Err(err))
		report.fail("", "", err)
		return
	}
	log = log.With("lead_id", lead.ID)

	if !lead.Status.AcceptsReplies() {
		log.Info("lead does not accept replies, message marked read", "status", lead.Status)
		uc.markRead(ctx, msg, lead.ID, report, log)
		report.Skipped++
		return
	}

	category, err := uc.Classifier.Classify(ctx, msg)
	if err != nil {
		log.Warn("classification failed, treating reply as OTHER", logging.Err(&ClassificationError{MessageID: msg.MessageID, Err: err}))
		category = CategoryOther
	}

	next := uc.target(category)
	if next == "" || next == lead.Status {
		log.Info("reply needs no status change", "category", category, "status", lead.Status)
		uc.markRead(ctx, msg, lead.ID, report, log)
		return
	}

	updated, err := uc.Leads.Transition(ctx, lead.ID, lead.Status, next, nil)
	switch {
	case isStale(err):
		log.Info("lead changed during ingest, message left unread", logging.Err(err))
		report.stale(lead.ID)
		return
	case errors.Is(err, entity.ErrInvalidTransition):
		log.Error("reply maps to an illegal transition", "category", category, logging.Err(err))
		report.fail(lead.ID, "", err)
		return
	case err != nil:
		log.Error("apply reply", logging.Err(err))
		report.fail(lead.ID, "", err)
		return
	}

	report.Advanced++
	log.Info("reply applied", "category", category, "from", lead.Status, "to", next)
	uc.markRead(ctx, msg, lead.ID, report, log)

	if next == entity.StatusInterested && uc.CRM != nil {
		if err := uc.CRM.HandOff(ctx, updated); err != nil {
			log.Warn("crm hand-off failed", logging.Err(err))
		}
	}
}

func (uc *IngestRepliesUseCase) target(c ReplyCategory) entity.Status {
	switch c {
	case CategoryInterested:
		return entity.StatusInterested
	case CategoryLater:
		return entity.StatusSnoozed
	case CategoryStop:
		return entity.StatusDead
	}
	if uc.UnclearAsReplied {
		return entity.StatusReplied
	}
	return ""
}

func (uc *IngestRepliesUseCase) markRead(ctx context.Context, msg InboundMessage, leadID string, report *PassReport, log *slog.Logger) {
	if err := uc.Inbox.MarkRead(ctx, msg.MessageID); err != nil {
		log.Error("mark message read", logging.Err(err))
		report.fail(leadID, "", err)
	}
}

// senderAddress extracts the bare address from "Name <addr>" or "addr".
func senderAddress(sender string) (string, bool) {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return "", false
	}
	if a, err := mail.ParseAddress(sender); err == nil {
		return strings.ToLower(a.Address), true
	}
	if i, j := strings.LastIndex(sender, "<"), strings.LastIndex(sender, ">"); i >= 0 && j > i {
		sender = sender[i+1 : j]
	}
	sender = strings.TrimSpace(sender)
	if !strings.Contains(sender, "@") {
		return "", false
	}
	return strings.ToLower(sender), true
}

func (uc *IngestRepliesUseCase) logger() *slog.Logger {
	if uc.Logger != nil {
		return uc.Logger
	}
	return logging.New("ingest")
}
