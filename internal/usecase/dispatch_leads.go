package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xavierca1/sherpa/internal/entity"
	"github.com/xavierca1/sherpa/internal/logging"
)

var (
	errChatNotReady = errors.New("chat session not ready")
	errNotSent      = errors.New("pass stopped before the email went out")
)

// DispatchLeadsUseCase sends approved drafts. Email is the primary channel:
// only a confirmed email send moves a lead to Contacted. Connection requests
// and chat nudges are best effort and never change status.
type DispatchLeadsUseCase struct {
	Leads      entity.LeadRepositoryInterface
	Deliveries entity.DeliveryRepositoryInterface

	Mail        MailTransport
	Connections ConnectionRequester
	Chat        ChatSession
	Attachments AttachmentResolver

	// EmailPacer is shared by every dispatch pass in the process. It wraps
	// the send itself so claim bookkeeping never eats into the gap.
	EmailPacer SendPacer
	ChatPacer  Pacer

	// ClaimLease is how long a pending claim may live before it is treated
	// as abandoned. Zero disables the sweep.
	ClaimLease time.Duration
	BatchSize  int
	Logger     *slog.Logger
}

type sendResult struct {
	channel    entity.Channel
	externalID string
	err        error
}

func (uc *DispatchLeadsUseCase) Execute(ctx context.Context) (report PassReport, err error) {
	report = newPassReport("dispatch")
	defer report.finish()
	log := uc.logger()

	if uc.ClaimLease > 0 {
		n, err := uc.Deliveries.ReleaseExpiredClaims(ctx, uc.ClaimLease)
		if err != nil {
			return report, err
		}
		if n > 0 {
			log.Warn("released abandoned delivery claims", "count", n)
		}
	}

	leads, err := uc.Leads.List(ctx, entity.LeadFilter{
		Statuses: []entity.Status{entity.StatusApproved},
		Limit:    uc.BatchSize,
	})
	if err != nil {
		return report, err
	}

	for _, lead := range leads {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Examined++
		if err := uc.dispatchLead(ctx, lead.ID, &report); err != nil {
			// only cancellation while waiting for the email slot ends up here
			return report, err
		}
	}

	log.Info("dispatch pass finished",
		"examined", report.Examined,
		"contacted", report.Advanced,
		"stale", len(report.Stale),
		"failed", len(report.Failures))
	return report, nil
}

// dispatchLead runs every eligible channel for one lead. It returns an error
// only when ctx ended while the email was waiting for its slot.
func (uc *DispatchLeadsUseCase) dispatchLead(ctx context.Context, id string, report *PassReport) error {
	log := uc.logger().With("lead_id", id)

	lead, err := uc.Leads.Get(ctx, id)
	if err != nil {
		if errors.Is(err, entity.ErrLeadNotFound) {
			report.Skipped++
			return nil
		}
		report.fail(id, "", err)
		return nil
	}
	if lead.Status != entity.StatusApproved {
		log.Info("lead left Approved before dispatch, skipped", "status", lead.Status)
		report.Skipped++
		return nil
	}

	channels := uc.eligibleChannels(ctx, lead)
	if len(channels) == 0 {
		// stays Approved until an operator adds an address or edits the draft
		log.Info("approved lead has no sendable channel")
		report.Skipped++
		return nil
	}

	var claimed []entity.Channel
	for _, ch := range channels {
		err := uc.Deliveries.ClaimDelivery(ctx, lead.ID, entity.StatusApproved, ch)
		switch {
		case err == nil:
			claimed = append(claimed, ch)
		case isStale(err) && ch == entity.ChannelEmail:
			uc.releaseAll(context.WithoutCancel(ctx), lead.ID, claimed)
			if uc.emailAlreadySent(ctx, lead.ID) {
				uc.reconcileContacted(ctx, lead.ID, report, log)
				return nil
			}
			// another pass owns this lead's email
			log.Info("email already claimed or lead moved, skipped", logging.Err(err))
			report.stale(lead.ID)
			return nil
		case isStale(err):
			log.Debug("channel already attempted", "channel", ch)
		default:
			log.Error("claim delivery", "channel", ch, logging.Err(err))
			report.fail(lead.ID, ch, err)
		}
	}
	if len(claimed) == 0 {
		report.Skipped++
		return nil
	}

	// claims are held: finish this lead even if the pass is being stopped
	sendCtx := context.WithoutCancel(ctx)
	results := make([]sendResult, len(claimed))
	var g errgroup.Group
	for i, ch := range claimed {
		g.Go(func() error {
			extID, err := uc.send(sendCtx, ctx, lead, ch)
			results[i] = sendResult{channel: ch, externalID: extID, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var stopped error
	for _, res := range results {
		if errors.Is(res.err, errNotSent) {
			stopped = ctx.Err()
		}
		uc.settle(sendCtx, lead, res, report, log)
	}
	return stopped
}

// emailAlreadySent reports whether this lead's email went out in an earlier
// pass whose Contacted transition lost to an operator edit.
func (uc *DispatchLeadsUseCase) emailAlreadySent(ctx context.Context, leadID string) bool {
	list, err := uc.Deliveries.ListDeliveries(ctx, leadID)
	if err != nil {
		uc.logger().Error("list deliveries", "lead_id", leadID, logging.Err(err))
		return false
	}
	for _, d := range list {
		if d.Channel == entity.ChannelEmail && d.Status == entity.DeliverySent {
			return true
		}
	}
	return false
}

func (uc *DispatchLeadsUseCase) reconcileContacted(ctx context.Context, leadID string, report *PassReport, log *slog.Logger) {
	_, err := uc.Leads.Transition(ctx, leadID, entity.StatusApproved, entity.StatusContacted, nil)
	switch {
	case err == nil:
		log.Warn("email was already sent, lead marked Contacted")
		report.Advanced++
	case isStale(err):
		report.stale(leadID)
	default:
		log.Error("mark contacted", logging.Err(err))
		report.fail(leadID, entity.ChannelEmail, err)
	}
}

// eligibleChannels lists the channels whose preconditions hold, email first.
func (uc *DispatchLeadsUseCase) eligibleChannels(ctx context.Context, lead *entity.Lead) []entity.Channel {
	var out []entity.Channel
	if uc.Mail != nil && lead.HasAddress(entity.ChannelEmail) && lead.Draft.Has(entity.ChannelEmail) {
		out = append(out, entity.ChannelEmail)
	}
	if uc.Connections != nil && lead.HasAddress(entity.ChannelConnection) && lead.Draft.Has(entity.ChannelConnection) {
		out = append(out, entity.ChannelConnection)
	}
	if uc.Chat != nil && lead.HasAddress(entity.ChannelChat) && lead.Draft.Has(entity.ChannelChat) {
		if uc.Chat.IsReady(ctx) {
			out = append(out, entity.ChannelChat)
		} else {
			uc.logger().Info("chat session not ready, nudge skipped", "lead_id", lead.ID)
		}
	}
	return out
}

// send performs one channel action. pacingCtx still carries the pass
// cancellation and is only used while waiting on a pacer.
func (uc *DispatchLeadsUseCase) send(ctx, pacingCtx context.Context, lead *entity.Lead, ch entity.Channel) (string, error) {
	switch ch {
	case entity.ChannelEmail:
		msg := OutboundEmail{
			To:      lead.Email,
			Name:    lead.FullName(),
			Subject: entity.Text(lead.Draft.EmailSubject),
			Body:    entity.Text(lead.Draft.EmailBody),
		}
		if lead.Attachment != "" && uc.Attachments != nil {
			if path, ok := uc.Attachments.Resolve(lead.Attachment); ok {
				msg.AttachmentPath = path
			} else {
				uc.logger().Warn("attachment missing, sending without it", "lead_id", lead.ID, "attachment", lead.Attachment)
			}
		}
		if uc.EmailPacer == nil {
			return uc.Mail.Send(ctx, msg)
		}
		var (
			id  string
			ran bool
		)
		err := uc.EmailPacer.Do(pacingCtx, func() error {
			ran = true
			var err error
			id, err = uc.Mail.Send(ctx, msg)
			return err
		})
		if err != nil && !ran {
			return "", fmt.Errorf("%w: %w", errNotSent, err)
		}
		return id, err

	case entity.ChannelConnection:
		return uc.Connections.RequestConnection(ctx, lead.ID, lead.ProfileURL, entity.Text(lead.Draft.ConnectionNote))

	case entity.ChannelChat:
		if uc.ChatPacer != nil {
			if err := uc.ChatPacer.Wait(pacingCtx); err != nil {
				return "", err
			}
		}
		if !uc.Chat.IsReady(ctx) {
			return "", errChatNotReady
		}
		return "", uc.Chat.Send(ctx, lead.Phone, entity.Text(lead.Draft.ChatNudge))
	}
	return "", errors.New("unknown channel " + string(ch))
}

// settle records the outcome of one send. A failed email releases its claim
// so the next pass retries it; failed secondary sends stay recorded.
func (uc *DispatchLeadsUseCase) settle(ctx context.Context, lead *entity.Lead, res sendResult, report *PassReport, log *slog.Logger) {
	ch := res.channel

	if errors.Is(res.err, errNotSent) {
		log.Info("pass stopped while waiting for the email slot, claim released")
		if err := uc.Deliveries.ReleaseDelivery(ctx, lead.ID, ch); err != nil {
			log.Error("release delivery", "channel", ch, logging.Err(err))
		}
		report.Skipped++
		return
	}

	if res.err != nil {
		derr := &DispatchError{LeadID: lead.ID, Channel: ch, Err: res.err}
		report.fail(lead.ID, ch, derr)

		if ch == entity.ChannelEmail || errors.Is(res.err, context.Canceled) {
			log.Error("send failed, claim released", "channel", ch, logging.Err(res.err))
			if err := uc.Deliveries.ReleaseDelivery(ctx, lead.ID, ch); err != nil {
				log.Error("release delivery", "channel", ch, logging.Err(err))
			}
			return
		}
		log.Warn("secondary send failed", "channel", ch, logging.Err(res.err))
		if err := uc.Deliveries.CompleteDelivery(ctx, lead.ID, ch, entity.DeliveryFailed, "", res.err.Error()); err != nil {
			log.Error("record failed delivery", "channel", ch, logging.Err(err))
		}
		return
	}

	if err := uc.Deliveries.CompleteDelivery(ctx, lead.ID, ch, entity.DeliverySent, res.externalID, ""); err != nil {
		log.Error("record sent delivery", "channel", ch, logging.Err(err))
	}
	report.sent(ch)
	log.Info("sent", "channel", ch, "external_id", res.externalID)

	if ch != entity.ChannelEmail {
		return
	}
	_, err := uc.Leads.Transition(ctx, lead.ID, entity.StatusApproved, entity.StatusContacted, nil)
	switch {
	case err == nil:
		report.Advanced++
	case isStale(err):
		// the email went out; an operator moved the lead meanwhile
		log.Warn("email sent but lead changed before Contacted", logging.Err(err))
		report.stale(lead.ID)
	default:
		log.Error("mark contacted", logging.Err(err))
		report.fail(lead.ID, ch, err)
	}
}

func (uc *DispatchLeadsUseCase) releaseAll(ctx context.Context, leadID string, channels []entity.Channel) {
	for _, ch := range channels {
		if err := uc.Deliveries.ReleaseDelivery(ctx, leadID, ch); err != nil {
			uc.logger().Error("release delivery", "lead_id", leadID, "channel", ch, logging.Err(err))
		}
	}
}

func (uc *DispatchLeadsUseCase) logger() *slog.Logger {
	if uc.Logger != nil {
		return uc.Logger
	}
	return logging.New("dispatch")
}
