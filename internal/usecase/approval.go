package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xavierca1/sherpa/internal/entity"
	"github.com/xavierca1/sherpa/internal/logging"
)

// ApprovalGate is the human step between a generated draft and a sendable
// lead. Every action re-reads the lead before writing.
type ApprovalGate struct {
	Leads      entity.LeadRepositoryInterface
	Deliveries entity.DeliveryRepositoryInterface
	Policy     entity.DraftPolicy
	Logger     *slog.Logger
}

// Approve moves a Pending_Approval lead to Approved. Non-nil fields of edits
// replace the generated text before the draft is validated and stored.
func (g *ApprovalGate) Approve(ctx context.Context, id string, edits *entity.Draft) (*entity.Lead, error) {
	lead, err := g.Leads.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := entity.ValidateTransition(lead.Status, entity.StatusApproved); err != nil {
		return nil, err
	}

	draft := lead.Draft
	if edits != nil {
		draft = draft.Merge(*edits)
	}
	draft = draft.ForLead(lead)
	if err := draft.Validate(g.Policy); err != nil {
		return nil, &DomainError{Code: CodeInvalidDraft, Message: fmt.Sprintf("lead %s: %v", id, err)}
	}

	return g.Leads.Transition(ctx, id, lead.Status, entity.StatusApproved, &entity.LeadPatch{Draft: &draft})
}

func (g *ApprovalGate) Reject(ctx context.Context, id string) (*entity.Lead, error) {
	lead, err := g.Leads.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return g.Leads.Transition(ctx, id, lead.Status, entity.StatusRejected, nil)
}

// EditDraft persists operator edits without changing status.
func (g *ApprovalGate) EditDraft(ctx context.Context, id string, edits entity.Draft) (*entity.Lead, error) {
	lead, err := g.Leads.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if lead.Status != entity.StatusPendingApproval && lead.Status != entity.StatusApproved {
		return nil, &DomainError{Code: CodeNotEditable, Message: fmt.Sprintf("lead %s is %s, drafts are editable only before dispatch", id, lead.Status)}
	}

	draft := lead.Draft.Merge(edits).ForLead(lead)
	if err := draft.Validate(g.Policy); err != nil {
		return nil, &DomainError{Code: CodeInvalidDraft, Message: fmt.Sprintf("lead %s: %v", id, err)}
	}
	return g.Leads.Update(ctx, id, entity.LeadPatch{Draft: &draft})
}

// Regenerate sends a drafted or approved lead back to Enriched with every
// draft field cleared, so the next drafting pass picks it up again. Delivery
// history is kept: an email already in flight still counts, and dispatch
// marks the lead Contacted once it is approved again.
func (g *ApprovalGate) Regenerate(ctx context.Context, id string) (*entity.Lead, error) {
	lead, err := g.Leads.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if lead.Status != entity.StatusPendingApproval && lead.Status != entity.StatusApproved {
		return nil, &entity.TransitionError{From: lead.Status, To: entity.StatusEnriched}
	}
	return g.Leads.Transition(ctx, id, lead.Status, entity.StatusEnriched, &entity.LeadPatch{Draft: &entity.Draft{}})
}

// Reactivate brings a Rejected or Dead lead back to Enriched for a new
// outreach cycle. Its delivery history is cleared.
func (g *ApprovalGate) Reactivate(ctx context.Context, id string) (*entity.Lead, error) {
	lead, err := g.Leads.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lead.Status.IsTerminal() {
		return nil, &entity.TransitionError{From: lead.Status, To: entity.StatusEnriched}
	}
	updated, err := g.Leads.Transition(ctx, id, lead.Status, entity.StatusEnriched, &entity.LeadPatch{Draft: &entity.Draft{}})
	if err != nil {
		return nil, err
	}
	if g.Deliveries != nil {
		if err := g.Deliveries.ResetDeliveries(ctx, id); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

type BulkApproveResult struct {
	Approved []string      `json:"approved"`
	Failures []LeadFailure `json:"failures,omitempty"`
}

// BulkApprove applies Approve to every Pending_Approval lead. Rows succeed or
// fail independently.
func (g *ApprovalGate) BulkApprove(ctx context.Context, limit int) (BulkApproveResult, error) {
	var res BulkApproveResult
	leads, err := g.Leads.List(ctx, entity.LeadFilter{
		Statuses: []entity.Status{entity.StatusPendingApproval},
		Limit:    limit,
	})
	if err != nil {
		return res, err
	}

	log := g.logger()
	for _, lead := range leads {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, err := g.Approve(ctx, lead.ID, nil); err != nil {
			log.Warn("bulk approve: lead not approved", "lead_id", lead.ID, logging.Err(err))
			res.Failures = append(res.Failures, LeadFailure{LeadID: lead.ID, Message: err.Error(), Err: err})
			continue
		}
		res.Approved = append(res.Approved, lead.ID)
	}
	log.Info("bulk approve finished", "approved", len(res.Approved), "failed", len(res.Failures))
	return res, nil
}

func (g *ApprovalGate) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return logging.New("approval")
}
