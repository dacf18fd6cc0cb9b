package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/xavierca1/sherpa/internal/entity"
	"github.com/xavierca1/sherpa/internal/logging"
)

var errNoDraft = errors.New("generator returned no draft")

// DraftGateway wraps the drafting collaborator and enforces the draft policy
// on whatever it returns.
type DraftGateway struct {
	Generator DraftGenerator
	Policy    entity.DraftPolicy
}

// Generate returns a draft with unaddressable channels nulled. Collaborator
// failures and policy violations come back as *GenerationError.
func (g *DraftGateway) Generate(ctx context.Context, lead *entity.Lead, examples []*entity.TrainingExample) (*entity.Draft, error) {
	raw, err := g.Generator.Generate(ctx, lead, examples)
	if err != nil {
		return nil, &GenerationError{LeadID: lead.ID, Err: err}
	}
	if raw == nil {
		return nil, &GenerationError{LeadID: lead.ID, Err: errNoDraft}
	}
	draft := raw.ForLead(lead)
	if err := draft.Validate(g.Policy); err != nil {
		return nil, &GenerationError{LeadID: lead.ID, Err: err}
	}
	return &draft, nil
}

// DraftLeadsUseCase is the drafting pass: New and Enriched leads without a
// draft move to Pending_Approval with generated content.
type DraftLeadsUseCase struct {
	Leads    entity.LeadRepositoryInterface
	Examples entity.ExampleRepositoryInterface
	Gateway  *DraftGateway
	// ExamplesPerChannel caps the style references sent per channel.
	ExamplesPerChannel int
	BatchSize          int
	Logger             *slog.Logger
}

func (uc *DraftLeadsUseCase) Execute(ctx context.Context) (report PassReport, err error) {
	report = newPassReport("draft")
	defer report.finish()
	log := uc.logger()

	leads, err := uc.Leads.List(ctx, entity.LeadFilter{
		Statuses:     []entity.Status{entity.StatusNew, entity.StatusEnriched},
		WithoutDraft: true,
		Limit:        uc.BatchSize,
	})
	if err != nil {
		return report, err
	}
	if len(leads) == 0 {
		return report, nil
	}

	examples, err := uc.loadExamples(ctx)
	if err != nil {
		return report, err
	}

	for _, lead := range leads {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Examined++

		if !lead.Reachable() {
			log.Info("lead has no delivery address, not drafting", "lead_id", lead.ID)
			report.Skipped++
			continue
		}

		// the in-flight generation finishes even if the pass is cancelled
		leadCtx := context.WithoutCancel(ctx)

		draft, err := uc.Gateway.Generate(leadCtx, lead, examples)
		if err != nil {
			log.Warn("draft generation failed", "lead_id", lead.ID, logging.Err(err))
			report.fail(lead.ID, "", err)
			continue
		}

		_, err = uc.Leads.Transition(leadCtx, lead.ID, lead.Status, entity.StatusPendingApproval, &entity.LeadPatch{Draft: draft})
		switch {
		case isStale(err):
			log.Info("lead changed while drafting, skipped", "lead_id", lead.ID, logging.Err(err))
			report.stale(lead.ID)
		case err != nil:
			log.Error("store drafted lead", "lead_id", lead.ID, logging.Err(err))
			report.fail(lead.ID, "", err)
		default:
			report.Advanced++
		}
	}

	log.Info("draft pass finished", "examined", report.Examined, "drafted", report.Advanced, "failed", len(report.Failures))
	return report, nil
}

// loadExamples keeps the newest ExamplesPerChannel examples of each channel.
func (uc *DraftLeadsUseCase) loadExamples(ctx context.Context) ([]*entity.TrainingExample, error) {
	if uc.Examples == nil {
		return nil, nil
	}
	all, err := uc.Examples.ListExamples(ctx, "")
	if err != nil {
		return nil, err
	}
	if uc.ExamplesPerChannel <= 0 {
		return all, nil
	}

	taken := make(map[entity.Channel]int)
	var picked []*entity.TrainingExample
	for i := len(all) - 1; i >= 0; i-- {
		ex := all[i]
		if taken[ex.Channel] >= uc.ExamplesPerChannel {
			continue
		}
		taken[ex.Channel]++
		picked = append(picked, ex)
	}
	return picked, nil
}

func (uc *DraftLeadsUseCase) logger() *slog.Logger {
	if uc.Logger != nil {
		return uc.Logger
	}
	return logging.New("draft")
}
