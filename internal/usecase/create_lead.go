package usecase

import (
	"context"
	"strings"

	"github.com/xavierca1/sherpa/internal/entity"
)

type CreateLeadInput struct {
	ProfileURL string `json:"profile_url"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Company    string `json:"company"`
	Title      string `json:"title"`
	Location   string `json:"location"`
	Attachment string `json:"attachment"`
}

// CreateLeadUseCase adds a lead by hand. Manual leads skip enrichment and
// enter the lifecycle in Enriched.
type CreateLeadUseCase struct {
	Repo entity.LeadRepositoryInterface
}

func NewCreateLeadUseCase(repo entity.LeadRepositoryInterface) *CreateLeadUseCase {
	return &CreateLeadUseCase{Repo: repo}
}

func (uc *CreateLeadUseCase) Execute(ctx context.Context, input CreateLeadInput) (*entity.Lead, error) {
	if errs := ValidateCreateLeadInput(input); len(errs) > 0 {
		return nil, &DomainError{Code: CodeValidation, Message: joinValidationErrors(errs)}
	}

	lead := entity.NewLead(input.ProfileURL, entity.StatusEnriched)
	lead.FirstName = strings.TrimSpace(input.FirstName)
	lead.LastName = strings.TrimSpace(input.LastName)
	lead.Email = strings.TrimSpace(input.Email)
	lead.Phone = strings.TrimSpace(input.Phone)
	lead.Company = strings.TrimSpace(input.Company)
	lead.Title = strings.TrimSpace(input.Title)
	lead.Location = strings.TrimSpace(input.Location)
	lead.Attachment = strings.TrimSpace(input.Attachment)
	lead.VerificationStatus = entity.VerificationManual

	if err := uc.Repo.Create(ctx, lead); err != nil {
		return nil, err
	}
	return lead, nil
}
