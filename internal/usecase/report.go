package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/xavierca1/sherpa/internal/entity"
)

type Report struct {
	GeneratedAt  time.Time             `json:"generated_at"`
	Total        int                   `json:"total"`
	ByStatus     map[entity.Status]int `json:"by_status"`
	CreatedToday int                   `json:"created_today"`
	UpdatedToday int                   `json:"updated_today"`
}

// Lines renders the report one fact per line, statuses in lifecycle order.
func (r *Report) Lines() []string {
	lines := []string{
		fmt.Sprintf("generated: %s", r.GeneratedAt.Format(time.RFC3339)),
		fmt.Sprintf("total leads: %d", r.Total),
		fmt.Sprintf("created today: %d", r.CreatedToday),
		fmt.Sprintf("updated today: %d", r.UpdatedToday),
	}
	for _, s := range entity.AllStatuses() {
		lines = append(lines, fmt.Sprintf("%s: %d", s, r.ByStatus[s]))
	}
	return lines
}

type ReportUseCase struct {
	Leads entity.LeadRepositoryInterface
}

func (uc *ReportUseCase) Execute(ctx context.Context) (*Report, error) {
	counts, err := uc.Leads.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	now := timeNow().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	created, updated, err := uc.Leads.CountSince(ctx, midnight)
	if err != nil {
		return nil, err
	}

	r := &Report{
		GeneratedAt:  now,
		ByStatus:     counts,
		CreatedToday: created,
		UpdatedToday: updated,
	}
	for _, n := range counts {
		r.Total += n
	}
	return r, nil
}
