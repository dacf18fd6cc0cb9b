package usecase

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xavierca1/sherpa/internal/entity"
	"github.com/xavierca1/sherpa/internal/logging"
)

// DiscoverLeadsUseCase pulls profile URLs from the discovery collaborator,
// enriches the unknown ones and stores them as Enriched leads.
type DiscoverLeadsUseCase struct {
	Leads      entity.LeadRepositoryInterface
	Discoverer Discoverer
	Enricher   Enricher

	// Query is passed to Launch. An empty query reuses the latest result.
	Query string
	// DailyLimit caps leads created per calendar day (UTC).
	DailyLimit  int
	Concurrency int
	Logger      *slog.Logger
}

func (uc *DiscoverLeadsUseCase) Execute(ctx context.Context) (report PassReport, err error) {
	report = newPassReport("discover")
	defer report.finish()
	log := uc.logger()

	quota, err := uc.remainingQuota(ctx)
	if err != nil {
		return report, err
	}
	if quota == 0 {
		log.Info("daily lead limit reached", "limit", uc.DailyLimit)
		return report, nil
	}

	jobID := ""
	if uc.Query != "" {
		jobID, err = uc.Discoverer.Launch(ctx, uc.Query)
		if err != nil {
			return report, err
		}
		log.Info("discovery launched", "job_id", jobID)
	}

	urls, err := uc.Discoverer.FetchResult(ctx, jobID)
	if err != nil {
		return report, err
	}

	candidates, err := uc.newProfiles(ctx, urls, quota, &report)
	if err != nil {
		return report, err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if uc.Concurrency > 0 {
		g.SetLimit(uc.Concurrency)
	}
	for _, profileURL := range candidates {
		g.Go(func() error {
			lead, err := uc.enrich(gctx, profileURL)
			if err == nil {
				err = uc.Leads.Create(context.WithoutCancel(gctx), lead)
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, entity.ErrDuplicateIdentity):
				report.Skipped++
			case err != nil:
				log.Warn("discovered lead not stored", "profile_url", profileURL, logging.Err(err))
				report.fail("", "", err)
			default:
				report.Advanced++
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Info("discover pass finished", "candidates", len(candidates), "created", report.Advanced, "failed", len(report.Failures))
	return report, ctx.Err()
}

// newProfiles drains the lazy result until quota unknown profiles are found.
func (uc *DiscoverLeadsUseCase) newProfiles(ctx context.Context, urls iter.Seq[string], quota int, report *PassReport) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for raw := range urls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		profileURL := strings.TrimSpace(raw)
		if profileURL == "" {
			continue
		}
		report.Examined++

		key := entity.IdentityKeyFor(profileURL)
		if seen[key] {
			continue
		}
		seen[key] = true

		_, err := uc.Leads.Find(ctx, key)
		if err == nil {
			report.Skipped++
			continue
		}
		if !errors.Is(err, entity.ErrLeadNotFound) {
			return nil, err
		}

		out = append(out, profileURL)
		if quota > 0 && len(out) >= quota {
			break
		}
	}
	return out, nil
}

func (uc *DiscoverLeadsUseCase) enrich(ctx context.Context, profileURL string) (*entity.Lead, error) {
	lead := entity.NewLead(profileURL, entity.StatusEnriched)
	lead.VerificationStatus = entity.VerificationUnverified
	if uc.Enricher == nil {
		return lead, nil
	}

	info, err := uc.Enricher.Lookup(ctx, profileURL)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return lead, nil
	}
	lead.FirstName = info.FirstName
	lead.LastName = info.LastName
	lead.Email = info.Email
	lead.Phone = info.Phone
	lead.Company = info.Company
	lead.Title = info.Title
	lead.Location = info.Location
	lead.VerificationStatus = entity.VerificationVerified
	return lead, nil
}

// remainingQuota returns how many leads may still be created today, or -1
// when there is no limit.
func (uc *DiscoverLeadsUseCase) remainingQuota(ctx context.Context) (int, error) {
	if uc.DailyLimit <= 0 {
		return -1, nil
	}
	now := timeNow().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	created, _, err := uc.Leads.CountSince(ctx, midnight)
	if err != nil {
		return 0, err
	}
	return max(uc.DailyLimit-created, 0), nil
}

func (uc *DiscoverLeadsUseCase) logger() *slog.Logger {
	if uc.Logger != nil {
		return uc.Logger
	}
	return logging.New("discover")
}
