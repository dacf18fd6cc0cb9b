package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/sherpa/internal/entity"
)

func TestDiscover_EnrichesAndStoresNewProfiles(t *testing.T) {
	store := newTestStore(t)
	known := store.seed(t, "https://linkedin.com/in/known", entity.StatusContacted)

	disc := &fakeDiscoverer{urls: []string{
		"https://linkedin.com/in/found",
		"https://linkedin.com/in/nobody",
		"https://linkedin.com/in/KNOWN/",
		"https://linkedin.com/in/found/",
		"https://linkedin.com/in/broken",
		"  ",
	}}
	enr := new(MockEnricher)
	enr.On("Lookup", mock.Anything, "https://linkedin.com/in/found").
		Return(&ContactInfo{FirstName: "Lia", Email: "lia@acme.io", Company: "Acme"}, nil)
	enr.On("Lookup", mock.Anything, "https://linkedin.com/in/nobody").Return(nil, nil)
	enr.On("Lookup", mock.Anything, "https://linkedin.com/in/broken").Return(nil, errors.New("apollo 500"))

	uc := &DiscoverLeadsUseCase{
		Leads:       store.leads,
		Discoverer:  disc,
		Enricher:    enr,
		Query:       "head of growth",
		Concurrency: 2,
		Logger:      quietLogger(),
	}
	report, err := uc.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"head of growth"}, disc.launched)
	assert.Equal(t, 2, report.Advanced)
	assert.Len(t, report.Failures, 1)

	found, err := store.leads.Find(context.Background(), entity.IdentityKeyFor("https://linkedin.com/in/found"))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusEnriched, found.Status)
	assert.Equal(t, entity.VerificationVerified, found.VerificationStatus)
	assert.Equal(t, "lia@acme.io", found.Email)

	nobody, err := store.leads.Find(context.Background(), entity.IdentityKeyFor("https://linkedin.com/in/nobody"))
	require.NoError(t, err)
	assert.Equal(t, entity.VerificationUnverified, nobody.VerificationStatus)

	_, err = store.leads.Find(context.Background(), entity.IdentityKeyFor("https://linkedin.com/in/broken"))
	assert.ErrorIs(t, err, entity.ErrLeadNotFound)

	assert.Equal(t, entity.StatusContacted, store.get(t, known.ID).Status, "known leads are untouched")
}

func TestDiscover_RespectsDailyLimit(t *testing.T) {
	store := newTestStore(t)
	store.seed(t, "https://linkedin.com/in/today", entity.StatusEnriched)

	disc := &fakeDiscoverer{urls: []string{
		"https://linkedin.com/in/1",
		"https://linkedin.com/in/2",
		"https://linkedin.com/in/3",
		"https://linkedin.com/in/4",
	}}
	uc := &DiscoverLeadsUseCase{
		Leads:      store.leads,
		Discoverer: disc,
		DailyLimit: 3,
		Logger:     quietLogger(),
	}

	report, err := uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Advanced)
	assert.Empty(t, disc.launched, "an empty query reuses the latest result")

	report, err = uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Advanced)
	assert.Zero(t, report.Examined)

	counts, err := store.leads.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, counts[entity.StatusEnriched])
}

func TestDiscover_LaunchErrorAbortsPass(t *testing.T) {
	store := newTestStore(t)
	uc := &DiscoverLeadsUseCase{
		Leads:      store.leads,
		Discoverer: &fakeDiscoverer{launchErr: errors.New("agent busy")},
		Query:      "cto",
		Logger:     quietLogger(),
	}
	_, err := uc.Execute(context.Background())
	assert.ErrorContains(t, err, "agent busy")
}
