package usecase

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/sherpa/internal/entity"
	"github.com/xavierca1/sherpa/internal/infra/database"
)

type testStore struct {
	db         *database.DB
	leads      *database.LeadRepository
	deliveries *database.DeliveryRepository
	examples   *database.ExampleRepository
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()
	db, err := database.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "sherpa.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &testStore{
		db:         db,
		leads:      database.NewLeadRepository(db),
		deliveries: database.NewDeliveryRepository(db),
		examples:   database.NewExampleRepository(db),
	}
}

type leadOpt func(*entity.Lead)

func withEmail(v string) leadOpt { return func(l *entity.Lead) { l.Email = v } }
func withPhone(v string) leadOpt { return func(l *entity.Lead) { l.Phone = v } }
func withDraft(d entity.Draft) leadOpt {
	return func(l *entity.Lead) { l.Draft = d }
}

func (s *testStore) seed(t *testing.T, url string, status entity.Status, opts ...leadOpt) *entity.Lead {
	t.Helper()
	l := entity.NewLead(url, status)
	l.FirstName = "Ana"
	for _, o := range opts {
		o(l)
	}
	require.NoError(t, s.leads.Create(context.Background(), l))
	return l
}

func (s *testStore) get(t *testing.T, id string) *entity.Lead {
	t.Helper()
	l, err := s.leads.Get(context.Background(), id)
	require.NoError(t, err)
	return l
}

func fullDraft() entity.Draft {
	return entity.Draft{
		EmailSubject:   entity.Ptr("quick question"),
		EmailBody:      entity.Ptr("Saw your onboarding post. Worth a chat?"),
		ConnectionNote: entity.Ptr("Hi Ana, enjoyed your talk."),
		ChatNudge:      entity.Ptr("hey Ana, sent you an email"),
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockDraftGenerator
type MockDraftGenerator struct {
	mock.Mock
}

func (m *MockDraftGenerator) Generate(ctx context.Context, lead *entity.Lead, examples []*entity.TrainingExample) (*entity.Draft, error) {
	args := m.Called(ctx, lead, examples)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Draft), args.Error(1)
}

// MockMailTransport
type MockMailTransport struct {
	mock.Mock
}

func (m *MockMailTransport) Send(ctx context.Context, msg OutboundEmail) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

// MockConnectionRequester
type MockConnectionRequester struct {
	mock.Mock
}

func (m *MockConnectionRequester) RequestConnection(ctx context.Context, leadID, profileURL, note string) (string, error) {
	args := m.Called(ctx, leadID, profileURL, note)
	return args.String(0), args.Error(1)
}

// MockChatSession
type MockChatSession struct {
	mock.Mock
}

func (m *MockChatSession) IsReady(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *MockChatSession) Send(ctx context.Context, phone, text string) error {
	return m.Called(ctx, phone, text).Error(0)
}

// MockClassifier
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, msg InboundMessage) (ReplyCategory, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(ReplyCategory), args.Error(1)
}

// MockEnricher
type MockEnricher struct {
	mock.Mock
}

func (m *MockEnricher) Lookup(ctx context.Context, profileURL string) (*ContactInfo, error) {
	args := m.Called(ctx, profileURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ContactInfo), args.Error(1)
}

// MockCRM
type MockCRM struct {
	mock.Mock
}

func (m *MockCRM) HandOff(ctx context.Context, lead *entity.Lead) error {
	return m.Called(ctx, lead).Error(0)
}

// fakeInbox keeps messages in memory and tracks which were marked read.
type fakeInbox struct {
	mu      sync.Mutex
	msgs    []InboundMessage
	read    map[string]bool
	listErr error
}

func newFakeInbox(msgs ...InboundMessage) *fakeInbox {
	return &fakeInbox{msgs: msgs, read: make(map[string]bool)}
}

func (f *fakeInbox) ListUnread(context.Context) ([]InboundMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []InboundMessage
	for _, m := range f.msgs {
		if !f.read[m.MessageID] {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeInbox) MarkRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read[id] = true
	return nil
}

func (f *fakeInbox) isRead(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read[id]
}

// fakeDiscoverer serves a fixed result.
type fakeDiscoverer struct {
	urls      []string
	launched  []string
	launchErr error
}

func (f *fakeDiscoverer) Launch(_ context.Context, query string) (string, error) {
	f.launched = append(f.launched, query)
	return "job-1", f.launchErr
}

func (f *fakeDiscoverer) FetchResult(context.Context, string) (iter.Seq[string], error) {
	return slices.Values(f.urls), nil
}

// recordingPacer counts waits and paced actions and never blocks.
type recordingPacer struct {
	mu    sync.Mutex
	waits int
}

func (p *recordingPacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.waits++
	p.mu.Unlock()
	return nil
}
func (p *recordingPacer) Do(ctx context.Context, action func() error) error {
	if err := p.Wait(ctx); err != nil {
		return err
	}
	return action()
}

// slowClaims delays the first delivery claim it sees.
type slowClaims struct {
	entity.DeliveryRepositoryInterface
	delay time.Duration
	once  sync.Once
}

func (s *slowClaims) ClaimDelivery(ctx context.Context, leadID string, status entity.Status, ch entity.Channel) error {
	s.once.Do(func() { time.Sleep(s.delay) })
	return s.DeliveryRepositoryInterface.ClaimDelivery(ctx, leadID, status, ch)
}
