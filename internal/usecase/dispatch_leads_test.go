package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/sherpa/internal/entity"
	"github.com/xavierca1/sherpa/internal/throttle"
)

func newDispatch(store *testStore, mail MailTransport) *DispatchLeadsUseCase {
	return &DispatchLeadsUseCase{
		Leads:      store.leads,
		Deliveries: store.deliveries,
		Mail:       mail,
		EmailPacer: &recordingPacer{},
		ClaimLease: time.Hour,
		Logger:     quietLogger(),
	}
}

func approved(t *testing.T, store *testStore, url string, opts ...leadOpt) *entity.Lead {
	opts = append([]leadOpt{withEmail("ana@acme.io"), withDraft(fullDraft())}, opts...)
	return store.seed(t, url, entity.StatusApproved, opts...)
}

type missingAttachments struct{}

func (missingAttachments) Resolve(string) (string, bool) { return "", false }

func TestDispatch_EmailSuccessMarksContacted(t *testing.T) {
	store := newTestStore(t)
	lead := approved(t, store, "https://linkedin.com/in/ana")

	mail := new(MockMailTransport)
	mail.On("Send", mock.Anything, mock.MatchedBy(func(m OutboundEmail) bool {
		return m.To == "ana@acme.io" && m.Subject == "quick question" && m.AttachmentPath == ""
	})).Return("<m1@acme.io>", nil).Once()

	report, err := newDispatch(store, mail).Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Advanced)
	assert.Equal(t, 1, report.Sent[entity.ChannelEmail])
	assert.Equal(t, entity.StatusContacted, store.get(t, lead.ID).Status)

	list, err := store.deliveries.ListDeliveries(context.Background(), lead.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, entity.DeliverySent, list[0].Status)
	assert.Equal(t, "<m1@acme.io>", list[0].ExternalID)
	mail.AssertExpectations(t)
}

func TestDispatch_DanglingAttachmentSendsWithoutIt(t *testing.T) {
	store := newTestStore(t)
	lead := approved(t, store, "https://linkedin.com/in/ana")
	_, err := store.leads.Update(context.Background(), lead.ID, entity.LeadPatch{Attachment: entity.Ptr("deck.pdf")})
	require.NoError(t, err)

	mail := new(MockMailTransport)
	mail.On("Send", mock.Anything, mock.MatchedBy(func(m OutboundEmail) bool { return m.AttachmentPath == "" })).
		Return("<m1@acme.io>", nil)

	uc := newDispatch(store, mail)
	uc.Attachments = missingAttachments{}
	_, err = uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, entity.StatusContacted, store.get(t, lead.ID).Status)
}

func TestDispatch_EmailFailureLeavesStatusAndRetriesNextPass(t *testing.T) {
	store := newTestStore(t)
	lead := approved(t, store, "https://linkedin.com/in/ana")

	mail := new(MockMailTransport)
	mail.On("Send", mock.Anything, mock.Anything).Return("", errors.New("smtp 421")).Once()
	mail.On("Send", mock.Anything, mock.Anything).Return("<m2@acme.io>", nil).Once()
	uc := newDispatch(store, mail)

	report, err := uc.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	var derr *DispatchError
	require.True(t, errors.As(report.Failures[0].Err, &derr))
	assert.Equal(t, entity.ChannelEmail, derr.Channel)
	assert.Equal(t, entity.StatusApproved, store.get(t, lead.ID).Status)

	report, err = uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Advanced)
	assert.Equal(t, entity.StatusContacted, store.get(t, lead.ID).Status)
	mail.AssertNumberOfCalls(t, "Send", 2)
}

func TestDispatch_SecondaryChannelsAreBestEffortAndNotRetried(t *testing.T) {
	store := newTestStore(t)
	lead := approved(t, store, "https://linkedin.com/in/ana", withPhone("+5511999990000"))

	mail := new(MockMailTransport)
	mail.On("Send", mock.Anything, mock.Anything).Return("", errors.New("smtp down")).Once()
	mail.On("Send", mock.Anything, mock.Anything).Return("<m@acme.io>", nil).Once()

	conns := new(MockConnectionRequester)
	conns.On("RequestConnection", mock.Anything, lead.ID, "https://linkedin.com/in/ana", "Hi Ana, enjoyed your talk.").
		Return("", errors.New("queue unavailable")).Once()

	chat := new(MockChatSession)
	chat.On("IsReady", mock.Anything).Return(true)
	chat.On("Send", mock.Anything, "+5511999990000", "hey Ana, sent you an email").Return(nil).Once()

	uc := newDispatch(store, mail)
	uc.Connections = conns
	uc.Chat = chat
	uc.ChatPacer = &recordingPacer{}

	_, err := uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, store.get(t, lead.ID).Status, "secondary success never moves status")

	report, err := uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, entity.StatusContacted, store.get(t, lead.ID).Status)
	assert.Equal(t, 1, report.Sent[entity.ChannelEmail])
	assert.Zero(t, report.Sent[entity.ChannelChat], "chat already sent in the first pass")

	conns.AssertNumberOfCalls(t, "RequestConnection", 1)
	chat.AssertNumberOfCalls(t, "Send", 1)

	list, err := store.deliveries.ListDeliveries(context.Background(), lead.ID)
	require.NoError(t, err)
	byChannel := map[entity.Channel]entity.DeliveryStatus{}
	for _, d := range list {
		byChannel[d.Channel] = d.Status
	}
	assert.Equal(t, map[entity.Channel]entity.DeliveryStatus{
		entity.ChannelEmail:      entity.DeliverySent,
		entity.ChannelConnection: entity.DeliveryFailed,
		entity.ChannelChat:       entity.DeliverySent,
	}, byChannel)
}

func TestDispatch_ChatSkippedWhenSessionNotReady(t *testing.T) {
	store := newTestStore(t)
	lead := approved(t, store, "https://linkedin.com/in/ana", withPhone("+5511999990000"))

	mail := new(MockMailTransport)
	mail.On("Send", mock.Anything, mock.Anything).Return("<m@acme.io>", nil)
	chat := new(MockChatSession)
	chat.On("IsReady", mock.Anything).Return(false)

	uc := newDispatch(store, mail)
	uc.Chat = chat
	report, err := uc.Execute(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.Failures)
	assert.Equal(t, entity.StatusContacted, store.get(t, lead.ID).Status)
	chat.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_ConcurrentPassesSendEmailOnce(t *testing.T) {
	store := newTestStore(t)
	lead := approved(t, store, "https://linkedin.com/in/ana")

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	mail := new(MockMailTransport)
	mail.On("Send", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			once.Do(func() { close(started) })
			<-release
		}).
		Return("<m1@acme.io>", nil)

	passA := newDispatch(store, mail)
	passB := newDispatch(store, mail)

	var (
		reportA PassReport
		errA    error
		done    = make(chan struct{})
	)
	go func() {
		reportA, errA = passA.Execute(context.Background())
		close(done)
	}()

	<-started
	reportB, errB := passB.Execute(context.Background())
	close(release)
	<-done

	require.NoError(t, errA)
	require.NoError(t, errB)

	mail.AssertNumberOfCalls(t, "Send", 1)
	assert.Equal(t, 1, reportA.Advanced)
	assert.Equal(t, []string{lead.ID}, reportB.Stale)
	assert.Zero(t, reportB.Advanced)
	assert.Equal(t, entity.StatusContacted, store.get(t, lead.ID).Status)
}

func TestDispatch_EmailGapsRespectThrottleMinimum(t *testing.T) {
	store := newTestStore(t)
	for _, u := range []string{"a", "b", "c", "d"} {
		approved(t, store, "https://linkedin.com/in/"+u)
	}

	var (
		mu    sync.Mutex
		sends []time.Time
	)
	mail := new(MockMailTransport)
	mail.On("Send", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			mu.Lock()
			sends = append(sends, time.Now())
			mu.Unlock()
		}).
		Return("<m@acme.io>", nil)

	const min = 40 * time.Millisecond
	uc := newDispatch(store, mail)
	uc.EmailPacer = throttle.New(min, 50*time.Millisecond)

	report, err := uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Advanced)

	require.Len(t, sends, 4)
	for i := 1; i < len(sends); i++ {
		assert.GreaterOrEqual(t, sends[i].Sub(sends[i-1]), min, "gap before send %d", i)
	}
}

func TestDispatch_SlowClaimDoesNotShrinkEmailGap(t *testing.T) {
	store := newTestStore(t)
	approved(t, store, "https://linkedin.com/in/a")
	approved(t, store, "https://linkedin.com/in/b")

	var sends []time.Time
	mail := new(MockMailTransport)
	mail.On("Send", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { sends = append(sends, time.Now()) }).
		Return("<m@acme.io>", nil)

	const min = 200 * time.Millisecond
	uc := newDispatch(store, mail)
	uc.Deliveries = &slowClaims{DeliveryRepositoryInterface: store.deliveries, delay: 150 * time.Millisecond}
	uc.EmailPacer = throttle.New(min, min)

	report, err := uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Advanced)

	require.Len(t, sends, 2)
	assert.GreaterOrEqual(t, sends[1].Sub(sends[0]), min)
}

func TestDispatch_StopWhileWaitingForEmailSlotReleasesClaim(t *testing.T) {
	store := newTestStore(t)
	first := approved(t, store, "https://linkedin.com/in/a")
	second := approved(t, store, "https://linkedin.com/in/b")

	mail := new(MockMailTransport)
	mail.On("Send", mock.Anything, mock.Anything).Return("<m@acme.io>", nil).Once()

	uc := newDispatch(store, mail)
	uc.EmailPacer = throttle.New(time.Hour, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	report, err := uc.Execute(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, report.Failures)

	assert.Equal(t, entity.StatusContacted, store.get(t, first.ID).Status)
	assert.Equal(t, entity.StatusApproved, store.get(t, second.ID).Status)
	list, err := store.deliveries.ListDeliveries(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Empty(t, list, "claim is released so the next pass can send")
	mail.AssertNumberOfCalls(t, "Send", 1)
}

func TestDispatch_RegenerateDuringSendIsReconciledOnNextPass(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	lead := approved(t, store, "https://linkedin.com/in/ana")

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	mail := new(MockMailTransport)
	mail.On("Send", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			once.Do(func() { close(started) })
			<-release
		}).
		Return("<m1@acme.io>", nil)

	uc := newDispatch(store, mail)
	done := make(chan struct{})
	var first PassReport
	go func() {
		first, _ = uc.Execute(ctx)
		close(done)
	}()

	<-started
	gate := newGate(store)
	_, err := gate.Regenerate(ctx, lead.ID)
	require.NoError(t, err)
	close(release)
	<-done
	assert.Equal(t, []string{lead.ID}, first.Stale)

	redraft := fullDraft()
	_, err = store.leads.Transition(ctx, lead.ID, entity.StatusEnriched, entity.StatusPendingApproval,
		&entity.LeadPatch{Draft: &redraft})
	require.NoError(t, err)
	_, err = gate.Approve(ctx, lead.ID, nil)
	require.NoError(t, err)

	for range 3 {
		_, err := uc.Execute(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, entity.StatusContacted, store.get(t, lead.ID).Status)
	mail.AssertNumberOfCalls(t, "Send", 1)
}

func TestDispatch_CancelStopsBetweenLeads(t *testing.T) {
	store := newTestStore(t)
	first := approved(t, store, "https://linkedin.com/in/a")
	second := approved(t, store, "https://linkedin.com/in/b")

	ctx, cancel := context.WithCancel(context.Background())
	mail := new(MockMailTransport)
	mail.On("Send", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return("<m@acme.io>", nil)

	_, err := newDispatch(store, mail).Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	mail.AssertNumberOfCalls(t, "Send", 1)
	assert.Equal(t, entity.StatusContacted, store.get(t, first.ID).Status, "in-flight lead completes")
	assert.Equal(t, entity.StatusApproved, store.get(t, second.ID).Status)
}

func TestDispatch_SkipsLeadsThatLeftApproved(t *testing.T) {
	store := newTestStore(t)
	store.seed(t, "https://linkedin.com/in/p", entity.StatusPendingApproval, withEmail("p@acme.io"), withDraft(fullDraft()))

	mail := new(MockMailTransport)
	report, err := newDispatch(store, mail).Execute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Examined)
	mail.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestDispatch_LeadWithoutChannelStaysApprovedQuietly(t *testing.T) {
	store := newTestStore(t)
	lead := store.seed(t, "https://linkedin.com/in/ana", entity.StatusApproved, withDraft(fullDraft()))

	var logs bytes.Buffer
	uc := newDispatch(store, new(MockMailTransport))
	uc.Logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))

	for range 2 {
		report, err := uc.Execute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Skipped)
		assert.Empty(t, report.Failures)
	}
	assert.Equal(t, entity.StatusApproved, store.get(t, lead.ID).Status)
	assert.Empty(t, logs.String(), "nothing at warn level or above")
}
