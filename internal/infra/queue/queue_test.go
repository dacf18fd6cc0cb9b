package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/sherpa/internal/logging"
)

type fakePublisher struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func TestProducer_RequestConnection(t *testing.T) {
	pub := &fakePublisher{}
	id, err := NewProducer(pub).RequestConnection(context.Background(), "lead-1", "https://linkedin.com/in/ana", "Hi Ana")
	require.NoError(t, err)

	assert.Equal(t, ExchangeName, pub.exchange)
	assert.Equal(t, RoutingKey, pub.key)
	assert.Equal(t, amqp.Persistent, pub.msg.DeliveryMode)
	assert.Equal(t, id, pub.msg.MessageId)

	var payload ConnectionRequestPayload
	require.NoError(t, json.Unmarshal(pub.msg.Body, &payload))
	assert.Equal(t, id, payload.RequestID)
	assert.Equal(t, "lead-1", payload.LeadID)
	assert.Equal(t, "https://linkedin.com/in/ana", payload.ProfileURL)
	assert.Equal(t, "Hi Ana", payload.Note)
}

func TestProducer_PublishError(t *testing.T) {
	_, err := NewProducer(&fakePublisher{err: amqp.ErrClosed}).RequestConnection(context.Background(), "l", "u", "n")
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

type recordedTopology struct {
	exchanges []string
	queues    map[string]amqp.Table
	bindings  [][3]string
}

func (r *recordedTopology) ExchangeDeclare(name, _ string, _, _, _, _ bool, _ amqp.Table) error {
	r.exchanges = append(r.exchanges, name)
	return nil
}

func (r *recordedTopology) QueueDeclare(name string, _, _, _, _ bool, args amqp.Table) (amqp.Queue, error) {
	if r.queues == nil {
		r.queues = map[string]amqp.Table{}
	}
	r.queues[name] = args
	return amqp.Queue{Name: name}, nil
}

func (r *recordedTopology) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	r.bindings = append(r.bindings, [3]string{name, key, exchange})
	return nil
}

func TestSetupTopology(t *testing.T) {
	rec := &recordedTopology{}
	require.NoError(t, setupTopology(rec))

	assert.ElementsMatch(t, []string{DLXName, ExchangeName}, rec.exchanges)
	assert.Equal(t, DLXName, rec.queues[QueueName]["x-dead-letter-exchange"])
	assert.Contains(t, rec.bindings, [3]string{QueueName, RoutingKey, ExchangeName})
	assert.Contains(t, rec.bindings, [3]string{DLQName, RoutingKey, DLXName})
}

type ackRecord struct {
	mu      sync.Mutex
	acked   []uint64
	nacked  []uint64
	requeue []bool
}

func (a *ackRecord) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *ackRecord) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = append(a.nacked, tag)
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *ackRecord) Reject(tag uint64, requeue bool) error { return a.Nack(tag, false, requeue) }

type chanConsumer struct{ ch chan amqp.Delivery }

func (c chanConsumer) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	return c.ch, nil
}

type MockLauncher struct {
	mock.Mock
}

func (m *MockLauncher) LaunchConnection(ctx context.Context, profileURL, note string) (string, error) {
	args := m.Called(ctx, profileURL, note)
	return args.String(0), args.Error(1)
}

type countingPacer struct{ n int }

func (p *countingPacer) Wait(ctx context.Context) error {
	p.n++
	return ctx.Err()
}

func delivery(ack *ackRecord, tag uint64, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, Body: []byte(body)}
}

func TestWorker_AcksLaunchedAndDeadLettersTheRest(t *testing.T) {
	ack := &ackRecord{}
	ch := make(chan amqp.Delivery, 3)
	ch <- delivery(ack, 1, `{"lead_id":"l1","profile_url":"https://linkedin.com/in/ok","note":"hi"}`)
	ch <- delivery(ack, 2, `not json`)
	ch <- delivery(ack, 3, `{"lead_id":"l3","profile_url":"https://linkedin.com/in/fail"}`)
	close(ch)

	launcher := new(MockLauncher)
	launcher.On("LaunchConnection", mock.Anything, "https://linkedin.com/in/ok", "hi").Return("container-9", nil)
	launcher.On("LaunchConnection", mock.Anything, "https://linkedin.com/in/fail", "").Return("", errors.New("agent busy"))

	pacer := &countingPacer{}
	w := NewWorker(chanConsumer{ch}, launcher, pacer)
	w.Logger = logging.New("test")

	err := w.Start(context.Background(), QueueName)
	assert.EqualError(t, err, "delivery channel closed")

	assert.Equal(t, []uint64{1}, ack.acked)
	assert.Equal(t, []uint64{2, 3}, ack.nacked)
	assert.Equal(t, []bool{false, false}, ack.requeue)
	assert.Equal(t, 2, pacer.n, "malformed messages skip the pacer")
	launcher.AssertExpectations(t)
}

func TestWorker_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(chanConsumer{make(chan amqp.Delivery)}, new(MockLauncher), nil)
	w.Logger = logging.New("test")

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx, QueueName) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_RequeuesWhenCancelledWhilePacing(t *testing.T) {
	ack := &ackRecord{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewWorker(nil, new(MockLauncher), &countingPacer{})
	w.Logger = logging.New("test")

	err := w.handle(ctx, delivery(ack, 7, `{"profile_url":"https://linkedin.com/in/x"}`))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []uint64{7}, ack.nacked)
	assert.Equal(t, []bool{true}, ack.requeue)
}
