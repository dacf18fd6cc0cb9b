package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xavierca1/sherpa/internal/logging"
)

// ConnectionLauncher performs the connection request on the social network.
type ConnectionLauncher interface {
	LaunchConnection(ctx context.Context, profileURL, note string) (string, error)
}

type Pacer interface {
	Wait(ctx context.Context) error
}

// Consumer is the part of *amqp.Channel the worker needs.
type Consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

type Worker struct {
	Channel  Consumer
	Launcher ConnectionLauncher
	// Pacer spaces launches so the account is not flagged for automation.
	Pacer  Pacer
	Logger *slog.Logger
}

func NewWorker(ch Consumer, launcher ConnectionLauncher, pacer Pacer) *Worker {
	return &Worker{
		Channel:  ch,
		Launcher: launcher,
		Pacer:    pacer,
		Logger:   logging.New("connection-worker"),
	}
}

// Start consumes queueName until ctx is done or the delivery channel closes.
func (w *Worker) Start(ctx context.Context, queueName string) error {
	msgs, err := w.Channel.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("register consumer on %s: %w", queueName, err)
	}
	w.Logger.Info("connection worker waiting", "queue", queueName)

	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("connection worker stopped")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			if err := w.handle(ctx, d); err != nil {
				return err
			}
		}
	}
}

// handle acks a launched request and dead-letters anything else. It returns
// an error only when ctx ended while waiting for the pacer, after requeueing
// the delivery.
func (w *Worker) handle(ctx context.Context, d amqp.Delivery) error {
	var payload ConnectionRequestPayload
	if err := json.Unmarshal(d.Body, &payload); err != nil || payload.ProfileURL == "" {
		w.Logger.Error("malformed connection request, dead-lettered", "message_id", d.MessageId, logging.Err(err))
		_ = d.Nack(false, false)
		return nil
	}
	log := w.Logger.With("lead_id", payload.LeadID, "request_id", payload.RequestID)

	if w.Pacer != nil {
		if err := w.Pacer.Wait(ctx); err != nil {
			_ = d.Nack(false, true)
			return err
		}
	}

	containerID, err := w.Launcher.LaunchConnection(context.WithoutCancel(ctx), payload.ProfileURL, payload.Note)
	if err != nil {
		log.Error("connection launch failed, dead-lettered", logging.Err(err))
		_ = d.Nack(false, false)
		return nil
	}

	log.Info("connection request launched", "container_id", containerID)
	_ = d.Ack(false)
	return nil
}
