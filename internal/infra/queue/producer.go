package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

type ConnectionRequestPayload struct {
	RequestID   string    `json:"request_id"`
	LeadID      string    `json:"lead_id"`
	ProfileURL  string    `json:"profile_url"`
	Note        string    `json:"note"`
	RequestedAt time.Time `json:"requested_at"`
}

// Publisher is the part of *amqp.Channel the producer needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type RabbitMQProducer struct {
	Ch Publisher
}

func NewProducer(ch Publisher) *RabbitMQProducer {
	return &RabbitMQProducer{Ch: ch}
}

// RequestConnection enqueues a connection request and returns its request id.
// The request counts as sent once the broker has it; the consumer worker
// performs the actual launch.
func (p *RabbitMQProducer) RequestConnection(ctx context.Context, leadID, profileURL, note string) (string, error) {
	payload := ConnectionRequestPayload{
		RequestID:   uuid.New().String(),
		LeadID:      leadID,
		ProfileURL:  profileURL,
		Note:        note,
		RequestedAt: time.Now().UTC(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode connection request: %w", err)
	}

	err = p.Ch.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    payload.RequestID,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return "", fmt.Errorf("publish connection request: %w", err)
	}
	return payload.RequestID, nil
}
