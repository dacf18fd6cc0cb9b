package entity

import (
	"context"
	"fmt"
	"time"
)

type Channel string

const (
	ChannelEmail      Channel = "email"
	ChannelConnection Channel = "connection"
	ChannelChat       Channel = "chat"
)

func AllChannels() []Channel {
	return []Channel{ChannelEmail, ChannelConnection, ChannelChat}
}

func ParseChannel(v string) (Channel, error) {
	for _, ch := range AllChannels() {
		if string(ch) == v {
			return ch, nil
		}
	}
	return "", fmt.Errorf("unknown channel %q", v)
}

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// Delivery is the ledger row that makes each channel at-most-once per lead.
type Delivery struct {
	LeadID      string         `json:"lead_id"`
	Channel     Channel        `json:"channel"`
	Status      DeliveryStatus `json:"status"`
	ExternalID  string         `json:"external_id,omitempty"`
	Error       string         `json:"error,omitempty"`
	ClaimedAt   time.Time      `json:"claimed_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

type DeliveryRepositoryInterface interface {
	// ClaimDelivery reserves ch for the lead while it is still in expected.
	// It fails with a *StaleStateError when the lead moved or the channel was
	// already claimed.
	ClaimDelivery(ctx context.Context, leadID string, expected Status, ch Channel) error
	CompleteDelivery(ctx context.Context, leadID string, ch Channel, status DeliveryStatus, externalID, errText string) error
	ReleaseDelivery(ctx context.Context, leadID string, ch Channel) error
	ReleaseExpiredClaims(ctx context.Context, olderThan time.Duration) (int64, error)
	ListDeliveries(ctx context.Context, leadID string) ([]Delivery, error)
	// ResetDeliveries forgets every delivery of the lead. Used when a lead is
	// reactivated for a new outreach cycle.
	ResetDeliveries(ctx context.Context, leadID string) error
}
