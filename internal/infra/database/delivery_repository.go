package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xavierca1/sherpa/internal/entity"
)

// DeliveryRepository is the per-channel send ledger. A row exists for a
// (lead, channel) pair from the moment a dispatcher claims it, so a second
// claim for the same pair always loses.
type DeliveryRepository struct {
	DB *DB
}

func NewDeliveryRepository(db *DB) *DeliveryRepository {
	return &DeliveryRepository{DB: db}
}

func (r *DeliveryRepository) ClaimDelivery(ctx context.Context, leadID string, expected entity.Status, ch entity.Channel) error {
	query := `
		INSERT INTO deliveries (lead_id, channel, status, claimed_at_ms)
		SELECT CAST(? AS TEXT), CAST(? AS TEXT), CAST(? AS TEXT), CAST(? AS BIGINT)
		WHERE EXISTS (SELECT 1 FROM leads WHERE id = ? AND status = ?)
		ON CONFLICT (lead_id, channel) DO NOTHING
	`
	res, err := r.DB.ExecContext(ctx, r.DB.rebind(query),
		leadID,
		string(ch),
		string(entity.DeliveryPending),
		r.DB.clock.Now().UnixMilli(),
		leadID,
		string(expected),
	)
	if err != nil {
		return fmt.Errorf("database: claim delivery: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var status string
	err = r.DB.QueryRowContext(ctx, r.DB.rebind(`SELECT status FROM leads WHERE id = ?`), leadID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.ErrLeadNotFound
	}
	if err != nil {
		return fmt.Errorf("database: claim delivery: %w", err)
	}
	return &entity.StaleStateError{
		LeadID:   leadID,
		Expected: expected,
		Actual:   entity.Status(status),
		Channel:  ch,
	}
}

// CompleteDelivery settles a pending claim as sent or failed.
func (r *DeliveryRepository) CompleteDelivery(ctx context.Context, leadID string, ch entity.Channel, status entity.DeliveryStatus, externalID, errText string) error {
	if status != entity.DeliverySent && status != entity.DeliveryFailed {
		return fmt.Errorf("database: complete delivery: invalid status %q", status)
	}
	query := `
		UPDATE deliveries SET status = ?, external_id = ?, error = ?, completed_at = ?
		WHERE lead_id = ? AND channel = ? AND status = ?
	`
	res, err := r.DB.ExecContext(ctx, r.DB.rebind(query),
		string(status),
		nullString(externalID),
		nullString(errText),
		r.DB.clock.Now(),
		leadID,
		string(ch),
		string(entity.DeliveryPending),
	)
	if err != nil {
		return fmt.Errorf("database: complete delivery: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("database: no pending %s delivery for lead %s", ch, leadID)
	}
	return nil
}

// ReleaseDelivery drops a pending claim so the channel can be tried again.
func (r *DeliveryRepository) ReleaseDelivery(ctx context.Context, leadID string, ch entity.Channel) error {
	_, err := r.DB.ExecContext(ctx,
		r.DB.rebind(`DELETE FROM deliveries WHERE lead_id = ? AND channel = ? AND status = ?`),
		leadID, string(ch), string(entity.DeliveryPending))
	if err != nil {
		return fmt.Errorf("database: release delivery: %w", err)
	}
	return nil
}

func (r *DeliveryRepository) ResetDeliveries(ctx context.Context, leadID string) error {
	_, err := r.DB.ExecContext(ctx, r.DB.rebind(`DELETE FROM deliveries WHERE lead_id = ?`), leadID)
	if err != nil {
		return fmt.Errorf("database: reset deliveries: %w", err)
	}
	return nil
}

// ReleaseExpiredClaims drops pending claims older than olderThan. They belong
// to a pass that died between claim and completion.
func (r *DeliveryRepository) ReleaseExpiredClaims(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := r.DB.clock.Now().Add(-olderThan).UnixMilli()
	res, err := r.DB.ExecContext(ctx,
		r.DB.rebind(`DELETE FROM deliveries WHERE status = ? AND claimed_at_ms < ?`),
		string(entity.DeliveryPending), cutoff)
	if err != nil {
		return 0, fmt.Errorf("database: release expired claims: %w", err)
	}
	return res.RowsAffected()
}

func (r *DeliveryRepository) ListDeliveries(ctx context.Context, leadID string) ([]entity.Delivery, error) {
	query := `
		SELECT lead_id, channel, status, external_id, error, claimed_at_ms, completed_at
		FROM deliveries WHERE lead_id = ? ORDER BY channel
	`
	rows, err := r.DB.QueryContext(ctx, r.DB.rebind(query), leadID)
	if err != nil {
		return nil, fmt.Errorf("database: list deliveries: %w", err)
	}
	defer rows.Close()

	var out []entity.Delivery
	for rows.Next() {
		var (
			d                entity.Delivery
			ch, status       string
			externalID, dErr sql.NullString
			claimedMs        int64
			completedAt      sql.NullTime
		)
		if err := rows.Scan(&d.LeadID, &ch, &status, &externalID, &dErr, &claimedMs, &completedAt); err != nil {
			return nil, fmt.Errorf("database: scan delivery: %w", err)
		}
		d.Channel = entity.Channel(ch)
		d.Status = entity.DeliveryStatus(status)
		d.ExternalID = externalID.String
		d.Error = dErr.String
		d.ClaimedAt = time.UnixMilli(claimedMs).UTC()
		if completedAt.Valid {
			t := completedAt.Time.UTC()
			d.CompletedAt = &t
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
