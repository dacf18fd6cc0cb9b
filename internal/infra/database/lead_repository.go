package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xavierca1/sherpa/internal/entity"
)

const leadColumns = `id, identity_key, profile_url, first_name, last_name, email, phone, company,
	title, location, status, verification_status, draft_email_subject, draft_email_body,
	draft_connection_note, draft_chat_nudge, attachment, created_at, updated_at`

type LeadRepository struct {
	DB *DB
}

func NewLeadRepository(db *DB) *LeadRepository {
	return &LeadRepository{DB: db}
}

func (r *LeadRepository) Create(ctx context.Context, lead *entity.Lead) error {
	if lead.Status == "" {
		lead.Status = entity.StatusNew
	}
	if !lead.Status.Valid() {
		return fmt.Errorf("database: create lead: unknown status %q", lead.Status)
	}
	if lead.IdentityKey == "" {
		lead.IdentityKey = entity.IdentityKeyFor(lead.ProfileURL)
	}

	if _, err := r.Find(ctx, lead.IdentityKey); err == nil {
		return entity.ErrDuplicateIdentity
	} else if !errors.Is(err, entity.ErrLeadNotFound) {
		return err
	}

	now := r.DB.clock.Now()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now

	query := `
		INSERT INTO leads (` + leadColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.DB.ExecContext(ctx, r.DB.rebind(query),
		lead.ID,
		lead.IdentityKey,
		nullString(lead.ProfileURL),
		nullString(lead.FirstName),
		nullString(lead.LastName),
		nullString(lead.Email),
		nullString(lead.Phone),
		nullString(lead.Company),
		nullString(lead.Title),
		nullString(lead.Location),
		string(lead.Status),
		nullString(lead.VerificationStatus),
		lead.Draft.EmailSubject,
		lead.Draft.EmailBody,
		lead.Draft.ConnectionNote,
		lead.Draft.ChatNudge,
		nullString(lead.Attachment),
		lead.CreatedAt.UTC(),
		lead.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return entity.ErrDuplicateIdentity
		}
		return fmt.Errorf("database: create lead: %w", err)
	}
	return nil
}

func (r *LeadRepository) Get(ctx context.Context, id string) (*entity.Lead, error) {
	return r.queryOne(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
}

func (r *LeadRepository) Find(ctx context.Context, identityKey string) (*entity.Lead, error) {
	return r.queryOne(ctx, `SELECT `+leadColumns+` FROM leads WHERE identity_key = ?`, identityKey)
}

// FindByEmail matches case-insensitively and prefers the newest lead.
func (r *LeadRepository) FindByEmail(ctx context.Context, email string) (*entity.Lead, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, entity.ErrLeadNotFound
	}
	return r.queryOne(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE LOWER(email) = LOWER(?)
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, email)
}

func (r *LeadRepository) List(ctx context.Context, filter entity.LeadFilter) ([]*entity.Lead, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			marks[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if filter.WithoutDraft {
		where = append(where, `draft_email_subject IS NULL AND draft_email_body IS NULL
			AND draft_connection_note IS NULL AND draft_chat_nudge IS NULL`)
	}

	query := `SELECT ` + leadColumns + ` FROM leads`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	rows, err := r.DB.QueryContext(ctx, r.DB.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("database: list leads: %w", err)
	}
	defer rows.Close()

	var leads []*entity.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("database: scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// Update applies patch and bumps updated_at even when the patch is empty.
func (r *LeadRepository) Update(ctx context.Context, id string, patch entity.LeadPatch) (*entity.Lead, error) {
	sets, args := patchAssignments(&patch)
	sets = append(sets, "updated_at = ?")
	args = append(args, r.DB.clock.Now(), id)

	query := `UPDATE leads SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	res, err := r.DB.ExecContext(ctx, r.DB.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("database: update lead: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, entity.ErrLeadNotFound
	}
	return r.Get(ctx, id)
}

// Transition moves the lead from expected to next and applies patch in the
// same statement. Illegal edges fail before anything is written; a lead that
// is no longer in expected yields a *entity.StaleStateError.
func (r *LeadRepository) Transition(ctx context.Context, id string, expected, next entity.Status, patch *entity.LeadPatch) (*entity.Lead, error) {
	if err := entity.ValidateTransition(expected, next); err != nil {
		return nil, err
	}

	sets, args := patchAssignments(patch)
	sets = append(sets, "status = ?", "updated_at = ?")
	args = append(args, string(next), r.DB.clock.Now(), id, string(expected))

	query := `UPDATE leads SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND status = ?`
	res, err := r.DB.ExecContext(ctx, r.DB.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("database: transition lead: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		current, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &entity.StaleStateError{LeadID: id, Expected: expected, Actual: current.Status}
	}
	return r.Get(ctx, id)
}

func (r *LeadRepository) CountByStatus(ctx context.Context) (map[entity.Status]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("database: count leads: %w", err)
	}
	defer rows.Close()

	counts := make(map[entity.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[entity.Status(status)] = n
	}
	return counts, rows.Err()
}

func (r *LeadRepository) CountSince(ctx context.Context, since time.Time) (int, int, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN updated_at >= ? THEN 1 ELSE 0 END), 0)
		FROM leads
	`
	var created, updated int
	since = since.UTC()
	err := r.DB.QueryRowContext(ctx, r.DB.rebind(query), since, since).Scan(&created, &updated)
	if err != nil {
		return 0, 0, fmt.Errorf("database: count leads since: %w", err)
	}
	return created, updated, nil
}

func (r *LeadRepository) queryOne(ctx context.Context, query string, args ...any) (*entity.Lead, error) {
	row := r.DB.QueryRowContext(ctx, r.DB.rebind(query), args...)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database: get lead: %w", err)
	}
	return l, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLead(s scanner) (*entity.Lead, error) {
	var (
		l      entity.Lead
		status string

		profileURL, firstName, lastName, email, phone      sql.NullString
		company, title, location, verification, attachment sql.NullString
	)
	err := s.Scan(
		&l.ID,
		&l.IdentityKey,
		&profileURL,
		&firstName,
		&lastName,
		&email,
		&phone,
		&company,
		&title,
		&location,
		&status,
		&verification,
		&l.Draft.EmailSubject,
		&l.Draft.EmailBody,
		&l.Draft.ConnectionNote,
		&l.Draft.ChatNudge,
		&attachment,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Status = entity.Status(status)
	l.ProfileURL = profileURL.String
	l.FirstName = firstName.String
	l.LastName = lastName.String
	l.Email = email.String
	l.Phone = phone.String
	l.Company = company.String
	l.Title = title.String
	l.Location = location.String
	l.VerificationStatus = verification.String
	l.Attachment = attachment.String
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	return &l, nil
}

// patchAssignments renders the SET fragments for the non-nil fields of p.
// Identity key and status are never part of a patch.
func patchAssignments(p *entity.LeadPatch) ([]string, []any) {
	if p == nil {
		return nil, nil
	}
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	text := func(col string, v *string) {
		if v != nil {
			add(col, nullString(strings.TrimSpace(*v)))
		}
	}
	text("first_name", p.FirstName)
	text("last_name", p.LastName)
	text("email", p.Email)
	text("phone", p.Phone)
	text("company", p.Company)
	text("title", p.Title)
	text("location", p.Location)
	text("verification_status", p.VerificationStatus)
	text("attachment", p.Attachment)
	if p.Draft != nil {
		add("draft_email_subject", p.Draft.EmailSubject)
		add("draft_email_body", p.Draft.EmailBody)
		add("draft_connection_note", p.Draft.ConnectionNote)
		add("draft_chat_nudge", p.Draft.ChatNudge)
	}
	return sets, args
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
