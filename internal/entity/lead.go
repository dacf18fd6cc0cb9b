package entity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	VerificationVerified   = "verified"
	VerificationManual     = "manual"
	VerificationGenerated  = "ai-generated"
	VerificationUnverified = "unverified"

	manualIdentityPrefix = "manual:"
)

type Lead struct {
	ID                 string    `json:"id"`
	IdentityKey        string    `json:"identity_key"`
	ProfileURL         string    `json:"profile_url,omitempty"`
	FirstName          string    `json:"first_name,omitempty"`
	LastName           string    `json:"last_name,omitempty"`
	Email              string    `json:"email,omitempty"`
	Phone              string    `json:"phone,omitempty"`
	Company            string    `json:"company,omitempty"`
	Title              string    `json:"title,omitempty"`
	Location           string    `json:"location,omitempty"`
	Status             Status    `json:"status"`
	VerificationStatus string    `json:"verification_status,omitempty"`
	Draft              Draft     `json:"draft"`
	Attachment         string    `json:"attachment,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NewLead builds a lead with a fresh id and an identity key derived from the
// profile URL, or a synthetic key when the lead has no URL.
func NewLead(profileURL string, status Status) *Lead {
	return &Lead{
		ID:          uuid.New().String(),
		IdentityKey: IdentityKeyFor(profileURL),
		ProfileURL:  strings.TrimSpace(profileURL),
		Status:      status,
	}
}

// IdentityKeyFor normalises a profile URL into the lead identity key.
func IdentityKeyFor(profileURL string) string {
	u := strings.ToLower(strings.TrimSpace(profileURL))
	u = strings.TrimRight(u, "/")
	if u == "" {
		return manualIdentityPrefix + uuid.New().String()
	}
	return u
}

func (l *Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// HasAddress reports whether the lead can be reached on ch.
func (l *Lead) HasAddress(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return strings.TrimSpace(l.Email) != ""
	case ChannelConnection:
		return strings.TrimSpace(l.ProfileURL) != ""
	case ChannelChat:
		return strings.TrimSpace(l.Phone) != ""
	}
	return false
}

// Reachable reports whether at least one channel has a delivery address.
func (l *Lead) Reachable() bool {
	for _, ch := range AllChannels() {
		if l.HasAddress(ch) {
			return true
		}
	}
	return false
}

// LeadPatch is a partial update. Nil fields are left untouched. A non-nil
// Draft replaces all four draft fields, so &Draft{} clears them.
type LeadPatch struct {
	FirstName          *string
	LastName           *string
	Email              *string
	Phone              *string
	Company            *string
	Title              *string
	Location           *string
	VerificationStatus *string
	Attachment         *string
	Draft              *Draft
}

func (p *LeadPatch) Empty() bool {
	return p == nil || (p.FirstName == nil && p.LastName == nil && p.Email == nil && p.Phone == nil &&
		p.Company == nil && p.Title == nil && p.Location == nil && p.VerificationStatus == nil &&
		p.Attachment == nil && p.Draft == nil)
}

type LeadFilter struct {
	Statuses []Status
	// WithoutDraft keeps only leads whose four draft fields are null.
	WithoutDraft bool
	Limit        int
}

type LeadRepositoryInterface interface {
	Create(ctx context.Context, lead *Lead) error
	Get(ctx context.Context, id string) (*Lead, error)
	Find(ctx context.Context, identityKey string) (*Lead, error)
	FindByEmail(ctx context.Context, email string) (*Lead, error)
	List(ctx context.Context, filter LeadFilter) ([]*Lead, error)
	Update(ctx context.Context, id string, patch LeadPatch) (*Lead, error)
	Transition(ctx context.Context, id string, expected, next Status, patch *LeadPatch) (*Lead, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
	// CountSince returns how many leads were created and how many were
	// touched at or after since.
	CountSince(ctx context.Context, since time.Time) (created, updated int, err error)
}
