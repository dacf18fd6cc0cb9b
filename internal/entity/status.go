package entity

import "fmt"

type Status string

const (
	StatusNew             Status = "New"
	StatusEnriched        Status = "Enriched"
	StatusPendingApproval Status = "Pending_Approval"
	StatusApproved        Status = "Approved"
	StatusRejected        Status = "Rejected"
	StatusContacted       Status = "Contacted"
	StatusReplied         Status = "Replied"
	StatusInterested      Status = "Interested"
	StatusSnoozed         Status = "Snoozed"
	StatusDead            Status = "Dead"
)

// transitions is the adjacency table of the lead lifecycle. A transition that
// is not listed here is illegal, self-loops included.
var transitions = map[Status][]Status{
	StatusNew:             {StatusEnriched, StatusPendingApproval, StatusRejected},
	StatusEnriched:        {StatusPendingApproval, StatusRejected},
	StatusPendingApproval: {StatusApproved, StatusRejected, StatusEnriched},
	StatusApproved:        {StatusContacted, StatusEnriched},
	StatusContacted:       {StatusReplied, StatusInterested, StatusSnoozed, StatusDead},
	StatusReplied:         {StatusInterested, StatusSnoozed, StatusDead},
	StatusSnoozed:         {StatusReplied, StatusInterested, StatusDead},
	StatusInterested:      {StatusReplied, StatusSnoozed, StatusDead},
	// manual reactivation only; automated passes never select these sources
	StatusRejected: {StatusEnriched},
	StatusDead:     {StatusEnriched},
}

// AllStatuses lists every known status in lifecycle order.
func AllStatuses() []Status {
	return []Status{
		StatusNew, StatusEnriched, StatusPendingApproval, StatusApproved, StatusRejected,
		StatusContacted, StatusReplied, StatusInterested, StatusSnoozed, StatusDead,
	}
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown lead status %q", v)
	}
	return s, nil
}

// CanTransition reports whether the adjacency table allows from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a *TransitionError when from -> to is not in the
// adjacency table.
func ValidateTransition(from, to Status) error {
	if !from.Valid() || !to.Valid() || !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// IsDraftable reports whether the drafting pass may pick up a lead. New and
// Enriched are both entry points.
func (s Status) IsDraftable() bool {
	return s == StatusNew || s == StatusEnriched
}

// AcceptsReplies reports whether reply ingestion may move the lead.
func (s Status) AcceptsReplies() bool {
	switch s {
	case StatusContacted, StatusReplied, StatusInterested, StatusSnoozed:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusDead || s == StatusRejected
}
