package entity

import (
	"errors"
	"fmt"
)

var (
	ErrLeadNotFound      = errors.New("lead not found")
	ErrExampleNotFound   = errors.New("training example not found")
	ErrDuplicateIdentity = errors.New("lead identity already exists")
	ErrStaleState        = errors.New("lead changed state concurrently")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// TransitionError is returned when a requested status change is not in the
// lifecycle adjacency table. Nothing is written when it occurs.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// StaleStateError is returned by optimistic writes when the lead is no longer
// in the status the caller read.
type StaleStateError struct {
	LeadID   string
	Expected Status
	Actual   Status
	// Channel is set when the conflict was on a delivery claim.
	Channel Channel
}

func (e *StaleStateError) Error() string {
	if e.Channel != "" {
		return fmt.Sprintf("lead %s: %s delivery already claimed or lead left %s", e.LeadID, e.Channel, e.Expected)
	}
	return fmt.Sprintf("lead %s: expected status %s, found %s", e.LeadID, e.Expected, e.Actual)
}

func (e *StaleStateError) Unwrap() error { return ErrStaleState }
