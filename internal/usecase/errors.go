package usecase

import (
	"errors"
	"fmt"

	"github.com/xavierca1/sherpa/internal/entity"
)

const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidDraft = "INVALID_DRAFT"
	CodeNotEditable  = "NOT_EDITABLE"
)

// DomainError is a failure caused by the caller's input or the lead's
// current state. It is reported, never retried.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

type TechnicalError struct {
	Code    string
	Message string
}

func (e *TechnicalError) Error() string {
	return e.Message
}

func IsTechnicalError(err error) bool {
	var te *TechnicalError
	return errors.As(err, &te)
}

// GenerationError means the drafting collaborator failed or produced a draft
// that breaks the draft policy. The lead keeps its status.
type GenerationError struct {
	LeadID string
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("draft generation for lead %s: %v", e.LeadID, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

type DispatchError struct {
	LeadID  string
	Channel entity.Channel
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s dispatch for lead %s: %v", e.Channel, e.LeadID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// ClassificationError is logged and the reply is treated as OTHER.
type ClassificationError struct {
	MessageID string
	Err       error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify message %s: %v", e.MessageID, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }
