package entity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TrainingExample is a style reference handed to the draft generator.
type TrainingExample struct {
	ID        string    `json:"id" yaml:"-"`
	Channel   Channel   `json:"channel" yaml:"channel"`
	Content   string    `json:"content" yaml:"content"`
	Context   string    `json:"context,omitempty" yaml:"context,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

func NewTrainingExample(ch Channel, content, note string) (*TrainingExample, error) {
	if _, err := ParseChannel(string(ch)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("example content is required")
	}
	return &TrainingExample{
		ID:        uuid.New().String(),
		Channel:   ch,
		Content:   strings.TrimSpace(content),
		Context:   strings.TrimSpace(note),
		CreatedAt: time.Now().UTC(),
	}, nil
}

type ExampleRepositoryInterface interface {
	CreateExample(ctx context.Context, ex *TrainingExample) error
	// ListExamples returns every example when ch is empty.
	ListExamples(ctx context.Context, ch Channel) ([]*TrainingExample, error)
	DeleteExample(ctx context.Context, id string) error
}
