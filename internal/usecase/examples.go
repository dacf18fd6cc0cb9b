package usecase

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/xavierca1/sherpa/internal/entity"
)

type CreateExampleInput struct {
	Channel string `json:"channel" yaml:"channel"`
	Content string `json:"content" yaml:"content"`
	Context string `json:"context" yaml:"context"`
}

// ExamplesUseCase manages the style references given to the drafting
// collaborator.
type ExamplesUseCase struct {
	Repo entity.ExampleRepositoryInterface
}

func (uc *ExamplesUseCase) Create(ctx context.Context, input CreateExampleInput) (*entity.TrainingExample, error) {
	ex, err := buildExample(input)
	if err != nil {
		return nil, err
	}
	if err := uc.Repo.CreateExample(ctx, ex); err != nil {
		return nil, err
	}
	return ex, nil
}

func (uc *ExamplesUseCase) List(ctx context.Context, channel string) ([]*entity.TrainingExample, error) {
	var ch entity.Channel
	if channel != "" {
		parsed, err := entity.ParseChannel(channel)
		if err != nil {
			return nil, &DomainError{Code: CodeValidation, Message: err.Error()}
		}
		ch = parsed
	}
	return uc.Repo.ListExamples(ctx, ch)
}

func (uc *ExamplesUseCase) Delete(ctx context.Context, id string) error {
	return uc.Repo.DeleteExample(ctx, id)
}

// ImportYAML reads a seed file of the form
//
//	examples:
//	  - channel: email
//	    content: "..."
//	    context: "..."
//
// Every entry is validated before the first one is stored.
func (uc *ExamplesUseCase) ImportYAML(ctx context.Context, r io.Reader) (int, error) {
	var doc struct {
		Examples []CreateExampleInput `yaml:"examples"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return 0, fmt.Errorf("parse examples yaml: %w", err)
	}

	built := make([]*entity.TrainingExample, 0, len(doc.Examples))
	for i, in := range doc.Examples {
		ex, err := buildExample(in)
		if err != nil {
			return 0, fmt.Errorf("example %d: %w", i+1, err)
		}
		built = append(built, ex)
	}

	for i, ex := range built {
		if err := uc.Repo.CreateExample(ctx, ex); err != nil {
			return i, err
		}
	}
	return len(built), nil
}

func buildExample(input CreateExampleInput) (*entity.TrainingExample, error) {
	ch, err := entity.ParseChannel(input.Channel)
	if err != nil {
		return nil, &DomainError{Code: CodeValidation, Message: err.Error()}
	}
	ex, err := entity.NewTrainingExample(ch, input.Content, input.Context)
	if err != nil {
		return nil, &DomainError{Code: CodeValidation, Message: err.Error()}
	}
	return ex, nil
}
