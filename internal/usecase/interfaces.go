package usecase

import (
	"context"
	"iter"

	"github.com/xavierca1/sherpa/internal/entity"
)

// DraftGenerator is the generative drafting collaborator.
type DraftGenerator interface {
	Generate(ctx context.Context, lead *entity.Lead, examples []*entity.TrainingExample) (*entity.Draft, error)
}

type OutboundEmail struct {
	To      string
	Name    string
	Subject string
	Body    string
	// AttachmentPath is empty when there is nothing to attach.
	AttachmentPath string
}

// MailTransport sends one email and returns the provider message id.
type MailTransport interface {
	Send(ctx context.Context, msg OutboundEmail) (string, error)
}

// ConnectionRequester enqueues a connection request. Acceptance means the
// request was queued, not that it was delivered.
type ConnectionRequester interface {
	RequestConnection(ctx context.Context, leadID, profileURL, note string) (string, error)
}

// ChatSession is a pre-authenticated chat automation session owned outside
// the orchestrator. The chat channel is a no-op while IsReady is false.
type ChatSession interface {
	IsReady(ctx context.Context) bool
	Send(ctx context.Context, phone, text string) error
}

type InboundMessage struct {
	MessageID string
	Sender    string
	Subject   string
	Body      string
}

type Inbox interface {
	ListUnread(ctx context.Context) ([]InboundMessage, error)
	MarkRead(ctx context.Context, messageID string) error
}

type Classifier interface {
	Classify(ctx context.Context, msg InboundMessage) (ReplyCategory, error)
}

// Discoverer is the search/export automation collaborator. FetchResult with
// an empty job id returns the latest finished result.
type Discoverer interface {
	Launch(ctx context.Context, query string) (string, error)
	FetchResult(ctx context.Context, jobID string) (iter.Seq[string], error)
}

type ContactInfo struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Company   string
	Title     string
	Location  string
}

// Enricher looks up contact data. A nil result with a nil error means the
// profile is unknown to the provider.
type Enricher interface {
	Lookup(ctx context.Context, profileURL string) (*ContactInfo, error)
}

// CRM receives leads that answered with interest.
type CRM interface {
	HandOff(ctx context.Context, lead *entity.Lead) error
}

// AttachmentResolver maps a stored attachment name to a readable file.
type AttachmentResolver interface {
	Resolve(name string) (string, bool)
}

// Pacer blocks until the next outbound action of one kind is allowed.
type Pacer interface {
	Wait(ctx context.Context) error
}

// SendPacer runs one outbound action once it is allowed. The next action is
// spaced from the moment this one returns. action is not run when ctx ends
// first.
type SendPacer interface {
	Do(ctx context.Context, action func() error) error
}
