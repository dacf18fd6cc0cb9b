package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xavierca1/sherpa/internal/entity"
)

// draftKeys must all be present in a draft response; a null value means the
// channel was not drafted.
var draftKeys = []string{"email_subject", "email_body", "connection_note", "chat_nudge"}

// Drafter asks Gemini for the four per-channel drafts of a lead.
type Drafter struct {
	Client *Client
	Model  string
	Policy entity.DraftPolicy
}

func NewDrafter(c *Client, model string, policy entity.DraftPolicy) *Drafter {
	if model == "" {
		model = DefaultDraftModel
	}
	return &Drafter{Client: c, Model: model, Policy: policy}
}

func (d *Drafter) Generate(ctx context.Context, lead *entity.Lead, examples []*entity.TrainingExample) (*entity.Draft, error) {
	text, err := d.Client.generate(ctx, d.Model, d.prompt(lead, examples), true)
	if err != nil {
		return nil, err
	}
	return ParseDraft(text)
}

// ParseDraft decodes a draft response. All four keys are required; values
// may be strings or null.
func ParseDraft(text string) (*entity.Draft, error) {
	text = stripFence(text)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("draft response is not a JSON object: %w", err)
	}

	fields := make(map[string]*string, len(draftKeys))
	for _, key := range draftKeys {
		v, ok := raw[key]
		if !ok {
			return nil, fmt.Errorf("draft response missing %q", key)
		}
		var s *string
		if err := json.Unmarshal(v, &s); err != nil {
			return nil, fmt.Errorf("draft response %q is not a string: %w", key, err)
		}
		fields[key] = s
	}

	return &entity.Draft{
		EmailSubject:   fields["email_subject"],
		EmailBody:      fields["email_body"],
		ConnectionNote: fields["connection_note"],
		ChatNudge:      fields["chat_nudge"],
	}, nil
}

func (d *Drafter) prompt(lead *entity.Lead, examples []*entity.TrainingExample) string {
	orNA := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "N/A"
		}
		return s
	}

	var b strings.Builder
	b.WriteString("You draft short, peer-to-peer B2B outreach for one prospect.\n\n")
	b.WriteString("Prospect:\n")
	fmt.Fprintf(&b, "Name: %s\n", orNA(lead.FullName()))
	fmt.Fprintf(&b, "Title: %s\n", orNA(lead.Title))
	fmt.Fprintf(&b, "Company: %s\n", orNA(lead.Company))
	fmt.Fprintf(&b, "Location: %s\n", orNA(lead.Location))
	fmt.Fprintf(&b, "Profile URL: %s\n", orNA(lead.ProfileURL))
	fmt.Fprintf(&b, "Email: %s\n", orNA(lead.Email))
	fmt.Fprintf(&b, "Phone: %s\n\n", orNA(lead.Phone))

	b.WriteString("Guidelines:\n")
	b.WriteString("1. Infer the prospect's likely pain points from their title.\n")
	b.WriteString("2. Structure: observation, problem, solution.\n")
	b.WriteString("3. Tone: direct, casual, low friction.\n")
	b.WriteString("4. If Email is N/A, set email_subject and email_body to null. If Profile URL is N/A, set connection_note to null. If Phone is N/A, set chat_nudge to null.\n\n")

	b.WriteString("Deliverables:\n")
	fmt.Fprintf(&b, "- email_subject: lowercase, at most %d words\n", d.Policy.SubjectMaxWords)
	fmt.Fprintf(&b, "- email_body: under %d words\n", d.Policy.BodyMaxWords)
	fmt.Fprintf(&b, "- connection_note: at most %d characters\n", d.Policy.NoteMaxChars)
	fmt.Fprintf(&b, "- chat_nudge: one casual line, at most %d characters\n\n", d.Policy.NudgeMaxChars)

	if len(examples) > 0 {
		b.WriteString("Match the style of these approved messages:\n")
		for _, ex := range examples {
			fmt.Fprintf(&b, "[%s]", ex.Channel)
			if ex.Context != "" {
				fmt.Fprintf(&b, " (%s)", ex.Context)
			}
			fmt.Fprintf(&b, "\n%s\n\n", ex.Content)
		}
	}

	b.WriteString(`Answer with exactly this JSON object and nothing else:
{"email_subject": "...", "email_body": "...", "connection_note": "...", "chat_nudge": "..."}`)
	return b.String()
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
