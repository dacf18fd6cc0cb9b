package entity

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Draft holds the per-channel message content for a lead. A nil field means
// the channel has no draft, either because it was not generated or because
// the lead has no address on that channel.
type Draft struct {
	EmailSubject   *string `json:"email_subject"`
	EmailBody      *string `json:"email_body"`
	ConnectionNote *string `json:"connection_note"`
	ChatNudge      *string `json:"chat_nudge"`
}

// DraftPolicy bounds generated and edited content.
type DraftPolicy struct {
	SubjectMaxWords int `yaml:"subject_max_words"`
	BodyMaxWords    int `yaml:"body_max_words"`
	NoteMaxChars    int `yaml:"note_max_chars"`
	NudgeMaxChars   int `yaml:"nudge_max_chars"`
}

func DefaultDraftPolicy() DraftPolicy {
	return DraftPolicy{
		SubjectMaxWords: 4,
		BodyMaxWords:    75,
		NoteMaxChars:    280,
		NudgeMaxChars:   300,
	}
}

var errEmptyDraft = errors.New("draft has no content for any channel")

func (d Draft) IsEmpty() bool {
	return isBlank(d.EmailSubject) && isBlank(d.EmailBody) && isBlank(d.ConnectionNote) && isBlank(d.ChatNudge)
}

// Has reports whether the draft carries content for ch.
func (d Draft) Has(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return !isBlank(d.EmailSubject) && !isBlank(d.EmailBody)
	case ChannelConnection:
		return !isBlank(d.ConnectionNote)
	case ChannelChat:
		return !isBlank(d.ChatNudge)
	}
	return false
}

// ForLead returns a copy with every channel nulled whose delivery address is
// missing on the lead.
func (d Draft) ForLead(l *Lead) Draft {
	out := d.normalized()
	if !l.HasAddress(ChannelEmail) {
		out.EmailSubject, out.EmailBody = nil, nil
	}
	if !l.HasAddress(ChannelConnection) {
		out.ConnectionNote = nil
	}
	if !l.HasAddress(ChannelChat) {
		out.ChatNudge = nil
	}
	return out
}

// Merge overlays the non-nil fields of edits. Edits always win.
func (d Draft) Merge(edits Draft) Draft {
	out := d
	if edits.EmailSubject != nil {
		out.EmailSubject = edits.EmailSubject
	}
	if edits.EmailBody != nil {
		out.EmailBody = edits.EmailBody
	}
	if edits.ConnectionNote != nil {
		out.ConnectionNote = edits.ConnectionNote
	}
	if edits.ChatNudge != nil {
		out.ChatNudge = edits.ChatNudge
	}
	return out.normalized()
}

// Validate checks subject/body pairing and the policy limits. Content is
// never truncated.
func (d Draft) Validate(p DraftPolicy) error {
	d = d.normalized()
	if d.IsEmpty() {
		return errEmptyDraft
	}
	if (d.EmailSubject == nil) != (d.EmailBody == nil) {
		return errors.New("email subject and body must both be present or both be absent")
	}
	if d.EmailSubject != nil && p.SubjectMaxWords > 0 {
		if n := len(strings.Fields(*d.EmailSubject)); n > p.SubjectMaxWords {
			return fmt.Errorf("email subject has %d words, limit is %d", n, p.SubjectMaxWords)
		}
	}
	if d.EmailBody != nil && p.BodyMaxWords > 0 {
		if n := len(strings.Fields(*d.EmailBody)); n > p.BodyMaxWords {
			return fmt.Errorf("email body has %d words, limit is %d", n, p.BodyMaxWords)
		}
	}
	if d.ConnectionNote != nil && p.NoteMaxChars > 0 {
		if n := utf8.RuneCountInString(*d.ConnectionNote); n > p.NoteMaxChars {
			return fmt.Errorf("connection note has %d characters, limit is %d", n, p.NoteMaxChars)
		}
	}
	if d.ChatNudge != nil && p.NudgeMaxChars > 0 {
		if n := utf8.RuneCountInString(*d.ChatNudge); n > p.NudgeMaxChars {
			return fmt.Errorf("chat nudge has %d characters, limit is %d", n, p.NudgeMaxChars)
		}
	}
	return nil
}

// normalized turns blank strings into nil so "" and null mean the same thing.
func (d Draft) normalized() Draft {
	return Draft{
		EmailSubject:   trimmedOrNil(d.EmailSubject),
		EmailBody:      trimmedOrNil(d.EmailBody),
		ConnectionNote: trimmedOrNil(d.ConnectionNote),
		ChatNudge:      trimmedOrNil(d.ChatNudge),
	}
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// Text returns the value of s or "".
func Text(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Ptr returns a pointer to v.
func Ptr(v string) *string { return &v }
