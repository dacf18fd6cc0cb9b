package usecase

import (
	"context"
	"fmt"
	"strings"
)

type ReplyCategory string

const (
	CategoryInterested ReplyCategory = "INTERESTED"
	CategoryLater      ReplyCategory = "LATER"
	CategoryStop       ReplyCategory = "STOP"
	CategoryOther      ReplyCategory = "OTHER"
)

// ParseCategory accepts the four category names, case-insensitively.
func ParseCategory(s string) (ReplyCategory, error) {
	c := ReplyCategory(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CategoryInterested, CategoryLater, CategoryStop, CategoryOther:
		return c, nil
	}
	return "", fmt.Errorf("unknown reply category %q", s)
}

var (
	stopPhrases = []string{
		"unsubscribe",
		"remove me",
		"take me off",
		"opt out",
		"opt-out",
		"stop emailing",
		"stop contacting",
		"stop messaging",
		"do not contact",
		"don't contact",
		"do not email",
		"don't email",
		"not interested",
	}
	autoReplyPhrases = []string{
		"out of office",
		"out of the office",
		"automatic reply",
		"auto-reply",
		"autoreply",
		"away from my desk",
		"on vacation",
		"on leave until",
	}
)

// RuleClassifier recognises unambiguous replies without a model call.
type RuleClassifier struct{}

// Match returns the category of msg when a rule fires.
func (RuleClassifier) Match(msg InboundMessage) (ReplyCategory, bool) {
	subject := strings.ToLower(msg.Subject)
	body := strings.ToLower(msg.Body)

	for _, p := range autoReplyPhrases {
		if strings.Contains(subject, p) {
			return CategoryOther, true
		}
	}
	for _, p := range stopPhrases {
		if strings.Contains(body, p) || strings.Contains(subject, p) {
			return CategoryStop, true
		}
	}
	for _, p := range autoReplyPhrases {
		if strings.Contains(body, p) {
			return CategoryOther, true
		}
	}
	return "", false
}

func (r RuleClassifier) Classify(_ context.Context, msg InboundMessage) (ReplyCategory, error) {
	if c, ok := r.Match(msg); ok {
		return c, nil
	}
	return CategoryOther, nil
}

// ChainClassifier tries the rules first and asks Fallback otherwise.
type ChainClassifier struct {
	Rules    RuleClassifier
	Fallback Classifier
}

func (c ChainClassifier) Classify(ctx context.Context, msg InboundMessage) (ReplyCategory, error) {
	if cat, ok := c.Rules.Match(msg); ok {
		return cat, nil
	}
	if c.Fallback == nil {
		return CategoryOther, nil
	}
	return c.Fallback.Classify(ctx, msg)
}
