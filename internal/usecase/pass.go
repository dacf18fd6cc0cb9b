package usecase

import (
	"errors"
	"time"

	"github.com/xavierca1/sherpa/internal/entity"
)

var timeNow = time.Now

// PassReport summarises one run of a batch pass. Per-lead failures land in
// Failures; leads lost to a concurrent writer land in Stale.
type PassReport struct {
	Pass     string                 `json:"pass"`
	Examined int                    `json:"examined"`
	Advanced int                    `json:"advanced"`
	Skipped  int                    `json:"skipped"`
	Sent     map[entity.Channel]int `json:"sent,omitempty"`
	Stale    []string               `json:"stale,omitempty"`
	Failures []LeadFailure          `json:"failures,omitempty"`
	Started  time.Time              `json:"started_at"`
	Duration time.Duration          `json:"duration_ns"`
}

type LeadFailure struct {
	LeadID  string         `json:"lead_id,omitempty"`
	Channel entity.Channel `json:"channel,omitempty"`
	Message string         `json:"error"`
	Err     error          `json:"-"`
}

func newPassReport(name string) PassReport {
	return PassReport{Pass: name, Started: timeNow()}
}

func (r *PassReport) fail(leadID string, ch entity.Channel, err error) {
	r.Failures = append(r.Failures, LeadFailure{LeadID: leadID, Channel: ch, Message: err.Error(), Err: err})
}

func (r *PassReport) stale(leadID string) {
	r.Stale = append(r.Stale, leadID)
	r.Skipped++
}

func (r *PassReport) sent(ch entity.Channel) {
	if r.Sent == nil {
		r.Sent = make(map[entity.Channel]int)
	}
	r.Sent[ch]++
}

func (r *PassReport) finish() {
	r.Duration = timeNow().Sub(r.Started)
}

func isStale(err error) bool {
	return errors.Is(err, entity.ErrStaleState)
}
