// Package throttle paces outbound actions so that consecutive actions of the
// same kind are separated by a uniformly random gap.
package throttle

import (
	"context"
	"math/rand/v2"
	"time"
)

// Throttle serialises callers of Wait and Do. Each call proceeds no earlier
// than a random gap in [min, max] after the previous one finished. The first
// call proceeds immediately.
type Throttle struct {
	min, max time.Duration
	slot     chan struct{}
	last     time.Time
	now      func() time.Time
	draw     func(min, max time.Duration) time.Duration
}

func New(min, max time.Duration) *Throttle {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	return &Throttle{
		min:  min,
		max:  max,
		slot: make(chan struct{}, 1),
		now:  time.Now,
		draw: uniform,
	}
}

// Delay draws one gap from [min, max].
func (t *Throttle) Delay() time.Duration {
	return t.draw(t.min, t.max)
}

func (t *Throttle) Bounds() (time.Duration, time.Duration) {
	return t.min, t.max
}

// Wait blocks until the next action is allowed. It returns ctx.Err() if the
// context ends first, in which case the slot is not consumed.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.Do(ctx, nil)
}

// Do runs action once the next action is allowed and holds the slot until it
// returns. The following gap is measured from the moment action returned, so
// a slow action never shortens it. If ctx ends while waiting, action is not
// run and ctx.Err() is returned.
func (t *Throttle) Do(ctx context.Context, action func() error) error {
	select {
	case t.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-t.slot }()

	if !t.last.IsZero() {
		remaining := t.last.Add(t.Delay()).Sub(t.now())
		if remaining > 0 {
			timer := time.NewTimer(remaining)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	var err error
	if action != nil {
		err = action()
	}
	t.last = t.now()
	return err
}

// Sleep suspends for one random gap regardless of history. It is the plain
// wait(min, max) used for short human-like pauses inside a browser action.
func (t *Throttle) Sleep(ctx context.Context) error {
	timer := time.NewTimer(t.Delay())
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func uniform(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min+1)
}
