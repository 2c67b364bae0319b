package processor

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"

	"github.com/lendsight/engage-cli/internal/model"
)

// DefaultTimezone is the operation's reporting timezone, used when a
// recipe does not override it.
const DefaultTimezone = "America/Mexico_City"

// hoursNever marks "no such message exists" for the elapsed-hours keys.
const hoursNever = float64(-1)

// Temporal computes recency signals relative to a caller-supplied now.
//
// Reads: nothing.
// Writes: hours_since_last_user_message, hours_since_last_message,
// no_user_messages.
type Temporal struct {
	now func() time.Time
}

// NewTemporal builds the temporal processor. A nil clock means
// time.Now; tests inject a fixed clock.
func NewTemporal(clock func() time.Time) *Temporal {
	if clock == nil {
		clock = time.Now
	}
	return &Temporal{now: clock}
}

func (*Temporal) Name() string { return "temporal" }

func (*Temporal) OutputKeys() []OutputKey {
	return []OutputKey{
		{Name: "hours_since_last_user_message", Default: hoursNever},
		{Name: "hours_since_last_message", Default: hoursNever},
		{Name: "no_user_messages", Default: true},
	}
}

func (p *Temporal) Process(_ context.Context, leadCtx *model.Context, transcript model.Transcript, params Params) error {
	loc, err := time.LoadLocation(params.String("timezone", DefaultTimezone))
	if err != nil {
		return eris.Wrap(err, "temporal: load timezone")
	}
	now := p.now().In(loc)

	ordered := transcript.Sorted()
	lastUser := ordered.LastFrom(model.SenderUser)
	last := ordered.LastMessage()

	leadCtx.Set("hours_since_last_user_message", hoursSince(now, lastUser, loc))
	leadCtx.Set("hours_since_last_message", hoursSince(now, last, loc))
	leadCtx.Set("no_user_messages", lastUser == nil)
	return nil
}

// hoursSince returns elapsed hours from msg to now, rounded to one
// decimal, comparing both instants in the configured timezone. The
// message timestamp is never mutated.
func hoursSince(now time.Time, msg *model.Message, loc *time.Location) float64 {
	if msg == nil {
		return hoursNever
	}
	elapsed := now.Sub(msg.Timestamp.In(loc)).Hours()
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Round(elapsed*10) / 10
}
