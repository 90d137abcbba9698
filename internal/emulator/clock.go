package emulator

import (
	"time"

	"github.com/ooni/minisr/internal/model"
)

// Clock is the virtual clock of an emulation. The emulator advances it to the
// time of each event before dispatching the event.
type Clock struct {
	epoch   time.Time
	elapsed time.Duration
}

var _ model.Clock = &Clock{}

// NewClock returns a clock whose time zero is epoch.
func NewClock(epoch time.Time) *Clock {
	return &Clock{epoch: epoch}
}

// Now implements model.Clock.
func (c *Clock) Now() time.Time {
	return c.epoch.Add(c.elapsed)
}

// Elapsed returns the virtual time since the beginning of the emulation.
func (c *Clock) Elapsed() time.Duration {
	return c.elapsed
}

func (c *Clock) advance(to time.Duration) {
	if to > c.elapsed {
		c.elapsed = to
	}
}
