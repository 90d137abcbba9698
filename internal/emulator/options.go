package emulator

import (
	"time"

	"github.com/ooni/minisr/internal/runtimex"
)

const (
	// DEFAULT_MESSAGES is the number of messages the application generates.
	DEFAULT_MESSAGES = 100

	// DEFAULT_MEAN_INTERVAL is the mean time between two application messages.
	DEFAULT_MEAN_INTERVAL = 10 * time.Millisecond

	// MIN_LINK_DELAY and MAX_LINK_DELAY bound the propagation delay of the link.
	MIN_LINK_DELAY = 1 * time.Millisecond
	MAX_LINK_DELAY = 10 * time.Millisecond
)

// Option configures an [Emulator].
type Option func(e *Emulator)

// WithMessages sets how many messages the application generates.
func WithMessages(n int) Option {
	runtimex.PanicIfFalse(n >= 0, "emulator: negative number of messages")
	return func(e *Emulator) {
		e.messages = n
	}
}

// WithLossProbability sets the probability that the link loses a packet.
func WithLossProbability(p float64) Option {
	checkProbability(p)
	return func(e *Emulator) {
		e.loss = p
	}
}

// WithCorruptionProbability sets the probability that the link corrupts a packet.
func WithCorruptionProbability(p float64) Option {
	checkProbability(p)
	return func(e *Emulator) {
		e.corrupt = p
	}
}

// WithReorderProbability sets the probability that a packet ignores the FIFO
// order of the link and may overtake the packets already in flight.
func WithReorderProbability(p float64) Option {
	checkProbability(p)
	return func(e *Emulator) {
		e.reorder = p
	}
}

// WithMeanInterval sets the mean of the exponential time between application messages.
func WithMeanInterval(d time.Duration) Option {
	runtimex.PanicIfFalse(d > 0, "emulator: mean interval must be positive")
	return func(e *Emulator) {
		e.meanInterval = d
	}
}

// WithSeed seeds the random number generator.
func WithSeed(seed uint64) Option {
	return func(e *Emulator) {
		e.seed = seed
	}
}

// WithClock makes the emulator drive the given clock. Use it to share the
// virtual time with a tracer.
func WithClock(clock *Clock) Option {
	return func(e *Emulator) {
		e.clock = clock
	}
}

// WithCapture makes the emulator record every transmitted packet.
func WithCapture(capture Capture) Option {
	return func(e *Emulator) {
		e.capture = capture
	}
}

func checkProbability(p float64) {
	runtimex.PanicIfFalse(p >= 0 && p <= 1, "emulator: probability out of [0, 1]")
}
