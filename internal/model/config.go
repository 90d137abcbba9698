package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/ooni/minisr/internal/runtimex"
)

const (
	// WINDOW_SIZE is the default number of packets the sender may keep
	// outstanding, and the receiver may buffer, at any given moment.
	WINDOW_SIZE = 6

	// SEQ_SPACE is the default size of the modular sequence space. It must be
	// at least twice the window size.
	SEQ_SPACE = 2 * WINDOW_SIZE

	// TIMER_INTERVAL is the default retransmission timeout. The emulator maps
	// one time unit to one millisecond, so this is an RTT of 16 units.
	TIMER_INTERVAL = 16 * time.Millisecond
)

// RetransmitPolicy selects what the sender resends when its single timer expires.
type RetransmitPolicy int

const (
	// RetransmitBase resends only the oldest unacknowledged packet.
	RetransmitBase = RetransmitPolicy(iota)

	// RetransmitWindow resends every unacknowledged packet in the window.
	RetransmitWindow
)

// ErrUnknownPolicy is returned when parsing an unknown retransmission policy.
var ErrUnknownPolicy = errors.New("srarq: unknown retransmit policy")

// NewRetransmitPolicyFromString parses "base" or "window".
func NewRetransmitPolicyFromString(s string) (RetransmitPolicy, error) {
	switch s {
	case "base":
		return RetransmitBase, nil
	case "window":
		return RetransmitWindow, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

var _ fmt.Stringer = RetransmitPolicy(0)

// String implements fmt.Stringer
func (p RetransmitPolicy) String() string {
	switch p {
	case RetransmitBase:
		return "base"
	case RetransmitWindow:
		return "window"
	default:
		return "unknown"
	}
}

// Config contains the fixed parameters of a pair of endpoints. The
// parameters are chosen at construction time and never change afterwards.
type Config struct {
	// logger will be used to log events.
	logger Logger

	// if a tracer is provided, it will be used to trace both endpoints.
	tracer Tracer

	windowSize    int
	sequenceSpace int
	timeout       time.Duration
	policy        RetransmitPolicy
}

// NewConfig returns a Config ready to initialize a sender and a receiver. It
// panics if the options violate the sequence space constraints.
func NewConfig(options ...Option) *Config {
	cfg := &Config{
		logger:        log.Log,
		tracer:        &DummyTracer{},
		windowSize:    WINDOW_SIZE,
		sequenceSpace: SEQ_SPACE,
		timeout:       TIMER_INTERVAL,
		policy:        RetransmitBase,
	}
	for _, opt := range options {
		opt(cfg)
	}
	runtimex.PanicIfFalse(cfg.windowSize > 0, "window size must be positive")
	runtimex.PanicIfFalse(cfg.sequenceSpace >= 2*cfg.windowSize, "sequence space must be at least twice the window")
	runtimex.PanicIfFalse(cfg.timeout > 0, "timeout must be positive")
	return cfg
}

// Option is an option you can pass to [NewConfig].
type Option func(config *Config)

// WithLogger configures the passed [Logger].
func WithLogger(logger Logger) Option {
	return func(config *Config) {
		config.logger = logger
	}
}

// WithTracer configures the passed [Tracer].
func WithTracer(tracer Tracer) Option {
	return func(config *Config) {
		config.tracer = tracer
	}
}

// WithWindowSize configures the window size.
func WithWindowSize(size int) Option {
	return func(config *Config) {
		config.windowSize = size
	}
}

// WithSequenceSpace configures the size of the sequence space.
func WithSequenceSpace(size int) Option {
	return func(config *Config) {
		config.sequenceSpace = size
	}
}

// WithTimeout configures the retransmission timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(config *Config) {
		config.timeout = timeout
	}
}

// WithRetransmitPolicy configures the retransmission policy.
func WithRetransmitPolicy(policy RetransmitPolicy) Option {
	return func(config *Config) {
		config.policy = policy
	}
}

// Logger returns the configured logger.
func (c *Config) Logger() Logger {
	return c.logger
}

// Tracer returns the configured tracer.
func (c *Config) Tracer() Tracer {
	return c.tracer
}

// WindowSize returns the window size.
func (c *Config) WindowSize() int {
	return c.windowSize
}

// SequenceSpace returns the size of the sequence space.
func (c *Config) SequenceSpace() int {
	return c.sequenceSpace
}

// Timeout returns the retransmission timeout.
func (c *Config) Timeout() time.Duration {
	return c.timeout
}

// RetransmitPolicy returns the retransmission policy.
func (c *Config) RetransmitPolicy() RetransmitPolicy {
	return c.policy
}
