package model

import (
	"fmt"
	"time"
)

// DropReason explains why an endpoint (or the link) discarded a packet.
type DropReason int

const (
	// DropCorrupted is used when the checksum does not match.
	DropCorrupted = DropReason(iota)

	// DropMalformed is used when a header field is outside the sequence space.
	DropMalformed

	// DropOutOfWindow is used for stale or future sequence numbers.
	DropOutOfWindow

	// DropDuplicate is used for packets we have already buffered or acknowledged.
	DropDuplicate

	// DropLost is used by emulated links when they lose a packet.
	DropLost
)

var _ fmt.Stringer = DropReason(0)

// String implements fmt.Stringer
func (r DropReason) String() string {
	switch r {
	case DropCorrupted:
		return "corrupted"
	case DropMalformed:
		return "malformed"
	case DropOutOfWindow:
		return "out_of_window"
	case DropDuplicate:
		return "duplicate"
	case DropLost:
		return "lost"
	default:
		return "unknown"
	}
}

// Tracer observes the events happening at both endpoints. A Tracer can be
// optionally added to the [Config], and it will be called by the sender, the
// receiver and the emulator.
type Tracer interface {
	// OnOutgoingPacket is called when a packet is handed to the network.
	OnOutgoingPacket(endpoint Endpoint, packet *Packet, retransmission bool)

	// OnIncomingPacket is called when a packet reaches an endpoint.
	OnIncomingPacket(endpoint Endpoint, packet *Packet)

	// OnDroppedPacket is called whenever a packet is discarded.
	OnDroppedPacket(endpoint Endpoint, reason DropReason, packet *Packet)

	// OnDelivered is called when the receiver hands a payload to the application.
	OnDelivered(endpoint Endpoint, seq SeqNum, payload Payload)

	// OnTimer is called when the sender timer is armed, disarmed or fires.
	OnTimer(endpoint Endpoint, event TimerEvent)
}

// TimerEvent is a change in the state of the sender timer.
type TimerEvent int

const (
	// TimerArmed means the timer has been started.
	TimerArmed = TimerEvent(iota)

	// TimerDisarmed means the timer has been stopped.
	TimerDisarmed

	// TimerFired means the timer expired.
	TimerFired
)

var _ fmt.Stringer = TimerEvent(0)

// String implements fmt.Stringer
func (e TimerEvent) String() string {
	switch e {
	case TimerArmed:
		return "armed"
	case TimerDisarmed:
		return "disarmed"
	case TimerFired:
		return "fired"
	default:
		return "unknown"
	}
}

// Clock tells the current time. The emulator provides a virtual one.
type Clock interface {
	Now() time.Time
}

// SystemClock is a [Clock] backed by [time.Now].
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// DummyTracer is a no-op implementation of [Tracer] that does nothing
// but can be safely passed as a default implementation.
type DummyTracer struct{}

var _ Tracer = &DummyTracer{}

// OnOutgoingPacket implements Tracer.
func (dt *DummyTracer) OnOutgoingPacket(Endpoint, *Packet, bool) {}

// OnIncomingPacket implements Tracer.
func (dt *DummyTracer) OnIncomingPacket(Endpoint, *Packet) {}

// OnDroppedPacket implements Tracer.
func (dt *DummyTracer) OnDroppedPacket(Endpoint, DropReason, *Packet) {}

// OnDelivered implements Tracer.
func (dt *DummyTracer) OnDelivered(Endpoint, SeqNum, Payload) {}

// OnTimer implements Tracer.
func (dt *DummyTracer) OnTimer(Endpoint, TimerEvent) {}
