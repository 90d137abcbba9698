package reliabletransport

import (
	"fmt"

	"github.com/ooni/minisr/internal/model"
)

// slotState is the acknowledgement state of a sender slot.
type slotState int

const (
	// slotUnsent means the slot is free for the next submitted message.
	slotUnsent = slotState(iota)

	// slotInFlight means the packet has been sent and is waiting for its ACK.
	slotInFlight

	// slotAcknowledged means the ACK arrived but base has not slid past it yet.
	slotAcknowledged
)

var _ fmt.Stringer = slotState(0)

// String implements fmt.Stringer
func (s slotState) String() string {
	switch s {
	case slotUnsent:
		return "unsent"
	case slotInFlight:
		return "in_flight"
	case slotAcknowledged:
		return "acknowledged"
	default:
		return "unknown"
	}
}

// senderSlot buffers an outgoing packet until base slides past it.
type senderSlot struct {
	// packet is the packet we built on submit, kept for retransmission.
	packet *model.Packet

	// state is the acknowledgement state.
	state slotState

	// retries counts how many times we resent this packet.
	retries int
}

// reset makes the slot reusable.
func (s *senderSlot) reset() {
	s.packet = nil
	s.state = slotUnsent
	s.retries = 0
}

// receiverSlot buffers an incoming payload until it can be delivered in order.
type receiverSlot struct {
	// present is set once a valid in-window packet arrived for this slot.
	present bool

	// payload is the buffered payload.
	payload model.Payload
}

// reset makes the slot reusable.
func (s *receiverSlot) reset() {
	s.present = false
	s.payload = model.Payload{}
}

// SenderStats contains the counters kept by a [SenderState].
type SenderStats struct {
	// Submitted counts the messages accepted by Submit.
	Submitted int

	// WindowFull counts the messages rejected with [ErrWindowFull].
	WindowFull int

	// Retransmissions counts every single packet resent on timeout, whatever the policy.
	Retransmissions int

	// NewACKs counts ACKs that acknowledged an in-flight packet.
	NewACKs int

	// DuplicateACKs counts ACKs for packets already acknowledged in the window.
	DuplicateACKs int

	// OutOfWindowACKs counts stale or future ACKs.
	OutOfWindowACKs int

	// CorruptedACKs counts ACKs dropped because of a checksum mismatch.
	CorruptedACKs int

	// MalformedACKs counts uncorrupted ACKs carrying an invalid acknum.
	MalformedACKs int

	// TimerFires counts timer expirations, including spurious ones.
	TimerFires int

	// SpuriousTimerFires counts expirations with nothing outstanding.
	SpuriousTimerFires int

	// MaxOutstanding is the highest number of outstanding packets ever observed.
	MaxOutstanding int
}

// ReceiverStats contains the counters kept by a [ReceiverState].
type ReceiverStats struct {
	// Received counts every packet handed to Receive.
	Received int

	// Corrupted counts packets dropped because of a checksum mismatch.
	Corrupted int

	// Malformed counts uncorrupted packets carrying an invalid seqnum.
	Malformed int

	// ACKsSent counts the ACKs we transmitted.
	ACKsSent int

	// OutOfWindow counts packets outside the receive window (typically already delivered).
	OutOfWindow int

	// Duplicates counts in-window packets that were already buffered.
	Duplicates int

	// Delivered counts payloads handed to the application.
	Delivered int
}
