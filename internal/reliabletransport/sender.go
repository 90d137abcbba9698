package reliabletransport

import (
	"time"

	"github.com/ooni/minisr/internal/model"
	"github.com/ooni/minisr/internal/runtimex"
)

// SenderState is the sending endpoint (A). It owns the outgoing ring of S slots,
// the [base, next) window of outstanding packets and a single logical timer.
// Please use the constructor [NewSenderState].
type SenderState struct {
	// logger is the logger to use
	logger model.Logger

	// tracer observes packets and timer changes.
	tracer model.Tracer

	// network is where we transmit packets and arm the timer.
	network model.Network

	// window holds base, W and S.
	window window

	// next is the next unused sequence number.
	next model.SeqNum

	// slots is the ring of outgoing packets, indexed by sequence number.
	slots []senderSlot

	// timeout is the retransmission interval.
	timeout time.Duration

	// policy selects what we resend when the timer fires.
	policy model.RetransmitPolicy

	// timerArmed tracks whether we asked the network to run our timer.
	timerArmed bool

	// stats contains the sender counters.
	stats SenderStats
}

// NewSenderState returns a sender with an empty window.
func NewSenderState(config *model.Config, network model.Network) *SenderState {
	return &SenderState{
		logger:     config.Logger(),
		tracer:     config.Tracer(),
		network:    network,
		window:     newWindow(config.WindowSize(), config.SequenceSpace()),
		next:       0,
		slots:      make([]senderSlot, config.SequenceSpace()),
		timeout:    config.Timeout(),
		policy:     config.RetransmitPolicy(),
		timerArmed: false,
		stats:      SenderStats{},
	}
}

// Outstanding returns the number of packets sent and not yet slid past.
func (s *SenderState) Outstanding() int {
	return s.window.offset(s.next)
}

// Base returns the oldest unacknowledged sequence number.
func (s *SenderState) Base() model.SeqNum {
	return s.window.base
}

// Next returns the sequence number the next submitted message will use.
func (s *SenderState) Next() model.SeqNum {
	return s.next
}

// TimerArmed returns whether the retransmission timer is running.
func (s *SenderState) TimerArmed() bool {
	return s.timerArmed
}

// Stats returns a copy of the sender counters.
func (s *SenderState) Stats() SenderStats {
	return s.stats
}

// Submit builds a packet for msg, buffers it and transmits it. When W packets are
// already outstanding it returns [ErrWindowFull] and leaves the state untouched.
func (s *SenderState) Submit(msg model.Message) error {
	if s.Outstanding() >= s.window.size {
		s.stats.WindowFull++
		s.logger.Debugf("sender: window full (base=%d next=%d), rejecting message", s.window.base, s.next)
		return ErrWindowFull
	}

	packet := model.NewDataPacket(s.next, msg.Data)
	slot := &s.slots[s.next]
	runtimex.Assert(slot.state == slotUnsent, "sender: reusing a slot that is still in use")
	slot.packet = packet
	slot.state = slotInFlight
	slot.retries = 0

	s.transmit(packet, false)
	s.stats.Submitted++

	// the window was empty: this packet is the one the timer must guard
	if s.next == s.window.base {
		s.armTimer()
	}
	s.next = s.window.successor(s.next)

	outstanding := s.Outstanding()
	runtimex.Assert(outstanding <= s.window.size, "sender: too many packets in flight")
	if outstanding > s.stats.MaxOutstanding {
		s.stats.MaxOutstanding = outstanding
	}
	return nil
}

// Acknowledge processes an ACK. Corrupted, malformed, stale and future ACKs are
// dropped; a new ACK marks its slot and slides base over the contiguous run of
// acknowledged slots, stopping at the first gap.
func (s *SenderState) Acknowledge(ack *model.Packet) {
	s.tracer.OnIncomingPacket(model.EndpointA, ack)
	ack.Log(s.logger, model.DirectionIncoming)

	if ack.IsCorrupted() {
		s.stats.CorruptedACKs++
		s.drop(model.DropCorrupted, ack)
		return
	}
	if !s.window.valid(ack.ACKNum) {
		s.stats.MalformedACKs++
		s.drop(model.DropMalformed, ack)
		return
	}

	// an ACK beyond next is as stale as one behind base: we never sent that packet
	if offset := s.window.offset(ack.ACKNum); offset >= s.window.size || offset >= s.Outstanding() {
		s.stats.OutOfWindowACKs++
		s.drop(model.DropOutOfWindow, ack)
		return
	}

	slot := &s.slots[ack.ACKNum]
	if slot.state == slotAcknowledged {
		s.stats.DuplicateACKs++
		s.drop(model.DropDuplicate, ack)
		return
	}
	runtimex.Assert(slot.state == slotInFlight, "sender: ACK for a slot that was never sent")
	slot.state = slotAcknowledged
	s.stats.NewACKs++
	s.logger.Debugf("sender: ACK %d is new", ack.ACKNum)

	for s.window.base != s.next && s.slots[s.window.base].state == slotAcknowledged {
		s.slots[s.window.base].reset()
		s.window.slide()
	}
	s.logger.Debugf("sender: base=%d next=%d outstanding=%d", s.window.base, s.next, s.Outstanding())

	s.disarmTimer()
	if s.window.base != s.next {
		s.armTimer()
	}
}

// TimerFire resends according to the configured [model.RetransmitPolicy] and
// rearms the timer. With nothing outstanding it does nothing.
func (s *SenderState) TimerFire() {
	s.timerArmed = false
	s.stats.TimerFires++
	s.tracer.OnTimer(model.EndpointA, model.TimerFired)

	if s.window.base == s.next {
		s.stats.SpuriousTimerFires++
		s.logger.Debug("sender: timer fired with nothing outstanding")
		return
	}

	switch s.policy {
	case model.RetransmitWindow:
		rearmed := false
		for seq := s.window.base; seq != s.next; seq = s.window.successor(seq) {
			if s.slots[seq].state != slotInFlight {
				continue
			}
			s.retransmit(seq)
			if !rearmed {
				s.armTimer()
				rearmed = true
			}
		}

	default:
		s.retransmit(s.window.base)
		s.armTimer()
	}
}

// retransmit resends the packet buffered at seq.
func (s *SenderState) retransmit(seq model.SeqNum) {
	slot := &s.slots[seq]
	runtimex.Assert(slot.state == slotInFlight, "sender: retransmitting a packet that is not in flight")
	slot.retries++
	s.stats.Retransmissions++
	s.logger.Infof("sender: timeout, resending packet %d (attempt %d)", seq, slot.retries+1)
	s.transmit(slot.packet, true)
}

// transmit hands a copy of the packet to the network, so that whatever the
// link does to it cannot alter our buffer.
func (s *SenderState) transmit(packet *model.Packet, retransmission bool) {
	packet.Log(s.logger, model.DirectionOutgoing)
	s.tracer.OnOutgoingPacket(model.EndpointA, packet, retransmission)
	s.network.Transmit(model.EndpointA, packet.Clone())
}

// armTimer restarts the timer. Arming is disarm-then-arm so that a stale
// expiration cannot survive a restart.
func (s *SenderState) armTimer() {
	s.disarmTimer()
	s.network.ArmTimer(model.EndpointA, s.timeout)
	s.timerArmed = true
	s.tracer.OnTimer(model.EndpointA, model.TimerArmed)
}

// disarmTimer stops the timer if it is running.
func (s *SenderState) disarmTimer() {
	if !s.timerArmed {
		return
	}
	s.network.DisarmTimer(model.EndpointA)
	s.timerArmed = false
	s.tracer.OnTimer(model.EndpointA, model.TimerDisarmed)
}

func (s *SenderState) drop(reason model.DropReason, packet *model.Packet) {
	s.logger.Debugf("sender: dropping ACK %d (%s)", packet.ACKNum, reason)
	s.tracer.OnDroppedPacket(model.EndpointA, reason, packet)
}
