package reliabletransport

import (
	"github.com/ooni/minisr/internal/model"
)

// ReceiverState is the receiving endpoint (B). It owns the incoming ring of S
// slots, a presence bitmap and the base of the receive window.
// Please use the constructor [NewReceiverState].
type ReceiverState struct {
	// logger is the logger to use
	logger model.Logger

	// tracer observes packets and deliveries.
	tracer model.Tracer

	// network is where we transmit ACKs and deliver payloads.
	network model.Network

	// window holds base (the next sequence number the application expects), W and S.
	window window

	// slots is the ring of buffered payloads, indexed by sequence number.
	slots []receiverSlot

	// stats contains the receiver counters.
	stats ReceiverStats
}

// NewReceiverState returns a receiver expecting sequence number zero.
func NewReceiverState(config *model.Config, network model.Network) *ReceiverState {
	return &ReceiverState{
		logger:  config.Logger(),
		tracer:  config.Tracer(),
		network: network,
		window:  newWindow(config.WindowSize(), config.SequenceSpace()),
		slots:   make([]receiverSlot, config.SequenceSpace()),
		stats:   ReceiverStats{},
	}
}

// Base returns the next sequence number the application expects.
func (r *ReceiverState) Base() model.SeqNum {
	return r.window.base
}

// Stats returns a copy of the receiver counters.
func (r *ReceiverState) Stats() ReceiverStats {
	return r.stats
}

// Receive processes a data packet. Corrupted packets are dropped without an ACK.
// Any other valid packet is acknowledged, even when it is a duplicate or lies
// outside the window, because that ACK is the only way to recover a sender whose
// first ACK was lost. In-window packets are buffered once and then delivered
// in order, stopping at the first gap.
func (r *ReceiverState) Receive(packet *model.Packet) {
	r.tracer.OnIncomingPacket(model.EndpointB, packet)
	packet.Log(r.logger, model.DirectionIncoming)
	r.stats.Received++

	if packet.IsCorrupted() {
		r.stats.Corrupted++
		r.drop(model.DropCorrupted, packet)
		return
	}
	if !r.window.valid(packet.SeqNum) {
		r.stats.Malformed++
		r.drop(model.DropMalformed, packet)
		return
	}

	r.sendACK(packet.SeqNum)

	if !r.window.contains(packet.SeqNum) {
		r.stats.OutOfWindow++
		r.drop(model.DropOutOfWindow, packet)
		return
	}

	slot := &r.slots[packet.SeqNum]
	if slot.present {
		r.stats.Duplicates++
		r.drop(model.DropDuplicate, packet)
		return
	}
	slot.present = true
	slot.payload = packet.Payload

	r.deliver()
}

// deliver hands every contiguous buffered payload starting at base to the application.
func (r *ReceiverState) deliver() {
	for r.slots[r.window.base].present {
		seq := r.window.base
		slot := &r.slots[seq]
		r.network.DeliverToApplication(model.EndpointB, slot.payload)
		r.tracer.OnDelivered(model.EndpointB, seq, slot.payload)
		r.stats.Delivered++
		r.logger.Debugf("receiver: delivered packet %d", seq)
		slot.reset()
		r.window.slide()
	}
}

func (r *ReceiverState) sendACK(seq model.SeqNum) {
	ack := model.NewACKPacket(seq)
	ack.Log(r.logger, model.DirectionOutgoing)
	r.tracer.OnOutgoingPacket(model.EndpointB, ack, false)
	r.stats.ACKsSent++
	r.network.Transmit(model.EndpointB, ack)
}

func (r *ReceiverState) drop(reason model.DropReason, packet *model.Packet) {
	r.logger.Debugf("receiver: dropping packet %d (%s)", packet.SeqNum, reason)
	r.tracer.OnDroppedPacket(model.EndpointB, reason, packet)
}
