package srtest

import (
	"time"

	"github.com/ooni/minisr/internal/model"
)

// Transmission is a packet handed to a [RecordingNetwork].
type Transmission struct {
	From   model.Endpoint
	Packet *model.Packet
}

// RecordingNetwork is a [model.Network] that delivers nothing and remembers
// everything, so that tests can drive an endpoint by hand.
type RecordingNetwork struct {
	// Transmitted contains every transmitted packet, in order.
	Transmitted []Transmission

	// Delivered contains every payload handed to the application, in order.
	Delivered []model.Payload

	// Armed tells whether the timer is currently running.
	Armed bool

	// Arms and Disarms count the timer calls.
	Arms    int
	Disarms int

	// Interval is the last interval passed to ArmTimer.
	Interval time.Duration
}

var _ model.Network = &RecordingNetwork{}

// NewRecordingNetwork returns an empty RecordingNetwork.
func NewRecordingNetwork() *RecordingNetwork {
	return &RecordingNetwork{
		Transmitted: []Transmission{},
		Delivered:   []model.Payload{},
	}
}

// Transmit implements model.Network.
func (n *RecordingNetwork) Transmit(from model.Endpoint, packet *model.Packet) {
	n.Transmitted = append(n.Transmitted, Transmission{From: from, Packet: packet})
}

// ArmTimer implements model.Network.
func (n *RecordingNetwork) ArmTimer(endpoint model.Endpoint, interval time.Duration) {
	n.Armed = true
	n.Arms++
	n.Interval = interval
}

// DisarmTimer implements model.Network.
func (n *RecordingNetwork) DisarmTimer(endpoint model.Endpoint) {
	n.Armed = false
	n.Disarms++
}

// DeliverToApplication implements model.Network.
func (n *RecordingNetwork) DeliverToApplication(endpoint model.Endpoint, payload model.Payload) {
	n.Delivered = append(n.Delivered, payload)
}

// SeqNums returns the sequence numbers of the transmitted data packets.
func (n *RecordingNetwork) SeqNums() []int {
	seqs := []int{}
	for _, t := range n.Transmitted {
		if !t.Packet.IsACK() {
			seqs = append(seqs, int(t.Packet.SeqNum))
		}
	}
	return seqs
}

// ACKs returns the acknowledged numbers of the transmitted ACKs.
func (n *RecordingNetwork) ACKs() []int {
	acks := []int{}
	for _, t := range n.Transmitted {
		if t.Packet.IsACK() {
			acks = append(acks, int(t.Packet.ACKNum))
		}
	}
	return acks
}

// DeliveredStrings returns the delivered payloads as strings.
func (n *RecordingNetwork) DeliveredStrings() []string {
	out := []string{}
	for _, p := range n.Delivered {
		out = append(out, p.String())
	}
	return out
}

// Flush forgets the transmitted packets and returns them.
func (n *RecordingNetwork) Flush() []Transmission {
	t := n.Transmitted
	n.Transmitted = []Transmission{}
	return t
}
