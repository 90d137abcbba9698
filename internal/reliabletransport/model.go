package reliabletransport

import (
	"github.com/ooni/minisr/internal/model"
)

// Sender is the set of events a sending endpoint reacts to.
type Sender interface {
	// Submit accepts a message from the application, or returns [ErrWindowFull].
	Submit(msg model.Message) error

	// Acknowledge processes an ACK arriving from the network.
	Acknowledge(ack *model.Packet)

	// TimerFire processes the expiration of the retransmission timer.
	TimerFire()
}

// Receiver is the set of events a receiving endpoint reacts to.
type Receiver interface {
	// Receive processes a data packet arriving from the network.
	Receive(packet *model.Packet)
}

var (
	_ Sender   = &SenderState{}
	_ Receiver = &ReceiverState{}
)
