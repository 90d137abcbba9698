package livenet

import (
	"net"

	"github.com/ooni/minisr/internal/model"
	"github.com/ooni/minisr/internal/reliabletransport"
)

// Receiver is a [reliabletransport.ReceiverState] driven by a socket. It
// acknowledges to the address the last data packet came from.
type Receiver struct {
	*endpoint

	state *reliabletransport.ReceiverState

	// deliveries carries in-order payloads to the application.
	deliveries chan model.Payload
}

var _ model.Network = &Receiver{}

// NewReceiver starts a receiver reading from conn. The receiver owns conn and
// closes it in [Receiver.Close].
func NewReceiver(config *model.Config, conn net.PacketConn) *Receiver {
	r := &Receiver{
		endpoint:   newEndpoint(config.Logger(), model.EndpointB, conn, nil),
		deliveries: make(chan model.Payload, config.SequenceSpace()),
	}
	r.state = reliabletransport.NewReceiverState(config, r)
	r.manager.StartWorker("B: readWorker", r.readWorker)
	r.manager.StartWorker("B: loopWorker", r.loopWorker)
	return r
}

// Deliveries returns the channel where payloads are posted in order.
func (r *Receiver) Deliveries() <-chan model.Payload {
	return r.deliveries
}

// Stats returns the receiver counters. Call it only after Close.
func (r *Receiver) Stats() reliabletransport.ReceiverStats {
	return r.state.Stats()
}

// Close stops the workers and closes the socket.
func (r *Receiver) Close() error {
	return r.close()
}

// loopWorker owns the receiver state.
func (r *Receiver) loopWorker() {
	workerName := "B: loopWorker"

	defer func() {
		r.manager.OnWorkerDone(workerName)
		r.manager.StartShutdown()
	}()

	for {
		select {
		case dg := <-r.incoming:
			r.peer = dg.addr
			r.state.Receive(dg.packet)

		case <-r.manager.ShouldShutdown():
			return
		}
	}
}

// DeliverToApplication implements model.Network. It blocks while the
// application is not reading, which in turn stops the receiver from
// processing more packets.
func (r *Receiver) DeliverToApplication(_ model.Endpoint, payload model.Payload) {
	select {
	case r.deliveries <- payload:
	case <-r.manager.ShouldShutdown():
	}
}
