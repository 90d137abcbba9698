package livenet

import (
	"context"
	"net"

	"github.com/ooni/minisr/internal/model"
	"github.com/ooni/minisr/internal/reliabletransport"
)

// submitRequest asks the event loop to submit a message.
type submitRequest struct {
	msg    model.Message
	result chan error
}

// Sender is a [reliabletransport.SenderState] driven by a socket.
type Sender struct {
	*endpoint

	state *reliabletransport.SenderState

	// submits carries application messages to the event loop.
	submits chan *submitRequest

	// queries carries requests for the number of outstanding packets.
	queries chan chan int
}

var _ model.Network = &Sender{}

// NewSender starts a sender transmitting to peer over conn. The sender owns
// conn and closes it in [Sender.Close].
func NewSender(config *model.Config, conn net.PacketConn, peer net.Addr) *Sender {
	s := &Sender{
		endpoint: newEndpoint(config.Logger(), model.EndpointA, conn, peer),
		submits:  make(chan *submitRequest),
		queries:  make(chan chan int),
	}
	s.state = reliabletransport.NewSenderState(config, s)
	s.manager.StartWorker("A: readWorker", s.readWorker)
	s.manager.StartWorker("A: loopWorker", s.loopWorker)
	return s
}

// Submit hands msg to the sender. It returns [reliabletransport.ErrWindowFull]
// when the window is full, and [ErrClosed] after Close.
func (s *Sender) Submit(ctx context.Context, msg model.Message) error {
	req := &submitRequest{msg: msg, result: make(chan error, 1)}
	select {
	case s.submits <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.manager.ShouldShutdown():
		return ErrClosed
	}
	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.manager.ShouldShutdown():
		return ErrClosed
	}
}

// Outstanding returns the number of packets not yet acknowledged.
func (s *Sender) Outstanding(ctx context.Context) (int, error) {
	result := make(chan int, 1)
	select {
	case s.queries <- result:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.manager.ShouldShutdown():
		return 0, ErrClosed
	}
	select {
	case n := <-result:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.manager.ShouldShutdown():
		return 0, ErrClosed
	}
}

// Stats returns the sender counters. Call it only after Close.
func (s *Sender) Stats() reliabletransport.SenderStats {
	return s.state.Stats()
}

// Close stops the workers and closes the socket.
func (s *Sender) Close() error {
	return s.close()
}

// loopWorker owns the sender state.
func (s *Sender) loopWorker() {
	workerName := "A: loopWorker"

	defer func() {
		s.manager.OnWorkerDone(workerName)
		s.manager.StartShutdown()
	}()

	for {
		select {
		case req := <-s.submits:
			req.result <- s.state.Submit(req.msg)

		case result := <-s.queries:
			result <- s.state.Outstanding()

		case dg := <-s.incoming:
			s.state.Acknowledge(dg.packet)

		case <-s.timer.C:
			s.state.TimerFire()

		case <-s.manager.ShouldShutdown():
			return
		}
	}
}

// DeliverToApplication implements model.Network.
func (s *Sender) DeliverToApplication(model.Endpoint, model.Payload) {
	s.logger.Warn("A: the sender does not deliver payloads")
}
