// Package livenet runs the selective-repeat endpoints over a real
// [net.PacketConn]. Each endpoint uses two workers: a reader that parses
// incoming datagrams, and an event loop that owns the protocol state and
// serializes packets, timer expirations and application requests.
package livenet

import (
	"errors"
	"net"
	"time"

	"github.com/ooni/minisr/internal/model"
	"github.com/ooni/minisr/internal/workers"
)

// ErrClosed is returned by operations on a closed endpoint.
var ErrClosed = errors.New("livenet: endpoint closed")

// READ_BUFFER_SIZE is large enough for any datagram we expect.
const READ_BUFFER_SIZE = 1 << 10

// datagram is a parsed packet with its source address.
type datagram struct {
	packet *model.Packet
	addr   net.Addr
}

// endpoint contains what the sender and the receiver have in common: the
// socket, the reader worker and the timer. All the methods implementing
// [model.Network] run in the event loop goroutine.
type endpoint struct {
	logger  model.Logger
	side    model.Endpoint
	conn    net.PacketConn
	peer    net.Addr
	manager *workers.Manager

	// incoming carries parsed packets from the reader to the event loop.
	incoming chan *datagram

	// timer is the retransmission timer, stopped when not armed.
	timer *time.Timer
}

func newEndpoint(logger model.Logger, side model.Endpoint, conn net.PacketConn, peer net.Addr) *endpoint {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	return &endpoint{
		logger:   logger,
		side:     side,
		conn:     newCloseOnceConn(conn),
		peer:     peer,
		manager:  workers.NewManager(logger),
		incoming: make(chan *datagram, 64),
		timer:    timer,
	}
}

// readWorker reads datagrams until the socket is closed.
func (ep *endpoint) readWorker() {
	workerName := ep.side.String() + ": readWorker"

	defer func() {
		ep.manager.OnWorkerDone(workerName)
		ep.manager.StartShutdown()
	}()

	buf := make([]byte, READ_BUFFER_SIZE)
	for {
		n, addr, err := ep.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-ep.manager.ShouldShutdown():
			default:
				ep.logger.Warnf("%s: ReadFrom: %s", workerName, err.Error())
			}
			return
		}
		packet, err := model.ParsePacket(buf[:n])
		if err != nil {
			ep.logger.Warnf("%s: ParsePacket: %s", workerName, err.Error())
			continue
		}
		select {
		case ep.incoming <- &datagram{packet: packet, addr: addr}:
		case <-ep.manager.ShouldShutdown():
			return
		}
	}
}

// close stops the workers and closes the socket.
func (ep *endpoint) close() error {
	ep.manager.StartShutdown()
	err := ep.conn.Close()
	ep.manager.WaitWorkersShutdown()
	ep.stopTimer()
	return err
}

// Transmit implements model.Network.
func (ep *endpoint) Transmit(from model.Endpoint, packet *model.Packet) {
	if ep.peer == nil {
		ep.logger.Warnf("%s: no peer address yet, dropping %s", ep.side, packet)
		return
	}
	if _, err := ep.conn.WriteTo(packet.Bytes(), ep.peer); err != nil {
		ep.logger.Warnf("%s: WriteTo: %s", ep.side, err.Error())
	}
}

// ArmTimer implements model.Network.
func (ep *endpoint) ArmTimer(_ model.Endpoint, interval time.Duration) {
	ep.stopTimer()
	ep.timer.Reset(interval)
}

// DisarmTimer implements model.Network.
func (ep *endpoint) DisarmTimer(model.Endpoint) {
	ep.stopTimer()
}

// stopTimer stops the timer and drains a pending expiration.
func (ep *endpoint) stopTimer() {
	if !ep.timer.Stop() {
		select {
		case <-ep.timer.C:
		default:
		}
	}
}
