package livenet

import (
	"net"
	"sync"
)

// closeOnceConn is a [net.PacketConn] where the Close method has once semantics.
//
// The zero value is invalid; use [newCloseOnceConn].
type closeOnceConn struct {
	// once ensures we close just once.
	once sync.Once

	// PacketConn is the underlying conn.
	net.PacketConn
}

var _ net.PacketConn = &closeOnceConn{}

// newCloseOnceConn creates a [closeOnceConn].
func newCloseOnceConn(conn net.PacketConn) *closeOnceConn {
	return &closeOnceConn{
		once:       sync.Once{},
		PacketConn: conn,
	}
}

// Close implements net.PacketConn
func (c *closeOnceConn) Close() (err error) {
	c.once.Do(func() {
		err = c.PacketConn.Close()
	})
	return
}
