package livenet

import (
	"net"
	"sync"

	"github.com/ooni/minisr/internal/runtimex"
	"golang.org/x/exp/rand"
)

// LossyConn is a [net.PacketConn] that loses and corrupts outgoing datagrams
// with the configured probabilities. Use it to exercise retransmissions
// over a loopback socket.
type LossyConn struct {
	net.PacketConn

	loss    float64
	corrupt float64

	// mu protects rng and the counters.
	mu  sync.Mutex
	rng *rand.Rand

	dropped   int
	corrupted int
}

// NewLossyConn wraps conn.
func NewLossyConn(conn net.PacketConn, loss, corrupt float64, seed uint64) *LossyConn {
	runtimex.PanicIfFalse(loss >= 0 && loss < 1, "livenet: loss must be in [0, 1)")
	runtimex.PanicIfFalse(corrupt >= 0 && corrupt < 1, "livenet: corruption must be in [0, 1)")
	return &LossyConn{
		PacketConn: conn,
		loss:       loss,
		corrupt:    corrupt,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// WriteTo implements net.PacketConn. A lost datagram is reported as written.
func (c *LossyConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	c.mu.Lock()
	lose := c.rng.Float64() < c.loss
	mangle := !lose && c.rng.Float64() < c.corrupt
	if lose {
		c.dropped++
	}
	if mangle {
		c.corrupted++
	}
	c.mu.Unlock()

	if lose {
		return len(p), nil
	}
	if mangle && len(p) > 0 {
		data := append([]byte{}, p...)
		data[len(data)-1] ^= 0x20
		n, err := c.PacketConn.WriteTo(data, addr)
		return min(n, len(p)), err
	}
	return c.PacketConn.WriteTo(p, addr)
}

// Counters returns how many datagrams we dropped and corrupted.
func (c *LossyConn) Counters() (dropped, corrupted int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped, c.corrupted
}

var _ net.PacketConn = &LossyConn{}
