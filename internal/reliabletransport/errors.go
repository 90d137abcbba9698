package reliabletransport

import "errors"

// ErrWindowFull is returned by [SenderState.Submit] when W packets are already
// outstanding. It is a flow-control signal: the caller decides whether to retry
// later or to drop the message.
var ErrWindowFull = errors.New("srarq: window full")
