// Package reliabletransport implements the two endpoints of a Selective-Repeat
// ARQ protocol: a [SenderState] that keeps at most W packets in flight under a
// single retransmission timer, and a [ReceiverState] that buffers out-of-order
// packets and hands payloads to the application strictly in order.
//
// Both endpoints keep one slot per sequence number in a ring of size S, and the
// sequence space must be at least twice the window so that a retransmission of an
// already-delivered packet can never be mistaken for a new one.
//
// The data structures lack mutexes because they are intended to be confined to a
// single goroutine (or to a single-threaded event dispatcher, like the emulator).
// Every operation runs to completion and never blocks: the only way out is the
// [model.Network] collaborator, which is fire-and-forget.
package reliabletransport
