package model

import (
	"fmt"
	"time"
)

// Endpoint identifies one of the two sides of the simulated link.
type Endpoint int

const (
	// EndpointA is the sending side.
	EndpointA = Endpoint(iota)

	// EndpointB is the receiving side.
	EndpointB
)

var _ fmt.Stringer = Endpoint(0)

// String implements fmt.Stringer
func (e Endpoint) String() string {
	switch e {
	case EndpointA:
		return "A"
	case EndpointB:
		return "B"
	default:
		return "?"
	}
}

// Peer returns the endpoint at the other side of the link.
func (e Endpoint) Peer() Endpoint {
	if e == EndpointA {
		return EndpointB
	}
	return EndpointA
}

// Network is the collaborator that moves packets between endpoints, runs
// the sender timer and hands payloads to the application. An emulator or a
// real socket transport implements it. Implementations may lose, corrupt,
// delay, reorder or duplicate transmitted packets.
type Network interface {
	// Transmit sends a packet from the given endpoint to its peer. It
	// never blocks and never reports an error.
	Transmit(from Endpoint, packet *Packet)

	// ArmTimer starts the endpoint timer, which fires once after interval.
	ArmTimer(endpoint Endpoint, interval time.Duration)

	// DisarmTimer stops the endpoint timer. A disarmed timer never fires.
	DisarmTimer(endpoint Endpoint)

	// DeliverToApplication hands an in-order payload to the application.
	DeliverToApplication(endpoint Endpoint, payload Payload)
}

// Direction is one of two directions on a packet.
type Direction int

const (
	// DirectionIncoming marks received packets.
	DirectionIncoming = Direction(iota)

	// DirectionOutgoing marks packets to be sent.
	DirectionOutgoing
)

var _ fmt.Stringer = Direction(0)

// String implements fmt.Stringer
func (d Direction) String() string {
	switch d {
	case DirectionIncoming:
		return "recv"
	case DirectionOutgoing:
		return "send"
	default:
		return "undefined"
	}
}
