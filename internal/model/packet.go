package model

//
// Packet
//
// Building, checking, parsing and serializing selective-repeat packets.
//

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// SeqNum is a sequence number in the modular sequence space.
type SeqNum int32

// UnusedField is the marker we put in the acknowledgement number of a data
// packet and in the sequence number of an ACK. It is never a valid sequence number.
const UnusedField = SeqNum(-1)

// PayloadSize is the fixed size of the payload carried by each packet.
const PayloadSize = 20

// WireSize is the size of a serialized packet: three big-endian 32-bit
// header fields (seqnum, acknum, checksum) followed by the payload.
const WireSize = 12 + PayloadSize

// ackFiller is the byte we use to fill the payload of an ACK.
const ackFiller = '0'

// Payload is the fixed-size block of application data carried by a packet.
type Payload [PayloadSize]byte

// NewPayload copies at most [PayloadSize] bytes from b into a new Payload. Shorter
// inputs are zero-padded.
func NewPayload(b []byte) Payload {
	var p Payload
	copy(p[:], b)
	return p
}

// String returns the payload bytes as a string.
func (p Payload) String() string {
	return string(p[:])
}

// Message is a fixed-size message produced or consumed by the application layer.
type Message struct {
	Data Payload
}

// NewMessage returns a message whose payload is built with [NewPayload].
func NewMessage(b []byte) Message {
	return Message{Data: NewPayload(b)}
}

// Packet is a selective-repeat packet. Data packets travel from A to B and carry
// [UnusedField] as ACKNum; ACKs travel from B to A and carry [UnusedField] as SeqNum.
type Packet struct {
	// SeqNum is the sequence number of a data packet.
	SeqNum SeqNum

	// ACKNum is the sequence number acknowledged by an ACK.
	ACKNum SeqNum

	// Payload is the fixed-size payload.
	Payload Payload

	// Checksum is the additive checksum computed by the sender of this packet.
	Checksum int32
}

// NewDataPacket returns a sealed data packet for the given sequence number.
func NewDataPacket(seq SeqNum, payload Payload) *Packet {
	p := &Packet{
		SeqNum:  seq,
		ACKNum:  UnusedField,
		Payload: payload,
	}
	p.Seal()
	return p
}

// NewACKPacket returns a sealed ACK for the given sequence number.
func NewACKPacket(ack SeqNum) *Packet {
	p := &Packet{
		SeqNum: UnusedField,
		ACKNum: ack,
	}
	for i := range p.Payload {
		p.Payload[i] = ackFiller
	}
	p.Seal()
	return p
}

// IsACK returns true when this packet acknowledges a data packet.
func (p *Packet) IsACK() bool {
	return p.SeqNum == UnusedField
}

// ComputeChecksum returns the sum of the header fields and of every payload byte,
// each byte read as an unsigned value. This is a weak check that only catches
// the corruption injected by a simulated link.
func (p *Packet) ComputeChecksum() int32 {
	sum := int32(p.SeqNum) + int32(p.ACKNum)
	for _, b := range p.Payload {
		sum += int32(b)
	}
	return sum
}

// Seal stores the computed checksum into the packet.
func (p *Packet) Seal() {
	p.Checksum = p.ComputeChecksum()
}

// IsCorrupted returns true when the carried checksum does not match the packet content.
func (p *Packet) IsCorrupted() bool {
	return p.Checksum != p.ComputeChecksum()
}

// Clone returns a deep copy of the packet.
func (p *Packet) Clone() *Packet {
	c := *p
	return &c
}

// ErrPacketTooShort indicates that a packet is too short.
var ErrPacketTooShort = errors.New("srarq: packet too short")

// ErrParsePacket is a generic packet parse error which may be further qualified.
var ErrParsePacket = errors.New("srarq: packet parse error")

// ParsePacket produces a packet from its wire representation. It does not
// verify the checksum: callers drop corrupted packets with [Packet.IsCorrupted].
func ParsePacket(buf []byte) (*Packet, error) {
	if len(buf) < WireSize {
		return nil, ErrPacketTooShort
	}
	if len(buf) > WireSize {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrParsePacket, len(buf)-WireSize)
	}
	p := &Packet{
		SeqNum:   SeqNum(int32(binary.BigEndian.Uint32(buf[0:4]))),
		ACKNum:   SeqNum(int32(binary.BigEndian.Uint32(buf[4:8]))),
		Checksum: int32(binary.BigEndian.Uint32(buf[8:12])),
	}
	copy(p.Payload[:], buf[12:])
	return p, nil
}

// Bytes returns a byte array that is ready to be sent on the wire.
func (p *Packet) Bytes() []byte {
	buf := make([]byte, 0, WireSize)
	buf = binary.BigEndian.AppendUint32(buf, uint32(p.SeqNum))
	buf = binary.BigEndian.AppendUint32(buf, uint32(p.ACKNum))
	buf = binary.BigEndian.AppendUint32(buf, uint32(p.Checksum))
	return append(buf, p.Payload[:]...)
}

// String implements fmt.Stringer.
func (p *Packet) String() string {
	if p.IsACK() {
		return fmt.Sprintf("{ACK acknum=%d checksum=%d}", p.ACKNum, p.Checksum)
	}
	return fmt.Sprintf("{DATA seqnum=%d checksum=%d payload=%q}", p.SeqNum, p.Checksum, p.Payload.String())
}

// Log writes an entry in the passed logger with a representation of this packet.
func (p *Packet) Log(logger Logger, direction Direction) {
	var dir string
	switch direction {
	case DirectionIncoming:
		dir = "<"
	case DirectionOutgoing:
		dir = ">"
	default:
		logger.Warnf("wrong direction: %d", direction)
		return
	}
	logger.Debugf("%s %s", dir, p)
}
