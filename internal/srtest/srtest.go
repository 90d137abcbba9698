// Package srtest provides utilities for selective-repeat testing.
package srtest

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ooni/minisr/internal/model"
)

// MessageFor returns the message the emulator would generate for the i-th
// submission: PayloadSize copies of 'a'+(i mod 26).
func MessageFor(i int) model.Message {
	return model.Message{Data: PayloadFor(i)}
}

// PayloadFor returns the payload of [MessageFor].
func PayloadFor(i int) model.Payload {
	c := byte('a' + i%26)
	return model.NewPayload(bytes.Repeat([]byte{c}, model.PayloadSize))
}

// Messages returns the first n messages produced by [MessageFor].
func Messages(n int) []model.Message {
	msgs := make([]model.Message, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, MessageFor(i))
	}
	return msgs
}

var errBadTestPacket = errors.New("wrong test packet string")

// NewTestPacketFromString parses the compact representation of a packet used in
// tests. The string is in the form:
//
//	"[ID] DATA"          a sealed data packet with seqnum ID and the payload of MessageFor(ID)
//	"[ID] ACK"           a sealed ACK for ID
//	"[ID] DATA corrupt"  the same packet with a mangled payload byte
func NewTestPacketFromString(s string) (*model.Packet, error) {
	parts := strings.Fields(s)
	if len(parts) < 2 || len(parts) > 3 {
		return nil, fmt.Errorf("%w: %s", errBadTestPacket, s)
	}

	id, err := strconv.Atoi(strings.Trim(parts[0], "[]"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse id: %v", err)
	}

	var p *model.Packet
	switch parts[1] {
	case "DATA":
		p = model.NewDataPacket(model.SeqNum(id), PayloadFor(id))
	case "ACK":
		p = model.NewACKPacket(model.SeqNum(id))
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", errBadTestPacket, parts[1])
	}

	if len(parts) == 3 {
		if parts[2] != "corrupt" {
			return nil, fmt.Errorf("%w: unknown modifier %q", errBadTestPacket, parts[2])
		}
		p.Payload[0] ^= 0xff
	}
	return p, nil
}

// MustParse is like [NewTestPacketFromString] but panics on error.
func MustParse(s string) *model.Packet {
	p, err := NewTestPacketFromString(s)
	if err != nil {
		panic("srtest: error reading test packet: " + err.Error())
	}
	return p
}

// ParseSequence parses every item in seq, expanding range notation as in "[1..10] ACK".
func ParseSequence(seq []string) []*model.Packet {
	packets := []*model.Packet{}
	for _, expr := range seq {
		for _, item := range maybeExpand(expr) {
			packets = append(packets, MustParse(item))
		}
	}
	return packets
}

var rangePattern = regexp.MustCompile(`^\[(\d+)\.\.(\d+)\] (.+)`)

// possibly expand an input sequence in range notation for the packet ids [1..10]
func maybeExpand(input string) []string {
	items := []string{}
	matches := rangePattern.FindStringSubmatch(input)
	if len(matches) != 4 {
		// not a range, return the single element
		items = append(items, input)
		return items
	}

	from, err := strconv.Atoi(matches[1])
	if err != nil {
		panic(err)
	}
	to, err := strconv.Atoi(matches[2])
	if err != nil {
		panic(err)
	}

	for i := from; i <= to; i++ {
		items = append(items, fmt.Sprintf("[%d] %s", i, matches[3]))
	}
	return items
}
