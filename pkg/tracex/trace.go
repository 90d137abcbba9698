// Package tracex implements a tracer that can be passed to the endpoints and to
// the emulator to observe every packet, delivery and timer event of a run.
package tracex

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ooni/minisr/internal/model"
	"github.com/ooni/minisr/internal/optional"
)

const (
	eventPacketIn = iota
	eventPacketOut
	eventPacketDropped
	eventDelivered
	eventTimer
)

// EventType indicates which event we logged.
type EventType int

// Ensure that it implements the Stringer interface.
var _ fmt.Stringer = EventType(0)

// String implements fmt.Stringer
func (e EventType) String() string {
	switch e {
	case eventPacketIn:
		return "packet_in"
	case eventPacketOut:
		return "packet_out"
	case eventPacketDropped:
		return "packet_dropped"
	case eventDelivered:
		return "delivered"
	case eventTimer:
		return "timer"
	default:
		return "unknown"
	}
}

// Event is an event collected by this [model.Tracer].
type Event struct {
	// EventType is the type for this event.
	EventType string `json:"operation"`

	// Endpoint is the endpoint that observed the event ("A" or "B").
	Endpoint string `json:"endpoint"`

	// AtTime is the time for this event, relative to the start time.
	AtTime float64 `json:"t"`

	// Tags is an array of tags that can be useful to interpret this event.
	Tags []string `json:"tags"`

	// LoggedPacket is an optional packet metadata.
	LoggedPacket optional.Value[LoggedPacket] `json:"packet"`

	// Reason is set for dropped packets.
	Reason optional.Value[string] `json:"reason"`

	// Timer is set for timer events.
	Timer optional.Value[string] `json:"timer"`

	// Delivered is set for delivery events and contains the delivered seqnum.
	Delivered optional.Value[model.SeqNum] `json:"delivered_seqnum"`
}

func newEvent(etype EventType, endpoint model.Endpoint, t time.Time, t0 time.Time) *Event {
	return &Event{
		EventType:    etype.String(),
		Endpoint:     endpoint.String(),
		AtTime:       t.Sub(t0).Seconds(),
		Tags:         make([]string, 0),
		LoggedPacket: optional.None[LoggedPacket](),
		Reason:       optional.None[string](),
		Timer:        optional.None[string](),
		Delivered:    optional.None[model.SeqNum](),
	}
}

// Tracer implements [model.Tracer].
type Tracer struct {
	// clock tells the time of each event.
	clock model.Clock

	// events is the array of events.
	events []*Event

	// mu guards access to the events.
	mu sync.Mutex

	// runID identifies the run this trace belongs to.
	runID string

	// zeroTime is the time when we started the trace.
	zeroTime time.Time
}

var _ model.Tracer = &Tracer{}

// NewTracer returns a Tracer that reads the time from clock and uses the
// current clock time as zero. Every tracer gets a fresh random run ID.
func NewTracer(clock model.Clock) *Tracer {
	return NewTracerWithRunID(clock, uuid.NewString())
}

// NewTracerWithRunID is like [NewTracer] with an explicit run ID.
func NewTracerWithRunID(clock model.Clock, runID string) *Tracer {
	return &Tracer{
		clock:    clock,
		events:   []*Event{},
		runID:    runID,
		zeroTime: clock.Now(),
	}
}

// RunID returns the identifier of this trace.
func (t *Tracer) RunID() string {
	return t.runID
}

// OnOutgoingPacket implements model.Tracer.
func (t *Tracer) OnOutgoingPacket(endpoint model.Endpoint, packet *model.Packet, retransmission bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := newEvent(eventPacketOut, endpoint, t.clock.Now(), t.zeroTime)
	e.LoggedPacket = logPacket(packet, model.DirectionOutgoing)
	maybeAddTagsFromPacket(e, packet)
	if retransmission {
		e.Tags = append(e.Tags, "retransmission")
	}
	t.events = append(t.events, e)
}

// OnIncomingPacket implements model.Tracer.
func (t *Tracer) OnIncomingPacket(endpoint model.Endpoint, packet *model.Packet) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := newEvent(eventPacketIn, endpoint, t.clock.Now(), t.zeroTime)
	e.LoggedPacket = logPacket(packet, model.DirectionIncoming)
	maybeAddTagsFromPacket(e, packet)
	t.events = append(t.events, e)
}

// OnDroppedPacket implements model.Tracer.
func (t *Tracer) OnDroppedPacket(endpoint model.Endpoint, reason model.DropReason, packet *model.Packet) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := newEvent(eventPacketDropped, endpoint, t.clock.Now(), t.zeroTime)
	e.LoggedPacket = logPacket(packet, model.DirectionIncoming)
	e.Reason = optional.Some(reason.String())
	t.events = append(t.events, e)
}

// OnDelivered implements model.Tracer.
func (t *Tracer) OnDelivered(endpoint model.Endpoint, seq model.SeqNum, payload model.Payload) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := newEvent(eventDelivered, endpoint, t.clock.Now(), t.zeroTime)
	e.Delivered = optional.Some(seq)
	t.events = append(t.events, e)
}

// OnTimer implements model.Tracer.
func (t *Tracer) OnTimer(endpoint model.Endpoint, event model.TimerEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := newEvent(eventTimer, endpoint, t.clock.Now(), t.zeroTime)
	e.Timer = optional.Some(event.String())
	t.events = append(t.events, e)
}

// Trace returns a copy of the array of [Event].
func (t *Tracer) Trace() []*Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Event{}, t.events...)
}

// document is the JSON document written by [Tracer.WriteJSON].
type document struct {
	RunID  string   `json:"run_id"`
	Events []*Event `json:"events"`
}

// WriteJSON serializes the run ID and the events collected so far to w.
func (t *Tracer) WriteJSON(w io.Writer) error {
	doc := &document{
		RunID:  t.runID,
		Events: t.Trace(),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("tracex: cannot write trace: %w", err)
	}
	return nil
}

func logPacket(p *model.Packet, direction model.Direction) optional.Value[LoggedPacket] {
	logged := LoggedPacket{
		Direction: direction.String(),
		Kind:      "data",
		SeqNum:    optional.None[model.SeqNum](),
		ACKNum:    optional.None[model.SeqNum](),
		Checksum:  p.Checksum,
	}
	if p.IsACK() {
		logged.Kind = "ack"
		logged.ACKNum = optional.Some(p.ACKNum)
	} else {
		logged.SeqNum = optional.Some(p.SeqNum)
	}
	return optional.Some(logged)
}

// LoggedPacket tracks metadata about a packet useful to build traces.
type LoggedPacket struct {
	Direction string `json:"operation"`

	// the only fields of the packet we want to log.
	Kind     string                       `json:"kind"`
	SeqNum   optional.Value[model.SeqNum] `json:"seqnum"`
	ACKNum   optional.Value[model.SeqNum] `json:"acknum"`
	Checksum int32                        `json:"checksum"`
}

// maybeAddTagsFromPacket derives meaningful tags from the packet and adds
// them to the tag array in the passed event.
func maybeAddTagsFromPacket(e *Event, packet *model.Packet) {
	if packet.IsCorrupted() {
		e.Tags = append(e.Tags, "corrupted")
	}
}
