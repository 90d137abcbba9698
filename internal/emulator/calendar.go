package emulator

import (
	"fmt"
	"time"

	"github.com/google/btree"
	"github.com/ooni/minisr/internal/model"
)

// eventKind is the kind of a scheduled event.
type eventKind int

const (
	// eventMessage is a message arriving from the application at A.
	eventMessage = eventKind(iota)

	// eventArrival is a packet arriving from the link.
	eventArrival

	// eventTimer is a timer interrupt.
	eventTimer
)

var _ fmt.Stringer = eventKind(0)

// String implements fmt.Stringer
func (k eventKind) String() string {
	switch k {
	case eventMessage:
		return "message"
	case eventArrival:
		return "arrival"
	case eventTimer:
		return "timer"
	default:
		return "unknown"
	}
}

// event is an entry of the calendar.
type event struct {
	// at is the virtual time of the event.
	at time.Duration

	// order breaks ties between events scheduled at the same time.
	order uint64

	kind     eventKind
	endpoint model.Endpoint

	// packet is set for arrivals.
	packet *model.Packet
}

func eventLess(a, b *event) bool {
	if a.at != b.at {
		return a.at < b.at
	}
	return a.order < b.order
}

// calendar is the queue of future events, ordered by time and then by insertion order.
type calendar struct {
	tree  *btree.BTreeG[*event]
	order uint64
}

func newCalendar() *calendar {
	return &calendar{
		tree:  btree.NewG[*event](8, eventLess),
		order: 0,
	}
}

// schedule inserts ev, assigning its tie-breaker.
func (c *calendar) schedule(ev *event) *event {
	c.order++
	ev.order = c.order
	c.tree.ReplaceOrInsert(ev)
	return ev
}

// cancel removes ev if it is still scheduled.
func (c *calendar) cancel(ev *event) bool {
	_, found := c.tree.Delete(ev)
	return found
}

// next removes and returns the earliest event.
func (c *calendar) next() (*event, bool) {
	return c.tree.DeleteMin()
}

// Len returns the number of pending events.
func (c *calendar) Len() int {
	return c.tree.Len()
}
