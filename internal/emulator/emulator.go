package emulator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ooni/minisr/internal/model"
	"github.com/ooni/minisr/internal/reliabletransport"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// corruptedField is the value the link writes into a mangled header field.
const corruptedField = model.SeqNum(999999)

// ErrEmulation is returned when an emulation cannot complete.
var ErrEmulation = errors.New("emulator: emulation failed")

// Capture records transmitted packets. [pcapdump.Writer] implements it.
type Capture interface {
	WritePacket(t time.Time, from model.Endpoint, packet *model.Packet) error
}

// Emulator drives a [reliabletransport.SenderState] at A and a
// [reliabletransport.ReceiverState] at B through an emulated link.
// Please use the constructor [New]. An Emulator runs only once.
type Emulator struct {
	logger model.Logger
	tracer model.Tracer

	// parameters, see the options
	messages     int
	loss         float64
	corrupt      float64
	reorder      float64
	meanInterval time.Duration
	seed         uint64
	capture      Capture

	clock    *Clock
	calendar *calendar

	// random variables, all sharing one seeded source
	coin     func(p float64) bool
	uniform  distuv.Uniform
	delay    distuv.Uniform
	interval distuv.Exponential

	sender   *reliabletransport.SenderState
	receiver *reliabletransport.ReceiverState

	// timers contains the pending timer event of each endpoint.
	timers map[model.Endpoint]*event

	// lastArrival is the latest arrival time scheduled towards each endpoint.
	lastArrival map[model.Endpoint]time.Duration

	// accepted is the queue of messages accepted by the sender and not yet delivered.
	accepted []acceptedMessage

	// latencies contains the delivery latency of each message, in milliseconds.
	latencies []float64

	// err is the first fatal error raised from within a callback.
	err error

	report *Report
}

// acceptedMessage is a message the sender accepted, with its submit time.
type acceptedMessage struct {
	payload model.Payload
	at      time.Duration
}

var _ model.Network = &Emulator{}

// New creates an emulator. The config provides the logger, the tracer and
// the protocol parameters shared by both endpoints.
func New(config *model.Config, options ...Option) *Emulator {
	e := &Emulator{
		logger:       config.Logger(),
		tracer:       config.Tracer(),
		messages:     DEFAULT_MESSAGES,
		meanInterval: DEFAULT_MEAN_INTERVAL,
		seed:         1,
		calendar:     newCalendar(),
		timers:       map[model.Endpoint]*event{},
		lastArrival:  map[model.Endpoint]time.Duration{},
		accepted:     []acceptedMessage{},
		latencies:    []float64{},
		report:       &Report{},
	}
	for _, opt := range options {
		opt(e)
	}
	if e.clock == nil {
		e.clock = NewClock(time.Now())
	}

	src := rand.NewSource(e.seed)
	e.uniform = distuv.Uniform{Min: 0, Max: 1, Src: src}
	e.coin = func(p float64) bool {
		return distuv.Bernoulli{P: p, Src: src}.Rand() == 1
	}
	e.delay = distuv.Uniform{
		Min: float64(MIN_LINK_DELAY) / float64(time.Millisecond),
		Max: float64(MAX_LINK_DELAY) / float64(time.Millisecond),
		Src: src,
	}
	e.interval = distuv.Exponential{
		Rate: float64(time.Millisecond) / float64(e.meanInterval),
		Src:  src,
	}

	e.sender = reliabletransport.NewSenderState(config, e)
	e.receiver = reliabletransport.NewReceiverState(config, e)
	return e
}

// Clock returns the virtual clock.
func (e *Emulator) Clock() *Clock {
	return e.clock
}

// Sender returns the endpoint at A.
func (e *Emulator) Sender() *reliabletransport.SenderState {
	return e.sender
}

// Receiver returns the endpoint at B.
func (e *Emulator) Receiver() *reliabletransport.ReceiverState {
	return e.receiver
}

// Run processes events until the calendar is empty, meaning that every
// message has been generated and every accepted message acknowledged.
func (e *Emulator) Run(ctx context.Context) (*Report, error) {
	e.logger.Infof(
		"emulator: messages=%d loss=%.3f corrupt=%.3f reorder=%.3f interval=%v seed=%d",
		e.messages, e.loss, e.corrupt, e.reorder, e.meanInterval, e.seed,
	)
	if e.messages > 0 {
		e.scheduleMessage()
	}

	for {
		if err := ctx.Err(); err != nil {
			return e.finish(), fmt.Errorf("%w: %w", ErrEmulation, err)
		}
		ev, ok := e.calendar.next()
		if !ok {
			break
		}
		e.clock.advance(ev.at)
		e.dispatch(ev)
		if e.err != nil {
			return e.finish(), e.err
		}
	}
	return e.finish(), nil
}

func (e *Emulator) dispatch(ev *event) {
	switch ev.kind {
	case eventMessage:
		e.onMessage()

	case eventArrival:
		e.linkStats(ev.endpoint.Peer()).Arrived++
		if ev.endpoint == model.EndpointA {
			e.sender.Acknowledge(ev.packet)
		} else {
			e.receiver.Receive(ev.packet)
		}

	case eventTimer:
		delete(e.timers, ev.endpoint)
		if ev.endpoint != model.EndpointA {
			e.logger.Warnf("emulator: unexpected timer interrupt at %s", ev.endpoint)
			return
		}
		e.logger.Debugf("emulator: t=%v timer interrupt at A", e.clock.Elapsed())
		e.sender.TimerFire()
	}
}

// onMessage hands the next generated message to the sender.
func (e *Emulator) onMessage() {
	index := e.report.Generated
	e.report.Generated++
	msg := newMessage(index)
	e.logger.Debugf("emulator: t=%v message %d from the application", e.clock.Elapsed(), index)

	switch err := e.sender.Submit(msg); {
	case errors.Is(err, reliabletransport.ErrWindowFull):
		e.report.Rejected++
	case err != nil:
		e.err = fmt.Errorf("%w: %w", ErrEmulation, err)
		return
	default:
		e.report.Accepted++
		e.accepted = append(e.accepted, acceptedMessage{payload: msg.Data, at: e.clock.Elapsed()})
	}

	if e.report.Generated < e.messages {
		e.scheduleMessage()
	}
}

func (e *Emulator) scheduleMessage() {
	after := time.Duration(e.interval.Rand() * float64(time.Millisecond))
	e.calendar.schedule(&event{
		at:       e.clock.Elapsed() + after,
		kind:     eventMessage,
		endpoint: model.EndpointA,
	})
}

// newMessage returns the index-th message: 20 copies of a letter cycling from 'a' to 'z'.
func newMessage(index int) model.Message {
	return model.NewMessage(bytes.Repeat([]byte{byte('a' + index%26)}, model.PayloadSize))
}

// Transmit implements model.Network. The link may lose the packet, corrupt
// one of its fields, and delays it by 1-10ms. Packets towards the same
// endpoint arrive in order unless the reorder coin says otherwise.
func (e *Emulator) Transmit(from model.Endpoint, packet *model.Packet) {
	to := from.Peer()
	link := e.linkStats(from)
	link.Sent++
	now := e.clock.Elapsed()

	if e.capture != nil {
		if err := e.capture.WritePacket(e.clock.Now(), from, packet); err != nil && e.err == nil {
			e.err = fmt.Errorf("%w: %w", ErrEmulation, err)
		}
	}

	if e.coin(e.loss) {
		link.Lost++
		e.logger.Debugf("emulator: t=%v link %s->%s lost %s", now, from, to, packet)
		e.tracer.OnDroppedPacket(from, model.DropLost, packet)
		return
	}

	if e.coin(e.corrupt) {
		link.Corrupted++
		e.mangle(packet)
		e.logger.Debugf("emulator: t=%v link %s->%s corrupted %s", now, from, to, packet)
	}

	delay := time.Duration(e.delay.Rand() * float64(time.Millisecond))
	last := e.lastArrival[to]
	var arrival time.Duration
	if e.coin(e.reorder) {
		arrival = now + delay
		if arrival < last {
			link.Reordered++
		}
	} else {
		arrival = max(now, last) + delay
	}
	e.lastArrival[to] = max(last, arrival)

	e.calendar.schedule(&event{
		at:       arrival,
		kind:     eventArrival,
		endpoint: to,
		packet:   packet,
	})
}

// mangle corrupts the payload (75%), the seqnum (12.5%) or the acknum (12.5%).
func (e *Emulator) mangle(packet *model.Packet) {
	switch x := e.uniform.Rand(); {
	case x < 0.75:
		packet.Payload[0] = 'Z'
	case x < 0.875:
		packet.SeqNum = corruptedField
	default:
		packet.ACKNum = corruptedField
	}
}

// ArmTimer implements model.Network.
func (e *Emulator) ArmTimer(endpoint model.Endpoint, interval time.Duration) {
	if pending, found := e.timers[endpoint]; found {
		e.logger.Warnf("emulator: timer at %s already armed, restarting it", endpoint)
		e.calendar.cancel(pending)
	}
	e.timers[endpoint] = e.calendar.schedule(&event{
		at:       e.clock.Elapsed() + interval,
		kind:     eventTimer,
		endpoint: endpoint,
	})
}

// DisarmTimer implements model.Network.
func (e *Emulator) DisarmTimer(endpoint model.Endpoint) {
	pending, found := e.timers[endpoint]
	if !found {
		e.logger.Warnf("emulator: timer at %s is not armed", endpoint)
		return
	}
	e.calendar.cancel(pending)
	delete(e.timers, endpoint)
}

// DeliverToApplication implements model.Network.
func (e *Emulator) DeliverToApplication(endpoint model.Endpoint, payload model.Payload) {
	e.report.Delivered++
	e.logger.Debugf("emulator: t=%v application at %s got %q", e.clock.Elapsed(), endpoint, payload.String())
	if len(e.accepted) == 0 {
		e.report.OutOfOrder++
		return
	}
	head := e.accepted[0]
	e.accepted = e.accepted[1:]
	if head.payload != payload {
		e.report.OutOfOrder++
		return
	}
	latency := e.clock.Elapsed() - head.at
	e.latencies = append(e.latencies, float64(latency)/float64(time.Millisecond))
}

func (e *Emulator) linkStats(from model.Endpoint) *LinkStats {
	if from == model.EndpointA {
		return &e.report.AtoB
	}
	return &e.report.BtoA
}

// finish fills the report with the final state of the endpoints.
func (e *Emulator) finish() *Report {
	e.report.Elapsed = e.clock.Elapsed()
	e.report.Sender = e.sender.Stats()
	e.report.Receiver = e.receiver.Stats()
	e.report.Undelivered = len(e.accepted)
	e.report.setLatency(e.latencies)
	return e.report
}
