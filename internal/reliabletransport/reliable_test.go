package reliabletransport

import (
	"errors"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/google/go-cmp/cmp"
	"github.com/ooni/minisr/internal/model"
	"github.com/ooni/minisr/internal/srtest"
)

// pipeNetwork connects a sender and a receiver through a FIFO queue that
// loses every dropEvery-th transmission. The timer fires only when the pipe is
// idle, which is the only point where a real timer could expire before an ACK.
type pipeNetwork struct {
	queue     []srtest.Transmission
	dropEvery int
	count     int
	armed     bool
	delivered []model.Payload
}

var _ model.Network = &pipeNetwork{}

func (p *pipeNetwork) Transmit(from model.Endpoint, packet *model.Packet) {
	p.count++
	if p.dropEvery > 0 && p.count%p.dropEvery == 0 {
		return
	}
	p.queue = append(p.queue, srtest.Transmission{From: from, Packet: packet})
}

func (p *pipeNetwork) ArmTimer(model.Endpoint, time.Duration) {
	p.armed = true
}

func (p *pipeNetwork) DisarmTimer(model.Endpoint) {
	p.armed = false
}

func (p *pipeNetwork) DeliverToApplication(_ model.Endpoint, payload model.Payload) {
	p.delivered = append(p.delivered, payload)
}

// runPipe pushes messages through sender and receiver until everything is
// delivered, and fails the test if that does not happen within a bounded
// number of steps.
func runPipe(t *testing.T, p *pipeNetwork, s *SenderState, r *ReceiverState, messages []model.Message) {
	t.Helper()
	pending := messages
	for step := 0; step < 100000; step++ {
		for len(pending) > 0 {
			err := s.Submit(pending[0])
			if errors.Is(err, ErrWindowFull) {
				break
			}
			if err != nil {
				t.Fatal(err)
			}
			pending = pending[1:]
		}

		switch {
		case len(p.queue) > 0:
			tx := p.queue[0]
			p.queue = p.queue[1:]
			if tx.From == model.EndpointA {
				r.Receive(tx.Packet)
			} else {
				s.Acknowledge(tx.Packet)
			}
		case p.armed:
			p.armed = false
			s.TimerFire()
		case len(pending) == 0:
			return
		default:
			t.Fatalf("stuck with %d pending messages", len(pending))
		}
	}
	t.Fatalf("no convergence: delivered %d of %d", len(p.delivered), len(messages))
}

func TestSelectiveRepeat_LossyPipe(t *testing.T) {
	if testing.Verbose() {
		log.SetLevel(log.DebugLevel)
	}
	const count = 40

	tests := []struct {
		name      string
		policy    model.RetransmitPolicy
		dropEvery int
	}{
		{"no loss", model.RetransmitBase, 0},
		{"base policy, drop every 3rd", model.RetransmitBase, 3},
		{"base policy, drop every 5th", model.RetransmitBase, 5},
		{"window policy, drop every 3rd", model.RetransmitWindow, 3},
		{"window policy, drop every 4th", model.RetransmitWindow, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &pipeNetwork{dropEvery: tt.dropEvery}
			config := model.NewConfig(
				model.WithLogger(log.Log),
				model.WithRetransmitPolicy(tt.policy),
			)
			s := NewSenderState(config, p)
			r := NewReceiverState(config, p)

			messages := srtest.Messages(count)
			runPipe(t, p, s, r, messages)

			want := []model.Payload{}
			for _, m := range messages {
				want = append(want, m.Data)
			}
			if diff := cmp.Diff(want, p.delivered); diff != "" {
				t.Errorf("delivered payloads differ: %s", diff)
			}
			if s.Base() != s.Next() || s.TimerArmed() {
				t.Errorf("sender should be idle: base=%d next=%d armed=%v", s.Base(), s.Next(), s.TimerArmed())
			}
			if got := s.Stats().MaxOutstanding; got > model.WINDOW_SIZE {
				t.Errorf("too many packets outstanding: %d", got)
			}
			if tt.dropEvery == 0 && s.Stats().Retransmissions != 0 {
				t.Errorf("unexpected retransmissions without loss")
			}
			if tt.dropEvery > 0 && s.Stats().Retransmissions == 0 {
				t.Errorf("expected retransmissions with loss")
			}
		})
	}
}
