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

//
// tests for SenderState
//

func newTestSender(options ...model.Option) (*SenderState, *srtest.RecordingNetwork) {
	if testing.Verbose() {
		log.SetLevel(log.DebugLevel)
	}
	options = append([]model.Option{model.WithLogger(log.Log)}, options...)
	network := srtest.NewRecordingNetwork()
	return NewSenderState(model.NewConfig(options...), network), network
}

func submitN(t *testing.T, s *SenderState, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := s.Submit(srtest.MessageFor(i)); err != nil {
			t.Fatalf("Submit(%d): unexpected error %v", i, err)
		}
	}
}

func ackAll(s *SenderState, seq ...string) {
	for _, p := range srtest.ParseSequence(seq) {
		s.Acknowledge(p)
	}
}

func Test_NewSenderState(t *testing.T) {
	s, _ := newTestSender()
	if s.logger == nil {
		t.Errorf("NewSenderState() should not have nil logger")
	}
	if s.Base() != 0 || s.Next() != 0 {
		t.Errorf("NewSenderState() should start at base=0 next=0")
	}
	if s.TimerArmed() {
		t.Errorf("NewSenderState() should not have an armed timer")
	}
	if len(s.slots) != model.SEQ_SPACE {
		t.Errorf("NewSenderState() should have %d slots, got %d", model.SEQ_SPACE, len(s.slots))
	}
}

func TestSenderState_Submit(t *testing.T) {
	t.Run("first message is sent and arms the timer", func(t *testing.T) {
		s, n := newTestSender()
		submitN(t, s, 1)

		if diff := cmp.Diff([]int{0}, n.SeqNums()); diff != "" {
			t.Error(diff)
		}
		sent := n.Transmitted[0].Packet
		if sent.ACKNum != model.UnusedField {
			t.Errorf("expected acknum to be unused, got %d", sent.ACKNum)
		}
		if sent.IsCorrupted() {
			t.Errorf("expected a sealed packet")
		}
		if sent.Payload != srtest.PayloadFor(0) {
			t.Errorf("unexpected payload %q", sent.Payload.String())
		}
		if !n.Armed || n.Arms != 1 || n.Interval != 16*time.Millisecond {
			t.Errorf("expected the timer to be armed once for 16ms, got %+v", n)
		}
		if s.Next() != 1 || s.Outstanding() != 1 {
			t.Errorf("expected next=1 outstanding=1, got next=%d outstanding=%d", s.Next(), s.Outstanding())
		}
	})

	t.Run("a full window is sent back to back with one timer", func(t *testing.T) {
		s, n := newTestSender()
		submitN(t, s, 6)

		if diff := cmp.Diff([]int{0, 1, 2, 3, 4, 5}, n.SeqNums()); diff != "" {
			t.Error(diff)
		}
		if n.Arms != 1 {
			t.Errorf("expected one arm, got %d", n.Arms)
		}
		if s.Stats().MaxOutstanding != 6 {
			t.Errorf("expected max outstanding 6, got %d", s.Stats().MaxOutstanding)
		}
	})

	t.Run("submitting on a full window is rejected without side effects", func(t *testing.T) {
		s, n := newTestSender()
		submitN(t, s, 6)
		before := len(n.Transmitted)

		err := s.Submit(srtest.MessageFor(6))
		if !errors.Is(err, ErrWindowFull) {
			t.Fatalf("expected ErrWindowFull, got %v", err)
		}
		if got := s.Stats().WindowFull; got != 1 {
			t.Errorf("expected WindowFull=1, got %d", got)
		}
		if len(n.Transmitted) != before {
			t.Errorf("expected no transmission")
		}
		if s.Base() != 0 || s.Next() != 6 || s.Stats().Submitted != 6 {
			t.Errorf("state changed: base=%d next=%d", s.Base(), s.Next())
		}
	})

	t.Run("the buffer is not affected by what the network does to the packet", func(t *testing.T) {
		s, n := newTestSender()
		submitN(t, s, 1)
		n.Transmitted[0].Packet.Payload[0] = 'Z'
		n.Flush()

		s.TimerFire()
		if got := n.Transmitted[0].Packet; got.IsCorrupted() {
			t.Errorf("retransmitted packet should not be corrupted: %v", got)
		}
	})
}

func TestSenderState_Acknowledge(t *testing.T) {
	type want struct {
		base  model.SeqNum
		stats SenderStats
	}
	tests := []struct {
		name      string
		submitted int
		acks      []string
		want      want
	}{
		{
			name:      "corrupted ack is dropped",
			submitted: 3,
			acks:      []string{"[0] ACK corrupt"},
			want: want{
				base:  0,
				stats: SenderStats{Submitted: 3, CorruptedACKs: 1, MaxOutstanding: 3},
			},
		},
		{
			name:      "ack outside the sequence space is malformed",
			submitted: 3,
			acks:      []string{"[12] ACK"},
			want: want{
				base:  0,
				stats: SenderStats{Submitted: 3, MalformedACKs: 1, MaxOutstanding: 3},
			},
		},
		{
			name:      "ack beyond the window is ignored",
			submitted: 3,
			acks:      []string{"[7] ACK"},
			want: want{
				base:  0,
				stats: SenderStats{Submitted: 3, OutOfWindowACKs: 1, MaxOutstanding: 3},
			},
		},
		{
			name:      "ack for a packet never sent is ignored",
			submitted: 3,
			acks:      []string{"[4] ACK"},
			want: want{
				base:  0,
				stats: SenderStats{Submitted: 3, OutOfWindowACKs: 1, MaxOutstanding: 3},
			},
		},
		{
			name:      "duplicate in-window ack has no effect",
			submitted: 3,
			acks:      []string{"[1] ACK", "[1] ACK"},
			want: want{
				base:  0,
				stats: SenderStats{Submitted: 3, NewACKs: 1, DuplicateACKs: 1, MaxOutstanding: 3},
			},
		},
		{
			name:      "a gap stops the slide",
			submitted: 4,
			acks:      []string{"[1..2] ACK"},
			want: want{
				base:  0,
				stats: SenderStats{Submitted: 4, NewACKs: 2, MaxOutstanding: 4},
			},
		},
		{
			name:      "filling the gap slides over the contiguous run",
			submitted: 4,
			acks:      []string{"[1..2] ACK", "[0] ACK"},
			want: want{
				base:  3,
				stats: SenderStats{Submitted: 4, NewACKs: 3, MaxOutstanding: 4},
			},
		},
		{
			name:      "stale ack after the slide is ignored",
			submitted: 4,
			acks:      []string{"[0] ACK", "[0] ACK"},
			want: want{
				base:  1,
				stats: SenderStats{Submitted: 4, NewACKs: 1, OutOfWindowACKs: 1, MaxOutstanding: 4},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestSender()
			submitN(t, s, tt.submitted)
			ackAll(s, tt.acks...)

			if s.Base() != tt.want.base {
				t.Errorf("expected base %d, got %d", tt.want.base, s.Base())
			}
			if diff := cmp.Diff(tt.want.stats, s.Stats()); diff != "" {
				t.Error(diff)
			}
		})
	}
}

func TestSenderState_AcknowledgeTimerDiscipline(t *testing.T) {
	t.Run("an ack that leaves packets outstanding restarts the timer", func(t *testing.T) {
		s, n := newTestSender()
		submitN(t, s, 3)
		ackAll(s, "[1] ACK")
		if n.Disarms != 1 || n.Arms != 2 || !n.Armed {
			t.Errorf("expected disarm then arm, got %+v", n)
		}
	})

	t.Run("an ack that empties the window disarms the timer", func(t *testing.T) {
		s, n := newTestSender()
		submitN(t, s, 1)
		ackAll(s, "[0] ACK")
		if n.Armed || s.TimerArmed() {
			t.Errorf("expected the timer to be disarmed")
		}
	})

	t.Run("ignored acks do not touch the timer", func(t *testing.T) {
		s, n := newTestSender()
		submitN(t, s, 2)
		ackAll(s, "[0] ACK corrupt", "[9] ACK", "[5] ACK")
		if n.Arms != 1 || n.Disarms != 0 {
			t.Errorf("expected no timer activity, got %+v", n)
		}
	})
}

// Scenario: six messages, no loss, every ack arrives.
func TestSenderState_NoLoss(t *testing.T) {
	s, n := newTestSender()
	submitN(t, s, 6)
	ackAll(s, "[0..5] ACK")

	if s.Base() != 6 || s.Next() != 6 {
		t.Errorf("expected base=next=6, got base=%d next=%d", s.Base(), s.Next())
	}
	if n.Armed || s.TimerArmed() {
		t.Errorf("expected the timer to be disarmed")
	}
	if diff := cmp.Diff([]int{0, 1, 2, 3, 4, 5}, n.SeqNums()); diff != "" {
		t.Error(diff)
	}
	if s.Stats().Retransmissions != 0 {
		t.Errorf("expected no retransmissions")
	}
}

// Scenario: the ack for packet 2 is lost, everything else arrives.
func TestSenderState_LostACK(t *testing.T) {
	tests := []struct {
		name      string
		policy    model.RetransmitPolicy
		acks      []string
		resent    []int
		finalBase model.SeqNum
	}{
		{
			name:      "base policy resends packet 2",
			policy:    model.RetransmitBase,
			acks:      []string{"[0..1] ACK", "[3..5] ACK"},
			resent:    []int{2},
			finalBase: 6,
		},
		{
			name:      "window policy resends packet 2, the only one unacknowledged",
			policy:    model.RetransmitWindow,
			acks:      []string{"[0..1] ACK", "[3..5] ACK"},
			resent:    []int{2},
			finalBase: 6,
		},
		{
			name:      "base policy with acks 2 and 4 lost resends the base only",
			policy:    model.RetransmitBase,
			acks:      []string{"[0..1] ACK", "[3] ACK", "[5] ACK"},
			resent:    []int{2},
			finalBase: 4,
		},
		{
			name:      "window policy with acks 2 and 4 lost resends both",
			policy:    model.RetransmitWindow,
			acks:      []string{"[0..1] ACK", "[3] ACK", "[5] ACK"},
			resent:    []int{2, 4},
			finalBase: 6,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, n := newTestSender(model.WithRetransmitPolicy(tt.policy))
			submitN(t, s, 6)
			ackAll(s, tt.acks...)
			n.Flush()

			if s.Base() != 2 {
				t.Fatalf("expected base 2, got %d", s.Base())
			}
			armsBefore := n.Arms
			s.TimerFire()

			if diff := cmp.Diff(tt.resent, n.SeqNums()); diff != "" {
				t.Error(diff)
			}
			if got := s.Stats().Retransmissions; got != len(tt.resent) {
				t.Errorf("expected %d retransmissions, got %d", len(tt.resent), got)
			}
			if n.Arms != armsBefore+1 || !n.Armed {
				t.Errorf("expected exactly one rearm")
			}

			// the retransmissions get acknowledged and base slides over them
			for _, seq := range tt.resent {
				s.Acknowledge(model.NewACKPacket(model.SeqNum(seq)))
			}
			if s.Base() != tt.finalBase {
				t.Errorf("expected base %d, got %d", tt.finalBase, s.Base())
			}
			if wantArmed := s.Base() != s.Next(); n.Armed != wantArmed {
				t.Errorf("expected armed=%v, got %v", wantArmed, n.Armed)
			}
		})
	}
}

func TestSenderState_TimerFire(t *testing.T) {
	t.Run("spurious fire is a no-op", func(t *testing.T) {
		s, n := newTestSender()
		s.TimerFire()
		if len(n.Transmitted) != 0 || n.Arms != 0 {
			t.Errorf("expected no activity")
		}
		stats := s.Stats()
		if stats.SpuriousTimerFires != 1 || stats.TimerFires != 1 {
			t.Errorf("unexpected stats %+v", stats)
		}
	})

	t.Run("repeated fires keep resending the base", func(t *testing.T) {
		s, n := newTestSender()
		submitN(t, s, 2)
		n.Flush()
		s.TimerFire()
		s.TimerFire()
		if diff := cmp.Diff([]int{0, 0}, n.SeqNums()); diff != "" {
			t.Error(diff)
		}
		if s.slots[0].retries != 2 {
			t.Errorf("expected two retries, got %d", s.slots[0].retries)
		}
	})
}

func TestSenderState_Wraparound(t *testing.T) {
	s, n := newTestSender()

	// move base and next to 10 one packet at a time
	for i := 0; i < 10; i++ {
		if err := s.Submit(srtest.MessageFor(i)); err != nil {
			t.Fatal(err)
		}
		s.Acknowledge(model.NewACKPacket(model.SeqNum(i)))
	}
	n.Flush()

	submitN(t, s, 6)
	if diff := cmp.Diff([]int{10, 11, 0, 1, 2, 3}, n.SeqNums()); diff != "" {
		t.Error(diff)
	}
	if err := s.Submit(srtest.MessageFor(99)); !errors.Is(err, ErrWindowFull) {
		t.Errorf("expected ErrWindowFull, got %v", err)
	}

	ackAll(s, "[0] ACK", "[10..11] ACK")
	if s.Base() != 1 {
		t.Errorf("expected base 1 after wrapping, got %d", s.Base())
	}

	// 11 is now behind base
	ackAll(s, "[11] ACK")
	if s.Stats().OutOfWindowACKs != 1 {
		t.Errorf("expected the stale ack to be ignored")
	}
}
