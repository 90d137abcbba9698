package srtest

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ooni/minisr/internal/model"
)

func TestNewTestPacketFromString(t *testing.T) {
	tests := []struct {
		name    string
		s       string
		want    *model.Packet
		wantErr bool
	}{
		{
			name:    "data packet",
			s:       "[3] DATA",
			want:    model.NewDataPacket(3, PayloadFor(3)),
			wantErr: false,
		},
		{
			name:    "ack packet",
			s:       "[7] ACK",
			want:    model.NewACKPacket(7),
			wantErr: false,
		},
		{
			name:    "unknown kind",
			s:       "[7] NACK",
			want:    nil,
			wantErr: true,
		},
		{
			name:    "bad id",
			s:       "[x] ACK",
			want:    nil,
			wantErr: true,
		},
		{
			name:    "unknown modifier",
			s:       "[1] ACK late",
			want:    nil,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTestPacketFromString(tt.s)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewTestPacketFromString() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Error(diff)
			}
		})
	}
}

func TestNewTestPacketFromString_Corrupt(t *testing.T) {
	p := MustParse("[2] DATA corrupt")
	if !p.IsCorrupted() {
		t.Errorf("expected a corrupted packet")
	}
	if p.SeqNum != 2 {
		t.Errorf("expected seqnum 2, got %d", p.SeqNum)
	}
}

func TestParseSequence(t *testing.T) {
	got := ParseSequence([]string{"[0..2] ACK", "[5] ACK"})
	acks := []model.SeqNum{}
	for _, p := range got {
		acks = append(acks, p.ACKNum)
	}
	if diff := cmp.Diff([]model.SeqNum{0, 1, 2, 5}, acks); diff != "" {
		t.Error(diff)
	}
}

func TestMustParsePanics(t *testing.T) {
	AssertPanic(t, func() { MustParse("garbage") })
}

func TestRecordingNetwork(t *testing.T) {
	n := NewRecordingNetwork()
	n.Transmit(model.EndpointA, MustParse("[0] DATA"))
	n.Transmit(model.EndpointB, MustParse("[0] ACK"))
	n.ArmTimer(model.EndpointA, 10)
	n.DisarmTimer(model.EndpointA)
	n.DeliverToApplication(model.EndpointB, PayloadFor(1))

	if diff := cmp.Diff([]int{0}, n.SeqNums()); diff != "" {
		t.Error(diff)
	}
	if diff := cmp.Diff([]int{0}, n.ACKs()); diff != "" {
		t.Error(diff)
	}
	if n.Armed || n.Arms != 1 || n.Disarms != 1 {
		t.Errorf("unexpected timer state: %+v", n)
	}
	if diff := cmp.Diff([]string{"bbbbbbbbbbbbbbbbbbbb"}, n.DeliveredStrings()); diff != "" {
		t.Error(diff)
	}
	if flushed := n.Flush(); len(flushed) != 2 || len(n.Transmitted) != 0 {
		t.Errorf("unexpected flush result")
	}
}
