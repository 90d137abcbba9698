package emulator

import (
	"time"

	"github.com/ooni/minisr/internal/model"
	"github.com/ooni/minisr/internal/reliabletransport"
	"gonum.org/v1/gonum/stat"
)

// LinkStats contains the counters of one direction of the link.
type LinkStats struct {
	// Sent counts the packets handed to the link.
	Sent int

	// Lost counts the packets the link discarded.
	Lost int

	// Corrupted counts the packets the link mangled.
	Corrupted int

	// Reordered counts the packets scheduled to overtake an earlier one.
	Reordered int

	// Arrived counts the packets that reached the other endpoint.
	Arrived int
}

// Report summarizes an emulation.
type Report struct {
	// Generated counts the messages produced by the application.
	Generated int

	// Accepted and Rejected split Generated by the outcome of Submit.
	Accepted int
	Rejected int

	// Delivered counts the payloads handed to the application at B.
	Delivered int

	// Undelivered counts accepted messages that never reached B.
	Undelivered int

	// OutOfOrder counts deliveries that did not match the next accepted message.
	OutOfOrder int

	// AtoB and BtoA are the link counters for each direction.
	AtoB LinkStats
	BtoA LinkStats

	Sender   reliabletransport.SenderStats
	Receiver reliabletransport.ReceiverStats

	// Elapsed is the virtual duration of the emulation.
	Elapsed time.Duration

	// LatencyMean and LatencyStdDev describe the time from submit to delivery.
	LatencyMean   time.Duration
	LatencyStdDev time.Duration
}

func (r *Report) setLatency(samples []float64) {
	r.LatencyMean, r.LatencyStdDev = 0, 0
	if len(samples) == 0 {
		return
	}
	r.LatencyMean = millis(stat.Mean(samples, nil))
	if len(samples) > 1 {
		r.LatencyStdDev = millis(stat.StdDev(samples, nil))
	}
}

func millis(v float64) time.Duration {
	return time.Duration(v * float64(time.Millisecond))
}

// Log writes the report using the logger.
func (r *Report) Log(logger model.Logger) {
	logger.Infof("messages: generated=%d accepted=%d rejected=%d delivered=%d undelivered=%d out_of_order=%d",
		r.Generated, r.Accepted, r.Rejected, r.Delivered, r.Undelivered, r.OutOfOrder)
	logger.Infof("link A->B: sent=%d lost=%d corrupted=%d reordered=%d arrived=%d",
		r.AtoB.Sent, r.AtoB.Lost, r.AtoB.Corrupted, r.AtoB.Reordered, r.AtoB.Arrived)
	logger.Infof("link B->A: sent=%d lost=%d corrupted=%d reordered=%d arrived=%d",
		r.BtoA.Sent, r.BtoA.Lost, r.BtoA.Corrupted, r.BtoA.Reordered, r.BtoA.Arrived)
	logger.Infof("sender: retransmissions=%d new_acks=%d duplicate_acks=%d stale_acks=%d corrupted_acks=%d timeouts=%d max_outstanding=%d",
		r.Sender.Retransmissions, r.Sender.NewACKs, r.Sender.DuplicateACKs, r.Sender.OutOfWindowACKs,
		r.Sender.CorruptedACKs, r.Sender.TimerFires, r.Sender.MaxOutstanding)
	logger.Infof("receiver: received=%d corrupted=%d duplicates=%d out_of_window=%d acks=%d",
		r.Receiver.Received, r.Receiver.Corrupted, r.Receiver.Duplicates, r.Receiver.OutOfWindow, r.Receiver.ACKsSent)
	logger.Infof("elapsed=%v latency mean=%v stddev=%v", r.Elapsed, r.LatencyMean, r.LatencyStdDev)
}
