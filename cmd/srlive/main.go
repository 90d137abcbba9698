// Command srlive runs a selective-repeat sender and receiver over UDP on the
// loopback interface, optionally injecting loss and corruption.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/pborman/getopt/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ooni/minisr/internal/clilog"
	"github.com/ooni/minisr/internal/livenet"
	"github.com/ooni/minisr/internal/model"
	"github.com/ooni/minisr/internal/reliabletransport"
	"github.com/ooni/minisr/pkg/tracex"
)

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "fatal: "+err.Error())
	os.Exit(1)
}

func main() {
	optMessages := getopt.IntLong("messages", 'n', 50, "Number of messages to send")
	optLoss := getopt.StringLong("loss", 'l', "0.1", "Datagram loss probability")
	optCorrupt := getopt.StringLong("corrupt", 'c', "0.05", "Datagram corruption probability")
	optSeed := getopt.Uint64Long("seed", 's', 1, "Seed for the random number generator")
	optPolicy := getopt.StringLong("policy", 'p', "base", "Retransmission policy (base or window)")
	optTimeout := getopt.DurationLong("timeout", 'T', 30*time.Second, "Give up after this long")
	optVerbosity := getopt.Uint16Long("verbosity", 'v', uint16(4), "Verbosity level (1 to 5, 1 is lowest)")
	optTrace := getopt.StringLong("trace", 't', "", "Write a JSON trace to this file")

	helpFlag := getopt.Bool('h', "Display help")

	getopt.Parse()
	if *helpFlag {
		getopt.Usage()
		os.Exit(0)
	}

	logger := clilog.NewLogger(os.Stderr, *optVerbosity)

	policy, err := model.NewRetransmitPolicyFromString(*optPolicy)
	if err != nil {
		fatal(err)
	}
	var loss, corrupt float64
	if _, err := fmt.Sscanf(*optLoss+" "+*optCorrupt, "%g %g", &loss, &corrupt); err != nil {
		fatal(fmt.Errorf("cannot parse probabilities: %w", err))
	}
	if loss < 0 || loss >= 1 || corrupt < 0 || corrupt >= 1 {
		fatal(errors.New("probabilities must be in [0, 1)"))
	}

	tracer := tracex.NewTracer(model.SystemClock{})
	config := model.NewConfig(
		model.WithLogger(logger),
		model.WithTracer(tracer),
		model.WithRetransmitPolicy(policy),
	)

	receiverConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		fatal(err)
	}
	senderConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		fatal(err)
	}
	logger.Infof("sender %s -> receiver %s", senderConn.LocalAddr(), receiverConn.LocalAddr())

	receiver := livenet.NewReceiver(config, livenet.NewLossyConn(receiverConn, loss, corrupt, *optSeed+1))
	sender := livenet.NewSender(config, livenet.NewLossyConn(senderConn, loss, corrupt, *optSeed), receiverConn.LocalAddr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *optTimeout)
	defer cancel()

	started := time.Now()
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return send(gctx, sender, *optMessages)
	})
	group.Go(func() error {
		for i := 0; i < *optMessages; i++ {
			select {
			case payload := <-receiver.Deliveries():
				fmt.Printf("%4d %s\n", i, payload.String())
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	err = group.Wait()

	sender.Close()
	receiver.Close()

	stats := sender.Stats()
	logger.Infof("elapsed=%v retransmissions=%d timeouts=%d max_outstanding=%d",
		time.Since(started), stats.Retransmissions, stats.TimerFires, stats.MaxOutstanding)

	if *optTrace != "" {
		fp, ferr := os.Create(*optTrace)
		if ferr != nil {
			fatal(ferr)
		}
		if werr := tracer.WriteJSON(fp); werr != nil {
			fatal(werr)
		}
		fp.Close()
	}
	if err != nil {
		fatal(err)
	}
}

// send submits count messages, retrying while the window is full, and then
// waits for every packet to be acknowledged.
func send(ctx context.Context, sender *livenet.Sender, count int) error {
	for i := 0; i < count; i++ {
		msg := model.NewMessage(bytes.Repeat([]byte{byte('a' + i%26)}, model.PayloadSize))
		for {
			err := sender.Submit(ctx, msg)
			if err == nil {
				break
			}
			if !errors.Is(err, reliabletransport.ErrWindowFull) {
				return err
			}
			if err := sleep(ctx, time.Millisecond); err != nil {
				return err
			}
		}
	}
	for {
		n, err := sender.Outstanding(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if err := sleep(ctx, time.Millisecond); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
