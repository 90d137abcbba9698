// Command srsim runs a selective-repeat sender and receiver over an emulated
// lossy link and prints a report.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/pborman/getopt/v2"

	"github.com/ooni/minisr/internal/clilog"
	"github.com/ooni/minisr/internal/emulator"
	"github.com/ooni/minisr/internal/model"
	"github.com/ooni/minisr/internal/pcapdump"
	"github.com/ooni/minisr/internal/runtimex"
	"github.com/ooni/minisr/pkg/tracex"
)

func printUsage() {
	getopt.Usage()
	os.Exit(0)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "fatal: "+err.Error())
	os.Exit(1)
}

func main() {
	optMessages := getopt.IntLong("messages", 'n', emulator.DEFAULT_MESSAGES, "Number of messages to send")
	optLoss := getopt.StringLong("loss", 'l', "0", "Packet loss probability")
	optCorrupt := getopt.StringLong("corrupt", 'c', "0", "Packet corruption probability")
	optReorder := getopt.StringLong("reorder", 'r', "0", "Packet reordering probability")
	optLambda := getopt.DurationLong("lambda", 'L', emulator.DEFAULT_MEAN_INTERVAL, "Mean time between messages")
	optSeed := getopt.Uint64Long("seed", 's', 1, "Seed for the random number generator")
	optPolicy := getopt.StringLong("policy", 'p', "base", "Retransmission policy (base or window)")
	optVerbosity := getopt.Uint16Long("verbosity", 'v', uint16(4), "Verbosity level (1 to 5, 1 is lowest)")
	optTrace := getopt.StringLong("trace", 't', "", "Write a JSON trace to this file")
	optPcap := getopt.StringLong("pcap", 'w', "", "Write a pcap capture to this file")

	helpFlag := getopt.Bool('h', "Display help")

	getopt.Parse()
	if *helpFlag || len(getopt.Args()) != 0 {
		printUsage()
	}

	logger := clilog.NewLogger(os.Stderr, *optVerbosity)

	policy, err := model.NewRetransmitPolicyFromString(*optPolicy)
	if err != nil {
		fatal(err)
	}
	loss, err := parseProbability("loss", *optLoss)
	if err != nil {
		fatal(err)
	}
	corrupt, err := parseProbability("corrupt", *optCorrupt)
	if err != nil {
		fatal(err)
	}
	reorder, err := parseProbability("reorder", *optReorder)
	if err != nil {
		fatal(err)
	}
	if *optLambda <= 0 {
		fatal(fmt.Errorf("%w: lambda must be positive", errBadFlag))
	}

	clock := emulator.NewClock(time.Now())
	tracer := tracex.NewTracer(clock)
	config := model.NewConfig(
		model.WithLogger(logger),
		model.WithTracer(tracer),
		model.WithRetransmitPolicy(policy),
	)

	options := []emulator.Option{
		emulator.WithMessages(*optMessages),
		emulator.WithLossProbability(loss),
		emulator.WithCorruptionProbability(corrupt),
		emulator.WithReorderProbability(reorder),
		emulator.WithMeanInterval(*optLambda),
		emulator.WithSeed(*optSeed),
		emulator.WithClock(clock),
	}

	if *optPcap != "" {
		fp, err := os.Create(*optPcap)
		if err != nil {
			fatal(err)
		}
		defer fp.Close()
		capture, err := pcapdump.NewWriter(fp)
		runtimex.PanicOnError(err, "cannot write pcap header")
		options = append(options, emulator.WithCapture(capture))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := emulator.New(config, options...).Run(ctx)
	if err != nil {
		logger.Errorf("emulation: %s", err.Error())
	}
	report.Log(logger)

	if *optTrace != "" {
		if err := writeTrace(*optTrace, tracer); err != nil {
			fatal(err)
		}
		logger.Infof("trace %s written to %s", tracer.RunID(), *optTrace)
	}
	if report.OutOfOrder != 0 || report.Undelivered != 0 {
		os.Exit(2)
	}
}

func writeTrace(path string, tracer *tracex.Tracer) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fp.Close()
	return tracer.WriteJSON(fp)
}
