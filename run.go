package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gr-butler/weathernode/display"
	"github.com/gr-butler/weathernode/env"
	"github.com/gr-butler/weathernode/scheduler"
	"github.com/gr-butler/weathernode/transport"
	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const joinWait = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the wake loop",
	Long:  "run wakes every time unit until interrupted, or until --cycles wakes have completed.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Infof("Starting weather node [%v]", version)
		w, err := newWeatherstation(ctx, args, scheduler.TimerSleeper{})
		if err != nil {
			return err
		}
		defer w.Close()

		if args.Listen != "" {
			ep := env.LookupEndpoints()
			go w.serve(ctx, args.Listen, ep.SendProm && !args.Test)
		}
		return w.sched.Run(ctx, args.Cycles)
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single wake and exit",
	Long: "once runs one complete wake without sleeping, for stations whose power is cycled " +
		"by an external timer. Every activity is due on the first wake.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w, err := newWeatherstation(ctx, args, scheduler.NoSleep{})
		if err != nil {
			return err
		}
		defer w.Close()

		if !waitJoined(ctx, w.uplink, joinWait) {
			logger.Warn("Uplink not joined, nothing will be sent")
		}
		rep, err := w.sched.Advance(ctx)
		if err != nil {
			return err
		}
		printReport(cmd, w, rep)
		return nil
	},
}

func printReport(cmd *cobra.Command, w *weatherstation, rep scheduler.Report) {
	out := cmd.OutOrStdout()
	var st transport.Stats
	if w.radio != nil {
		st = w.radio.Stats()
	}
	rd := w.station.Snapshot()
	for p := 0; p < display.PageCount; p++ {
		fmt.Fprintln(out, display.Page(p, rd, st))
	}
	if rep.Frame != nil {
		fmt.Fprintln(out, rep.Frame)
	}
}

func init() {
	runCmd.Flags().StringVar(&args.Listen, "listen", "", "Serve status JSON and /metrics on this address, e.g. :80")
	runCmd.Flags().IntVar(&args.Cycles, "cycles", 0, "Stop after this many wakes, 0 runs forever")
}
