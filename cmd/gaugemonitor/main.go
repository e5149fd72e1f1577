// Gaugemonitor runs the live cadence: it samples the instruments
// once a second into a scrolling buffer and prints the most recent
// values as they arrive. Chart rendering is left to external tools;
// this just exposes the live window on the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/errgo.v1"

	"github.com/cryolab/dewarlog/gaugeworker"
	"github.com/cryolab/dewarlog/instrument"
	"github.com/cryolab/dewarlog/livebuf"
)

var (
	microAddr    = flag.String("micro", "", "address of the microcontroller serial bridge")
	forelineAddr = flag.String("foreline", "", "address of the foreline gauge serial bridge")
	interval     = flag.Duration("interval", time.Second, "sampling interval")
	window       = flag.Duration("window", 10*time.Minute, "scrolling window duration")
	repeat       = flag.Int("repeat", 0, "raw readings per channel per tick")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: gaugemonitor [flags]\n")
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()
	if *microAddr == "" && *forelineAddr == "" {
		flag.Usage()
	}
	if err := run(); err != nil {
		log.Fatalf("%v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var quad instrument.QuadReader
	if *microAddr != "" {
		conn, err := instrument.Dial(ctx, *microAddr)
		if err != nil {
			return err
		}
		quad, err = instrument.NewMicro(instrument.MicroParams{Conn: conn})
		if err != nil {
			return err
		}
	}
	var foreline instrument.PointReader
	if *forelineAddr != "" {
		conn, err := instrument.Dial(ctx, *forelineAddr)
		if err != nil {
			return err
		}
		foreline, err = instrument.NewForeline(instrument.ForelineParams{Conn: conn})
		if err != nil {
			return err
		}
	}
	names := gaugeworker.LiveChannels(quad != nil, foreline != nil)
	capacity, err := liveCapacity(*window, *interval)
	if err != nil {
		return err
	}
	buf, err := livebuf.New(livebuf.Params{
		Channels: names,
		Capacity: capacity,
	})
	if err != nil {
		return err
	}
	w, err := gaugeworker.NewLiveWorker(gaugeworker.LiveParams{
		Buffer:   buf,
		Quad:     quad,
		Foreline: foreline,
		Repeat:   *repeat,
		Interval: *interval,
	})
	if err != nil {
		return err
	}
	go printLatest(buf, names)
	<-ctx.Done()
	w.Close()
	buf.Close()
	fmt.Println()
	return nil
}

// liveCapacity returns the buffer capacity needed to retain the
// given view window at the given sampling interval, with headroom
// for ticks that arrive early.
func liveCapacity(window, interval time.Duration) (int, error) {
	if interval <= 0 {
		return 0, errgo.Newf("non-positive sampling interval %v", interval)
	}
	if window < 0 {
		return 0, errgo.Newf("negative window duration %v", window)
	}
	return int(window/interval) + 30, nil
}

func printLatest(buf *livebuf.Buffer, names []string) {
	watcher := buf.Watch()
	for watcher.Next() {
		parts := make([]string, 0, len(names))
		for _, name := range names {
			entries := buf.Snapshot(name, 0)
			if len(entries) == 0 {
				continue
			}
			last := entries[len(entries)-1]
			parts = append(parts, fmt.Sprintf("%s %.4g", name, last.Value))
		}
		fmt.Printf("\r%-80s", strings.Join(parts, "  "))
	}
}
