// Gaugelogger runs the durable logging cadence: it samples the
// instruments once a minute and appends one record per channel to
// the day files, switching to the fallback location when the
// primary one can't be written. It runs until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/errgo.v1"
	"gopkg.in/yaml.v2"

	"github.com/cryolab/dewarlog/gaugelog"
	"github.com/cryolab/dewarlog/gaugeworker"
	"github.com/cryolab/dewarlog/instrument"
)

var configFlag = flag.String("config", "gaugelogger.yaml", "configuration file path")

// Config holds the gaugelogger configuration file contents.
type Config struct {
	// Primary and Fallback hold the two candidate log base
	// locations. Fallback may be empty.
	Primary  string `yaml:"primary"`
	Fallback string `yaml:"fallback"`
	// MicroAddr holds the address of the microcontroller's
	// serial bridge. If it's empty, the chamber, dewar and
	// temperature channels aren't sampled.
	MicroAddr string `yaml:"micro-addr"`
	// ForelineAddr holds the address of the foreline gauge's
	// serial bridge. If it's empty, the foreline channel
	// isn't sampled.
	ForelineAddr string `yaml:"foreline-addr"`
	// ForelineGaugeAddr holds the gauge's RS485 address
	// ("01" if empty).
	ForelineGaugeAddr string `yaml:"foreline-gauge-addr"`
	// Repeat holds the raw readings per channel per tick.
	Repeat int `yaml:"repeat"`
	// ReadTimeout holds the per-reading timeout as a Go
	// duration string, for example "2s".
	ReadTimeout string `yaml:"read-timeout"`
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: gaugelogger [-config file]\n")
		os.Exit(2)
	}
	flag.Parse()
	if err := run(); err != nil {
		log.Fatalf("%v", err)
	}
}

func run() error {
	cfg, err := readConfig(*configFlag)
	if err != nil {
		return errgo.Mask(err)
	}
	readTimeout := time.Duration(0)
	if cfg.ReadTimeout != "" {
		readTimeout, err = time.ParseDuration(cfg.ReadTimeout)
		if err != nil {
			return errgo.Notef(err, "invalid read-timeout in %q", *configFlag)
		}
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var quad instrument.QuadReader
	if cfg.MicroAddr != "" {
		conn, err := instrument.Dial(ctx, cfg.MicroAddr)
		if err != nil {
			return errgo.Mask(err)
		}
		quad, err = instrument.NewMicro(instrument.MicroParams{
			Conn:        conn,
			ReadTimeout: readTimeout,
		})
		if err != nil {
			return errgo.Mask(err)
		}
	}
	var foreline instrument.PointReader
	if cfg.ForelineAddr != "" {
		conn, err := instrument.Dial(ctx, cfg.ForelineAddr)
		if err != nil {
			return errgo.Mask(err)
		}
		foreline, err = instrument.NewForeline(instrument.ForelineParams{
			Conn:        conn,
			Addr:        cfg.ForelineGaugeAddr,
			ReadTimeout: readTimeout,
		})
		if err != nil {
			return errgo.Mask(err)
		}
	}
	writer, err := gaugelog.NewWriter(gaugelog.Params{
		Primary:  cfg.Primary,
		Fallback: cfg.Fallback,
	})
	if err != nil {
		return errgo.Mask(err)
	}
	w, err := gaugeworker.NewLogWorker(gaugeworker.Params{
		Writer:   writer,
		Quad:     quad,
		Foreline: foreline,
		Repeat:   cfg.Repeat,
	})
	if err != nil {
		return errgo.Mask(err)
	}
	log.Printf("logging under %q (fallback %q)", cfg.Primary, cfg.Fallback)
	<-ctx.Done()
	log.Printf("interrupted; shutting down")
	w.Close()
	stats := writer.Stats()
	if stats.FallbackWrites > 0 || stats.Dropped > 0 {
		log.Printf("degraded writes during run: %d under fallback, %d dropped", stats.FallbackWrites, stats.Dropped)
	}
	return nil
}

func readConfig(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errgo.Mask(err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errgo.Notef(err, "cannot parse configuration file %q", path)
	}
	if cfg.Primary == "" {
		return nil, errgo.Newf("no primary log location in %q", path)
	}
	if cfg.MicroAddr == "" && cfg.ForelineAddr == "" {
		return nil, errgo.Newf("no instrument addresses in %q", path)
	}
	return &cfg, nil
}
