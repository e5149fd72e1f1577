package gaugeworker

import (
	"context"
	"log"
	"sync"
	"time"

	"gopkg.in/errgo.v1"

	"github.com/cryolab/dewarlog/instrument"
	"github.com/cryolab/dewarlog/livebuf"
)

// Names of the live series pushed by the LiveWorker. The dual
// temperature channel splits into one series per thermistor so
// that every series is single-valued.
const (
	LiveChamber  = "chamber"
	LiveDewar    = "dewar"
	LiveForeline = "foreline"
	LiveTICR     = "T_ICR"
	LiveTICH     = "T_ICH"
)

// DefaultLiveInterval is the live cadence used when
// LiveParams.Interval is zero.
const DefaultLiveInterval = time.Second

// LiveChannels returns the series names the LiveWorker pushes for
// the given instrument set, in display order. Use it to size the
// livebuf.Buffer the worker feeds.
func LiveChannels(quad, foreline bool) []string {
	var names []string
	if quad {
		names = append(names, LiveChamber, LiveDewar, LiveTICR, LiveTICH)
	}
	if foreline {
		names = append(names, LiveForeline)
	}
	return names
}

// LiveParams holds the parameters for NewLiveWorker.
type LiveParams struct {
	// Buffer receives the sampled values.
	Buffer *livebuf.Buffer
	// Quad and Foreline hold the instrument handles,
	// as in Params.
	Quad     instrument.QuadReader
	Foreline instrument.PointReader
	// Repeat holds the number of raw readings per channel per
	// tick. If it's zero, DefaultRepeat is used.
	Repeat int
	// Interval holds the live tick period.
	// If it's zero, DefaultLiveInterval is used.
	Interval time.Duration
	// Now is used to query the current time.
	// If it's nil, time.Now is used.
	Now func() time.Time
}

// LiveWorker samples the instruments at a short fixed interval and
// pushes the condensed values into a scrolling buffer for display.
// Every tick pushes one entry to every active series, NaN for failed
// readings, keeping the series time-aligned.
type LiveWorker struct {
	p      LiveParams
	s      sampler
	ctx    context.Context
	cancel func()
	wg     sync.WaitGroup
}

// NewLiveWorker starts a LiveWorker. Stop it with Close.
func NewLiveWorker(p LiveParams) (*LiveWorker, error) {
	if p.Buffer == nil {
		return nil, errgo.New("no live buffer set")
	}
	if p.Quad == nil && p.Foreline == nil {
		return nil, errgo.New("no instruments set")
	}
	if p.Repeat == 0 {
		p.Repeat = DefaultRepeat
	}
	if p.Interval == 0 {
		p.Interval = DefaultLiveInterval
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &LiveWorker{
		p:      p,
		s:      sampler{quad: p.Quad, foreline: p.Foreline, repeat: p.Repeat},
		ctx:    ctx,
		cancel: cancel,
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Close stops the worker and releases the instrument handles.
func (w *LiveWorker) Close() {
	w.cancel()
	w.wg.Wait()
	w.s.close()
}

func (w *LiveWorker) run() {
	defer w.wg.Done()
	start := w.p.Now()
	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}
		now := w.p.Now()
		elapsed := now.Sub(start).Seconds()
		if w.s.quad != nil {
			room, cryo, icr, ich := w.s.readQuad(w.ctx)
			w.push(LiveChamber, elapsed, instrument.VoltsToPressure(room))
			w.push(LiveDewar, elapsed, instrument.VoltsToPressure(cryo))
			w.push(LiveTICR, elapsed, instrument.VoltsToTemperature(icr))
			w.push(LiveTICH, elapsed, instrument.VoltsToTemperature(ich))
		}
		if w.s.foreline != nil {
			w.push(LiveForeline, elapsed, w.s.readForeline(w.ctx))
		}
		select {
		case <-time.After(w.p.Interval):
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *LiveWorker) push(channel string, elapsed, value float64) {
	if err := w.p.Buffer.Push(channel, elapsed, value); err != nil {
		log.Printf("%v", err)
	}
}
