// Package gaugeworker implements the long-running workers that sample
// the instruments. The LogWorker feeds the durable per-channel day
// files on a minute-aligned cadence; the LiveWorker feeds the
// in-memory scrolling buffer at a short fixed interval. The two may
// run in the same process sharing instrument handles (the handles
// serialize reads) or in separate processes.
package gaugeworker

import (
	"context"
	"log"
	"sync"
	"time"

	"gopkg.in/errgo.v1"

	"github.com/cryolab/dewarlog/gaugelog"
	"github.com/cryolab/dewarlog/gaugestat"
	"github.com/cryolab/dewarlog/instrument"
)

// DefaultRepeat is the number of raw readings taken per channel per
// tick when Params.Repeat is zero. Repeated readings let the trimmed
// aggregation absorb one corrupted value per tick.
const DefaultRepeat = 5

// Params holds the parameters for NewLogWorker.
type Params struct {
	// Writer appends the sampled records to the day files.
	Writer *gaugelog.Writer
	// Quad holds the microcontroller handle providing the chamber,
	// dewar and temperature channels. If it's nil those channels
	// aren't sampled.
	Quad instrument.QuadReader
	// Foreline holds the foreline gauge handle. If it's nil the
	// foreline channel isn't sampled.
	Foreline instrument.PointReader
	// Repeat holds the number of raw readings per channel per tick.
	// If it's zero, DefaultRepeat is used.
	Repeat int
	// Interval holds the cadence the ticks are aligned to.
	// If it's zero, a minute is used.
	Interval time.Duration
	// Now is used to query the current time.
	// If it's nil, time.Now is used.
	Now func() time.Time
}

// LogWorker periodically samples all active channels and appends one
// record per channel per tick, whether or not the readings succeed:
// a failed reading is recorded as NaN, never silently omitted, so
// gaps in the time series are always explicit.
type LogWorker struct {
	p      Params
	s      sampler
	ctx    context.Context
	cancel func()
	wg     sync.WaitGroup
}

// NewLogWorker starts a LogWorker. The first tick runs immediately;
// subsequent ticks are aligned to the interval boundary. The worker
// keeps running through read and write failures; stop it with Close.
func NewLogWorker(p Params) (*LogWorker, error) {
	if p.Writer == nil {
		return nil, errgo.New("no log writer set")
	}
	if p.Quad == nil && p.Foreline == nil {
		return nil, errgo.New("no instruments set")
	}
	if p.Repeat == 0 {
		p.Repeat = DefaultRepeat
	}
	if p.Interval == 0 {
		p.Interval = time.Minute
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &LogWorker{
		p:      p,
		s:      sampler{quad: p.Quad, foreline: p.Foreline, repeat: p.Repeat},
		ctx:    ctx,
		cancel: cancel,
	}
	if err := p.Writer.Prepare(w.s.channels()); err != nil {
		// Degraded from the start; keep running so that records
		// appear as soon as a location becomes writable.
		log.Printf("%v; dropping records until a log location is available", err)
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Close stops the worker and releases the instrument handles.
// The tick in progress, if any, completes first.
func (w *LogWorker) Close() {
	w.cancel()
	w.wg.Wait()
	w.s.close()
}

func (w *LogWorker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}
		now := w.p.Now()
		for _, cs := range w.s.readAll(w.ctx, now) {
			if err := w.p.Writer.Write(cs.ch, cs.sample); err != nil {
				log.Printf("%v", err)
			}
		}
		select {
		case <-time.After(tickDelay(w.p.Now(), w.p.Interval)):
		case <-w.ctx.Done():
			return
		}
	}
}

// tickDelay returns how long to sleep so that the next tick lands on
// an interval boundary (for the durable cadence, the next wall-clock
// minute).
func tickDelay(now time.Time, interval time.Duration) time.Duration {
	return interval - now.Sub(now.Truncate(interval))
}

// channelSample pairs a channel with the sample taken from it
// in one tick.
type channelSample struct {
	ch     gaugestat.Channel
	sample gaugestat.Sample
}

// sampler holds the instrument handles shared by the two worker
// kinds and turns raw repeated readings into per-channel samples.
type sampler struct {
	quad     instrument.QuadReader
	foreline instrument.PointReader
	repeat   int
}

func (s *sampler) channels() []gaugestat.Channel {
	var chs []gaugestat.Channel
	if s.quad != nil {
		chs = append(chs, gaugestat.Chamber, gaugestat.Dewar, gaugestat.Temperatures)
	}
	if s.foreline != nil {
		chs = append(chs, gaugestat.Foreline)
	}
	return chs
}

// readAll samples every active channel once, stamping all samples
// with the same tick time. Read failures surface as NaN values.
func (s *sampler) readAll(ctx context.Context, now time.Time) []channelSample {
	var out []channelSample
	if s.quad != nil {
		room, cryo, icr, ich := s.readQuad(ctx)
		out = append(out,
			channelSample{gaugestat.Chamber, gaugestat.Sample{
				Time:   now,
				Values: []float64{instrument.VoltsToPressure(room)},
			}},
			channelSample{gaugestat.Dewar, gaugestat.Sample{
				Time:   now,
				Values: []float64{instrument.VoltsToPressure(cryo)},
			}},
			channelSample{gaugestat.Temperatures, gaugestat.Sample{
				Time:   now,
				Values: []float64{instrument.VoltsToTemperature(icr), instrument.VoltsToTemperature(ich)},
			}},
		)
	}
	if s.foreline != nil {
		out = append(out, channelSample{gaugestat.Foreline, gaugestat.Sample{
			Time:   now,
			Values: []float64{s.readForeline(ctx)},
		}})
	}
	return out
}

// readQuad takes the repeated raw voltage readings for the
// microcontroller channels and condenses each channel independently.
// With no successful readings at all the results are NaN.
func (s *sampler) readQuad(ctx context.Context) (room, cryo, icr, ich float64) {
	rooms := make([]float64, 0, s.repeat)
	cryos := make([]float64, 0, s.repeat)
	icrs := make([]float64, 0, s.repeat)
	ichs := make([]float64, 0, s.repeat)
	for i := 0; i < s.repeat; i++ {
		r, err := s.readQuadOnce(ctx)
		if err != nil {
			log.Printf("cannot read microcontroller: %v", err)
			continue
		}
		rooms = append(rooms, r.Room)
		cryos = append(cryos, r.Cryo)
		icrs = append(icrs, r.ICR)
		ichs = append(ichs, r.ICH)
	}
	return gaugestat.TrimmedMean(rooms),
		gaugestat.TrimmedMean(cryos),
		gaugestat.TrimmedMean(icrs),
		gaugestat.TrimmedMean(ichs)
}

// readQuadOnce converts a panicking instrument implementation into a
// failed reading so that one bad driver can't take the whole
// sampling loop down.
func (s *sampler) readQuadOnce(ctx context.Context) (_ instrument.QuadReading, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errgo.Newf("microcontroller read panicked: %v", p)
		}
	}()
	return s.quad.ReadQuad(ctx)
}

func (s *sampler) readForeline(ctx context.Context) float64 {
	readings := make([]float64, 0, s.repeat)
	for i := 0; i < s.repeat; i++ {
		v, err := s.readForelineOnce(ctx)
		if err != nil {
			log.Printf("cannot read foreline gauge: %v", err)
			continue
		}
		readings = append(readings, v)
	}
	return gaugestat.TrimmedMean(readings)
}

func (s *sampler) readForelineOnce(ctx context.Context) (_ float64, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errgo.Newf("foreline gauge read panicked: %v", p)
		}
	}()
	return s.foreline.ReadPoint(ctx)
}

// close releases the instrument handles. Close failures are logged
// and otherwise ignored; there's nothing useful to do with them
// at shutdown.
func (s *sampler) close() {
	if s.quad != nil {
		if err := s.quad.Close(); err != nil {
			log.Printf("cannot close microcontroller connection: %v", err)
		}
	}
	if s.foreline != nil {
		if err := s.foreline.Close(); err != nil {
			log.Printf("cannot close foreline gauge connection: %v", err)
		}
	}
}
