package gaugeworker

import (
	"context"
	"io/ioutil"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gopkg.in/errgo.v1"

	"github.com/cryolab/dewarlog/gaugelog"
	"github.com/cryolab/dewarlog/gaugestat"
	"github.com/cryolab/dewarlog/instrument"
)

var epoch = time.Date(2024, 3, 9, 12, 0, 0, 0, time.Local)

func TestReadAllCondensesRepeats(t *testing.T) {
	c := qt.New(t)
	quad := &fakeQuad{readings: []instrument.QuadReading{
		// The first and last Room/Cryo voltages are the extremes
		// and get trimmed.
		{Room: 1, Cryo: 4, ICR: 1.5, ICH: 1.25},
		{Room: 2, Cryo: 2, ICR: 1.5, ICH: 1.25},
		{Room: 3, Cryo: 2, ICR: 1.5, ICH: 1.25},
		{Room: 4, Cryo: 2, ICR: 1.5, ICH: 1.25},
		{Room: 5, Cryo: 1, ICR: 1.5, ICH: 1.25},
	}}
	fore := &fakePoint{values: []float64{1.5, 100, 2.5, 3.5, 0.001}}
	s := sampler{quad: quad, foreline: fore, repeat: 5}
	samples := s.readAll(context.Background(), epoch)
	c.Assert(samples, qt.HasLen, 4)

	byName := make(map[string]gaugestat.Sample)
	for _, cs := range samples {
		c.Assert(cs.sample.Time.Equal(epoch), qt.IsTrue)
		byName[cs.ch.Name] = cs.sample
	}
	// Condensed Room voltage is mean{2,3,4} = 3.
	c.Assert(byName["chamber"].Values, qt.DeepEquals, []float64{instrument.VoltsToPressure(3)})
	// Condensed Cryo voltage is mean{2,2,2} = 2.
	c.Assert(byName["dewar"].Values, qt.DeepEquals, []float64{instrument.VoltsToPressure(2)})
	// Foreline readings are already pressures: mean{1.5, 2.5, 3.5}.
	c.Assert(byName["foreline"].Values, qt.DeepEquals, []float64{2.5})
	c.Assert(byName["temperatures"].Values, qt.DeepEquals, []float64{
		instrument.VoltsToTemperature(1.5),
		instrument.VoltsToTemperature(1.25),
	})
}

func TestReadAllFailuresBecomeNaN(t *testing.T) {
	c := qt.New(t)
	quad := &fakeQuad{err: errgo.New("no instrument")}
	fore := &fakePoint{err: errgo.New("no gauge")}
	s := sampler{quad: quad, foreline: fore, repeat: 3}
	samples := s.readAll(context.Background(), epoch)
	c.Assert(samples, qt.HasLen, 4)
	for _, cs := range samples {
		c.Assert(cs.sample, qt.CmpEquals(cmpopts.EquateNaNs()), gaugestat.Invalid(cs.ch, epoch))
	}
}

func TestReadAllRecoversPanic(t *testing.T) {
	c := qt.New(t)
	s := sampler{
		quad:     &fakeQuad{panicMsg: "controller wedged"},
		foreline: &fakePoint{panicMsg: "gauge wedged"},
		repeat:   2,
	}
	samples := s.readAll(context.Background(), epoch)
	c.Assert(samples, qt.HasLen, 4)
	for _, cs := range samples {
		for _, v := range cs.sample.Values {
			c.Assert(math.IsNaN(v), qt.IsTrue)
		}
	}
}

func TestReadAllChannelSubset(t *testing.T) {
	c := qt.New(t)
	s := sampler{foreline: &fakePoint{values: []float64{2}}, repeat: 1}
	c.Assert(s.channels(), qt.DeepEquals, []gaugestat.Channel{gaugestat.Foreline})
	samples := s.readAll(context.Background(), epoch)
	c.Assert(samples, qt.HasLen, 1)
	c.Assert(samples[0].ch.Name, qt.Equals, "foreline")
}

func TestDayRotationProducesDistinctFiles(t *testing.T) {
	c := qt.New(t)
	dir := c.Mkdir()
	writer, err := gaugelog.NewWriter(gaugelog.Params{Primary: dir})
	c.Assert(err, qt.IsNil)
	s := sampler{foreline: &fakePoint{values: []float64{2, 3}}, repeat: 1}
	for _, now := range []time.Time{epoch, epoch.AddDate(0, 0, 1)} {
		for _, cs := range s.readAll(context.Background(), now) {
			c.Assert(writer.Write(cs.ch, cs.sample), qt.IsNil)
		}
	}
	for i, now := range []time.Time{epoch, epoch.AddDate(0, 0, 1)} {
		path := gaugelog.FilePath(dir, gaugelog.DateOf(now), gaugestat.Foreline)
		data, err := ioutil.ReadFile(path)
		c.Assert(err, qt.IsNil)
		lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
		c.Assert(lines, qt.HasLen, 2, qt.Commentf("day %d", i))
		c.Assert(lines[0], qt.Equals, gaugestat.Foreline.Header)
	}
}

func TestLogWorker(t *testing.T) {
	c := qt.New(t)
	dir := c.Mkdir()
	writer, err := gaugelog.NewWriter(gaugelog.Params{Primary: dir})
	c.Assert(err, qt.IsNil)
	quad := &fakeQuad{readings: []instrument.QuadReading{{Room: 2, Cryo: 3, ICR: 1.65, ICH: 1.60}}}
	fore := &fakePoint{values: []float64{0.25}}
	w, err := NewLogWorker(Params{
		Writer:   writer,
		Quad:     quad,
		Foreline: fore,
		Repeat:   1,
		Interval: 50 * time.Millisecond,
	})
	c.Assert(err, qt.IsNil)
	time.Sleep(120 * time.Millisecond)
	w.Close()

	c.Assert(quad.closeCount, qt.Equals, 1)
	c.Assert(fore.closeCount, qt.Equals, 1)
	for _, ch := range gaugestat.Channels {
		path := gaugelog.FilePath(dir, gaugelog.DateOf(time.Now()), ch)
		data, err := ioutil.ReadFile(path)
		c.Assert(err, qt.IsNil)
		lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
		c.Assert(len(lines) >= 2, qt.IsTrue, qt.Commentf("channel %s: %q", ch.Name, data))
		c.Assert(lines[0], qt.Equals, ch.Header)
		c.Assert(strings.Count(string(data), ch.Header), qt.Equals, 1)
	}
}

func TestLogWorkerParams(t *testing.T) {
	c := qt.New(t)
	writer, err := gaugelog.NewWriter(gaugelog.Params{Primary: c.Mkdir()})
	c.Assert(err, qt.IsNil)
	_, err = NewLogWorker(Params{Quad: &fakeQuad{}})
	c.Assert(err, qt.ErrorMatches, "no log writer set")
	_, err = NewLogWorker(Params{Writer: writer})
	c.Assert(err, qt.ErrorMatches, "no instruments set")
}

func TestTickDelay(t *testing.T) {
	c := qt.New(t)
	base := time.Date(2024, 3, 9, 12, 30, 0, 0, time.UTC)
	c.Assert(tickDelay(base, time.Minute), qt.Equals, time.Minute)
	c.Assert(tickDelay(base.Add(12*time.Second), time.Minute), qt.Equals, 48*time.Second)
	c.Assert(tickDelay(base.Add(59*time.Second), time.Minute), qt.Equals, time.Second)
}

// fakeQuad scripts ReadQuad results: the readings are returned in
// order, repeating the last one; an err or panicMsg makes every
// read fail instead.
type fakeQuad struct {
	mu         sync.Mutex
	readings   []instrument.QuadReading
	err        error
	panicMsg   string
	calls      int
	closeCount int
}

func (q *fakeQuad) ReadQuad(ctx context.Context) (instrument.QuadReading, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.panicMsg != "" {
		panic(q.panicMsg)
	}
	if q.err != nil {
		return instrument.QuadReading{}, q.err
	}
	i := q.calls
	if i >= len(q.readings) {
		i = len(q.readings) - 1
	}
	q.calls++
	return q.readings[i], nil
}

func (q *fakeQuad) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closeCount++
	return nil
}

// fakePoint scripts ReadPoint results the same way.
type fakePoint struct {
	mu         sync.Mutex
	values     []float64
	err        error
	panicMsg   string
	calls      int
	closeCount int
}

func (p *fakePoint) ReadPoint(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panicMsg != "" {
		panic(p.panicMsg)
	}
	if p.err != nil {
		return 0, p.err
	}
	i := p.calls
	if i >= len(p.values) {
		i = len(p.values) - 1
	}
	p.calls++
	return p.values[i], nil
}

func (p *fakePoint) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeCount++
	return nil
}
