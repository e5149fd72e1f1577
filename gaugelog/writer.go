package gaugelog

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/errgo.v1"

	"github.com/cryolab/dewarlog/gaugestat"
)

// Params holds the parameters for NewWriter.
type Params struct {
	// Primary holds the base location that records are written
	// under when it's available.
	Primary string
	// Fallback holds the base location used when a write under
	// Primary fails. If it's empty, failed writes are dropped
	// without retrying.
	Fallback string
}

// Stats holds counts of degraded writes. The zero value is a
// fully healthy writer.
type Stats struct {
	// FallbackWrites counts records that ended up under the
	// fallback base because the primary write failed.
	FallbackWrites int
	// Dropped counts records that could not be written under
	// either base and were lost.
	Dropped int
}

// Writer appends gauge samples to per-channel day files. Each write
// re-derives the file for the sample's calendar day, so a new file
// starts automatically at the local-midnight boundary. Files are
// never truncated, and the header line is written exactly once,
// when the file is first created.
type Writer struct {
	p Params

	mu       sync.Mutex
	stats    Stats
	lastDate Date
}

// NewWriter returns a Writer that writes under p.Primary, retrying
// each failed write once under p.Fallback.
func NewWriter(p Params) (*Writer, error) {
	if p.Primary == "" {
		return nil, errgo.New("no primary log location set")
	}
	return &Writer{p: p}, nil
}

// Write appends one record for ch to its current day file. The whole
// sequence (derive path, create directory, ensure header, append
// record) runs first against the primary base; if any step fails
// it's repeated in full against the fallback base, resolved for the
// same channel and day. An error is returned only when both bases
// fail, in which case the record is lost; the caller should treat
// that as a degraded condition, not a fatal one.
func (w *Writer) Write(ch gaugestat.Channel, s gaugestat.Sample) error {
	date := DateOf(s.Time)
	w.noteDate(date)
	err := writeBase(w.p.Primary, date, ch, s)
	if err == nil {
		return nil
	}
	if w.p.Fallback == "" {
		w.countDrop()
		return errgo.Notef(err, "cannot write %s record", ch.Name)
	}
	if err1 := writeBase(w.p.Fallback, date, ch, s); err1 != nil {
		w.countDrop()
		return errgo.Notef(err1, "cannot write %s record under %q (primary %q failed: %v)", ch.Name, w.p.Fallback, w.p.Primary, err)
	}
	w.mu.Lock()
	w.stats.FallbackWrites++
	w.mu.Unlock()
	return nil
}

// Prepare creates the directories for the given channels under both
// base locations. It returns an error only when neither base is
// usable; the writer still works after that, dropping records until
// a location becomes available.
func (w *Writer) Prepare(channels []gaugestat.Channel) error {
	primaryErr := prepareBase(w.p.Primary, channels)
	if primaryErr == nil {
		return nil
	}
	if w.p.Fallback == "" {
		return errgo.Notef(primaryErr, "no writable log location")
	}
	if err := prepareBase(w.p.Fallback, channels); err != nil {
		return errgo.Notef(err, "no writable log location (primary %q failed: %v)", w.p.Primary, primaryErr)
	}
	return nil
}

func prepareBase(base string, channels []gaugestat.Channel) error {
	for _, ch := range channels {
		if err := os.MkdirAll(filepath.Join(base, ch.Subdir), 0777); err != nil {
			return errgo.Mask(err)
		}
	}
	return nil
}

// Stats returns the counts of degraded writes so far.
func (w *Writer) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Writer) countDrop() {
	w.mu.Lock()
	w.stats.Dropped++
	w.mu.Unlock()
}

// noteDate logs day rollovers so that the rotation is visible
// in the diagnostic output.
func (w *Writer) noteDate(date Date) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if date == w.lastDate {
		return
	}
	if w.lastDate != (Date{}) {
		log.Printf("starting log files for %v", date)
	}
	w.lastDate = date
}

// writeBase runs the full write sequence for one base location.
// Ensuring the header is idempotent: it's only written when the
// file doesn't exist yet or is empty.
func writeBase(base string, date Date, ch gaugestat.Channel, s gaugestat.Sample) error {
	path := FilePath(base, date, ch)
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return errgo.Mask(err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return errgo.Mask(err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return errgo.Mask(err)
	}
	if info.Size() == 0 {
		if _, err := fmt.Fprintln(f, ch.Header); err != nil {
			f.Close()
			return errgo.Mask(err)
		}
	}
	if err := gaugestat.WriteRecord(f, ch, s); err != nil {
		f.Close()
		return errgo.Mask(err)
	}
	return errgo.Mask(f.Close())
}
