// Package gaugelog implements the durable side of the gauge logger:
// it derives the day file for each channel and appends record lines
// to it, falling back to a second base location when the primary
// one can't be written.
package gaugelog

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/cryolab/dewarlog/gaugestat"
)

// Date holds a calendar day in the local time zone. The zero Date
// precedes any day a sample can be taken on.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day that t falls on, in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// String returns the date in the form used in day file names,
// for example "2024-03-09".
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// FilePath returns the path of ch's log file for the given day under
// the given base location. It's a pure function of its arguments:
// the same (base, date, channel) always names the same file.
func FilePath(base string, date Date, ch gaugestat.Channel) string {
	return filepath.Join(base, ch.Subdir, date.String()+"_"+ch.FileSuffix+".log")
}
