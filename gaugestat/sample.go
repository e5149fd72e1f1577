package gaugestat

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/errgo.v1"
)

// TimeFormat is the timestamp format used in log records.
// Timestamps are written in local time with second precision.
const TimeFormat = "2006/01/02-15:04:05"

// Sample holds the reduced readings taken from one channel at one
// time. Values holds exactly Channel.NumValues entries; a value is
// either a finite number or NaN, marking a reading that failed.
type Sample struct {
	Time   time.Time
	Values []float64
}

// Invalid returns a Sample for ch at the given time with
// all values set to NaN.
func Invalid(ch Channel, t time.Time) Sample {
	vs := make([]float64, ch.NumValues)
	for i := range vs {
		vs[i] = math.NaN()
	}
	return Sample{Time: t, Values: vs}
}

// WriteRecord writes one record line for s to w in the format
// read back by NewSampleReader. The line is identical no matter
// where the file lives, so readers can't tell primary-base data
// from fallback-base data.
func WriteRecord(w io.Writer, ch Channel, s Sample) error {
	if len(s.Values) != ch.NumValues {
		return errgo.Newf("record for %s channel has %d values, need %d", ch.Name, len(s.Values), ch.NumValues)
	}
	line := make([]byte, 0, 40)
	line = s.Time.AppendFormat(line, TimeFormat)
	for _, v := range s.Values {
		line = append(line, ',')
		line = strconv.AppendFloat(line, v, 'g', -1, 64)
	}
	line = append(line, '\n')
	_, err := w.Write(line)
	return errgo.Mask(err)
}

// SampleReader represents a source of samples for one channel.
type SampleReader interface {
	// ReadSample returns the next sample in the stream.
	// It returns io.EOF at the end of the available samples.
	ReadSample() (Sample, error)
}

// NewSampleReader returns a SampleReader that reads ch's records
// from a day log file. The header line, if present, is skipped.
func NewSampleReader(r io.Reader, ch Channel) SampleReader {
	return &fileSampleReader{
		ch:      ch,
		scanner: bufio.NewScanner(r),
	}
}

type fileSampleReader struct {
	ch       Channel
	scanner  *bufio.Scanner
	doneHead bool
}

func (r *fileSampleReader) ReadSample() (Sample, error) {
	for {
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return Sample{}, errgo.Mask(err)
			}
			return Sample{}, io.EOF
		}
		line := r.scanner.Text()
		if !r.doneHead {
			r.doneHead = true
			if line == r.ch.Header {
				continue
			}
		}
		return r.parseRecord(line)
	}
}

func (r *fileSampleReader) parseRecord(line string) (Sample, error) {
	fields := strings.Split(line, ",")
	if len(fields) != r.ch.NumValues+1 {
		return Sample{}, errgo.Newf("invalid record line %q for %s channel", line, r.ch.Name)
	}
	t, err := time.ParseInLocation(TimeFormat, fields[0], time.Local)
	if err != nil {
		return Sample{}, errgo.Newf("invalid timestamp in record line %q", line)
	}
	vs := make([]float64, len(fields)-1)
	for i, f := range fields[1:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Sample{}, errgo.Newf("invalid value %q in record line %q", f, line)
		}
		vs[i] = v
	}
	return Sample{Time: t, Values: vs}, nil
}
