package gaugestat

import (
	"io"
	"math"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var recordTime = time.Date(2024, 3, 9, 14, 30, 5, 0, time.Local)

func TestWriteRecord(t *testing.T) {
	c := qt.New(t)
	var buf strings.Builder
	err := WriteRecord(&buf, Chamber, Sample{
		Time:   recordTime,
		Values: []float64{1.25e-06},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(buf.String(), qt.Equals, "2024/03/09-14:30:05,1.25e-06\n")
}

func TestWriteRecordInvalidValue(t *testing.T) {
	c := qt.New(t)
	var buf strings.Builder
	err := WriteRecord(&buf, Temperatures, Sample{
		Time:   recordTime,
		Values: []float64{21.5, math.NaN()},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(buf.String(), qt.Equals, "2024/03/09-14:30:05,21.5,NaN\n")
}

func TestWriteRecordWrongArity(t *testing.T) {
	c := qt.New(t)
	var buf strings.Builder
	err := WriteRecord(&buf, Temperatures, Sample{
		Time:   recordTime,
		Values: []float64{21.5},
	})
	c.Assert(err, qt.ErrorMatches, `record for temperatures channel has 1 values, need 2`)
	c.Assert(buf.String(), qt.Equals, "")
}

func TestSampleRoundTrip(t *testing.T) {
	c := qt.New(t)
	samples := []Sample{{
		Time:   recordTime,
		Values: []float64{20.5, 19.25},
	}, {
		Time:   recordTime.Add(time.Minute),
		Values: []float64{math.NaN(), 19.5},
	}, {
		Time:   recordTime.Add(2 * time.Minute),
		Values: []float64{20.75, math.NaN()},
	}}
	var buf strings.Builder
	buf.WriteString(Temperatures.Header + "\n")
	for _, s := range samples {
		err := WriteRecord(&buf, Temperatures, s)
		c.Assert(err, qt.IsNil)
	}
	got, err := readAll(NewSampleReader(strings.NewReader(buf.String()), Temperatures))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.CmpEquals(cmpopts.EquateNaNs()), samples)
}

func TestSampleReaderNoHeader(t *testing.T) {
	c := qt.New(t)
	// Records parse fine even when the header line is missing.
	r := NewSampleReader(strings.NewReader("2024/03/09-14:30:05,0.51\n"), Chamber)
	got, err := readAll(r)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.CmpEquals(), []Sample{{
		Time:   recordTime,
		Values: []float64{0.51},
	}})
}

func TestSampleReaderMalformed(t *testing.T) {
	c := qt.New(t)
	tests := []struct {
		about       string
		line        string
		expectError string
	}{{
		about:       "wrong field count",
		line:        "2024/03/09-14:30:05,1,2",
		expectError: `invalid record line .*`,
	}, {
		about:       "bad timestamp",
		line:        "20240309,0.5",
		expectError: `invalid timestamp in record line .*`,
	}, {
		about:       "bad value",
		line:        "2024/03/09-14:30:05,zero",
		expectError: `invalid value "zero" in record line .*`,
	}}
	for _, test := range tests {
		c.Run(test.about, func(c *qt.C) {
			r := NewSampleReader(strings.NewReader(Chamber.Header+"\n"+test.line+"\n"), Chamber)
			_, err := readAll(r)
			c.Assert(err, qt.ErrorMatches, test.expectError)
		})
	}
}

func TestInvalid(t *testing.T) {
	c := qt.New(t)
	s := Invalid(Temperatures, recordTime)
	c.Assert(s.Time.Equal(recordTime), qt.IsTrue)
	c.Assert(s.Values, qt.HasLen, 2)
	for _, v := range s.Values {
		c.Assert(math.IsNaN(v), qt.IsTrue)
	}
}

func readAll(r SampleReader) ([]Sample, error) {
	var samples []Sample
	for {
		s, err := r.ReadSample()
		if err == io.EOF {
			return samples, nil
		}
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
}
