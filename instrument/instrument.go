// Package instrument provides access to the vacuum gauges and
// thermistors monitored by the logger. The transports are injected
// as io.ReadWriteCloser values (a local serial port adapter, a
// serial-over-TCP bridge, or an in-memory fake in tests); this
// package implements the wire protocols on top of them and the
// conversions from raw voltages to physical units.
package instrument

import (
	"context"

	"gopkg.in/errgo.v1"
)

// ErrClosed is returned by reads on an instrument whose
// connection has been closed.
var ErrClosed = errgo.New("instrument connection closed")

// ErrReadTimeout is returned when an instrument doesn't produce a
// reading within its configured timeout. Callers should treat it
// like any other failed reading.
var ErrReadTimeout = errgo.New("timed out waiting for instrument reading")

// QuadReading holds one set of raw voltages from the four
// microcontroller channels.
type QuadReading struct {
	// Room and Cryo hold the chamber and dewar gauge output
	// voltages; convert with VoltsToPressure.
	Room, Cryo float64
	// ICR and ICH hold the thermistor divider voltages;
	// convert with VoltsToTemperature.
	ICR, ICH float64
}

// QuadReader reads the four-channel instrument. Implementations
// serialize concurrent calls to ReadQuad, so one handle may be
// shared between sampling loops.
type QuadReader interface {
	// ReadQuad returns the next complete set of voltages.
	ReadQuad(ctx context.Context) (QuadReading, error)
	// Close releases the underlying connection. It is idempotent
	// and safe to call while a read is in progress.
	Close() error
}

// PointReader reads a single-valued instrument such as the
// foreline gauge. Implementations serialize concurrent calls
// to ReadPoint.
type PointReader interface {
	// ReadPoint returns the next reading.
	ReadPoint(ctx context.Context) (float64, error)
	// Close releases the underlying connection. It is idempotent
	// and safe to call while a read is in progress.
	Close() error
}
