package instrument

import (
	"bufio"
	"context"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/errgo.v1"
)

// DefaultReadTimeout is the per-reading timeout used when
// MicroParams.ReadTimeout is zero.
const DefaultReadTimeout = 5 * time.Second

// MicroParams holds the parameters for NewMicro.
type MicroParams struct {
	// Conn holds the connection to the microcontroller's
	// serial stream.
	Conn io.ReadWriteCloser
	// ReadTimeout bounds how long one ReadQuad call waits for a
	// complete frame. If it's zero, DefaultReadTimeout is used.
	ReadTimeout time.Duration
}

// Micro reads the microcontroller that digitizes the two gauge
// controller outputs and the two thermistor dividers. The firmware
// streams voltage lines continuously, tagged '4' (room chamber
// gauge), '5' (dewar gauge), '6' (ICR thermistor) and '7' (ICH
// thermistor); a frame is the four tags in sequence.
//
// The stream is noisy: bytes get dropped or corrupted, shifting
// frames. A background goroutine scans the stream, discarding torn
// frames and resynchronizing on the next '4' line, and hands
// complete frames to ReadQuad.
type Micro struct {
	timeout time.Duration
	conn    io.ReadWriteCloser
	frames  chan QuadReading

	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewMicro returns a Micro reading frames from p.Conn.
func NewMicro(p MicroParams) (*Micro, error) {
	if p.Conn == nil {
		return nil, errgo.New("no microcontroller connection")
	}
	if p.ReadTimeout == 0 {
		p.ReadTimeout = DefaultReadTimeout
	}
	m := &Micro{
		timeout: p.ReadTimeout,
		conn:    p.Conn,
		frames:  make(chan QuadReading, 1),
	}
	go m.scan()
	return m, nil
}

// ReadQuad implements QuadReader.ReadQuad. It returns the next
// complete frame from the stream, ErrReadTimeout if none arrives
// within the read timeout, or ErrClosed after Close.
func (m *Micro) ReadQuad(ctx context.Context) (QuadReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case r, ok := <-m.frames:
		if !ok {
			return QuadReading{}, ErrClosed
		}
		return r, nil
	case <-ctx.Done():
		return QuadReading{}, errgo.Mask(ctx.Err(), errgo.Any)
	case <-time.After(m.timeout):
		return QuadReading{}, ErrReadTimeout
	}
}

// Close implements QuadReader.Close.
func (m *Micro) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = m.conn.Close()
	})
	return errgo.Mask(m.closeErr)
}

// scan reads the stream until the connection fails or is closed.
// Only complete, well-formed frames are handed over, one deep: a
// newly completed frame replaces any frame the readers haven't
// consumed yet, so a reading is never more than one frame old.
func (m *Micro) scan() {
	defer close(m.frames)
	scanner := bufio.NewScanner(m.conn)
	var r QuadReading
	next := byte('4')
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tag := line[0]
		if tag != next && tag != '4' {
			// Torn frame; wait for the start of the next one.
			next = '4'
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(line[1:]), 64)
		if err != nil {
			next = '4'
			continue
		}
		switch tag {
		case '4':
			r = QuadReading{Room: v}
			next = '5'
		case '5':
			r.Cryo = v
			next = '6'
		case '6':
			r.ICR = v
			next = '7'
		case '7':
			r.ICH = v
			next = '4'
			select {
			case m.frames <- r:
			default:
				// Drop the unconsumed frame. scan is the only
				// sender, so the channel has room after the drain.
				select {
				case <-m.frames:
				default:
				}
				m.frames <- r
			}
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("microcontroller stream ended: %v", err)
	}
}
