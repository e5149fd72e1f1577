package instrument

import (
	"context"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/errgo.v1"
)

// ForelineParams holds the parameters for NewForeline.
type ForelineParams struct {
	// Conn holds the connection to the gauge's serial line.
	Conn io.ReadWriteCloser
	// Addr holds the gauge's two-digit RS485 address.
	// If it's empty, "01" is used.
	Addr string
	// ReadTimeout bounds how long one ReadPoint call waits for the
	// gauge's reply. If it's zero, DefaultReadTimeout is used. The
	// timeout is enforced through the connection's read deadline
	// when it supports one.
	ReadTimeout time.Duration
}

// replyLen is the fixed length of the gauge's reply; the pressure
// field occupies bytes 4 to 11.
const replyLen = 13

// Foreline reads the convection gauge on the dewar foreline. The
// gauge is polled: each reading sends a read command and parses the
// fixed-width reply.
type Foreline struct {
	addr    string
	timeout time.Duration

	mu        sync.Mutex
	conn      io.ReadWriteCloser
	closeOnce sync.Once
	closeErr  error
}

// NewForeline returns a Foreline that polls the gauge over p.Conn.
func NewForeline(p ForelineParams) (*Foreline, error) {
	if p.Conn == nil {
		return nil, errgo.New("no foreline gauge connection")
	}
	if p.Addr == "" {
		p.Addr = "01"
	}
	if p.ReadTimeout == 0 {
		p.ReadTimeout = DefaultReadTimeout
	}
	return &Foreline{
		addr:    p.Addr,
		timeout: p.ReadTimeout,
		conn:    p.Conn,
	}, nil
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// ReadPoint implements PointReader.ReadPoint.
func (g *Foreline) ReadPoint(ctx context.Context) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, errgo.Mask(err, errgo.Any)
	}
	g.drain()
	if _, err := io.WriteString(g.conn, "#"+g.addr+"RD \r"); err != nil {
		return 0, errgo.Notef(err, "cannot send read command to foreline gauge")
	}
	if d, ok := g.conn.(readDeadliner); ok {
		d.SetReadDeadline(time.Now().Add(g.timeout))
	}
	reply := make([]byte, replyLen)
	if _, err := io.ReadFull(g.conn, reply); err != nil {
		return 0, errgo.Notef(err, "cannot read foreline gauge reply")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(reply[4:12])), 64)
	if err != nil {
		return 0, errgo.Newf("malformed foreline gauge reply %q", reply)
	}
	return v, nil
}

// drain discards bytes left over from an earlier poll whose reply
// arrived after the deadline, so a reply is always paired with the
// command just sent. It relies on the connection's read deadline;
// without one reads can't time out, so nothing stale can be left
// behind.
func (g *Foreline) drain() {
	d, ok := g.conn.(readDeadliner)
	if !ok {
		return
	}
	d.SetReadDeadline(time.Now())
	var buf [replyLen]byte
	for {
		n, err := g.conn.Read(buf[:])
		if err != nil || n == 0 {
			return
		}
	}
}

// Close implements PointReader.Close.
func (g *Foreline) Close() error {
	g.closeOnce.Do(func() {
		g.closeErr = g.conn.Close()
	})
	return errgo.Mask(g.closeErr)
}
