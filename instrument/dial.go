package instrument

import (
	"context"
	"log"
	"net"
	"time"

	"gopkg.in/errgo.v1"
	"gopkg.in/retry.v1"
)

var dialStrategy = retry.LimitTime(2*time.Minute, retry.Exponential{
	Initial:  500 * time.Millisecond,
	Factor:   1.5,
	MaxDelay: 10 * time.Second,
})

// Dial connects to an instrument bridge (for example a ser2net
// endpoint exposing a serial port over TCP), retrying with backoff
// until the connection succeeds, the retry strategy gives up or ctx
// is cancelled.
func Dial(ctx context.Context, addr string) (net.Conn, error) {
	var lastErr error
	for a := retry.StartWithCancel(dialStrategy, nil, ctx.Done()); a.Next(); {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		log.Printf("cannot connect to instrument at %v: %v", addr, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errgo.Mask(err, errgo.Any)
	}
	return nil, errgo.Notef(lastErr, "cannot connect to instrument at %v", addr)
}
