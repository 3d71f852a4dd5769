// Package reactor defines the I/O reactor contract consumed by
// rpcconn's reconnection drivers, and ships a default implementation
// backed by QUIC ([quic_reactor.go]).
//
// rpcconn never touches sockets or timers directly: it asks a Reactor
// to do both, and the Reactor answers on the caller's goroutine (this
// package does not launch goroutines of its own beyond what its
// implementations need internally), letting rpcconn compose the result
// with its own cancellation via context.Context.
package reactor

import (
	"context"
	"io"
	"time"
)

// RawConn is the byte-level connection a Reactor hands back from
// Connect. It is consumed by a wire codec, never by rpcconn
// itself.
type RawConn interface {
	io.ReadWriteCloser
	Host() string
	Port() int
}

// TimerResult is delivered on the channel returned by ScheduleTimer.
// Cancelled is true when the timer never got to fire naturally because
// the reactor was stopped (or the context passed to ScheduleTimer was
// cancelled) first.
type TimerResult struct {
	Cancelled bool
}

// Reactor is the external, pluggable I/O driver rpcconn's reconnection
// drivers are built on top of. Start/Stop are idempotent. All methods
// may be called concurrently from multiple goroutines (rpcconn runs one
// driver goroutine per endpoint).
type Reactor interface {
	// Running reports whether the reactor is currently started.
	Running() bool

	// Start brings the reactor up. It returns once running, or if ctx
	// is cancelled first.
	Start(ctx context.Context) error

	// Stop brings the reactor down, closing anything it owns. It
	// returns once stopped.
	Stop(ctx context.Context) error

	// Connect dials host:port, bounded by timeout, and returns the
	// raw connection on success.
	Connect(ctx context.Context, host string, port int, timeout time.Duration) (RawConn, error)

	// ScheduleTimer returns a channel that receives exactly one
	// TimerResult after d elapses, or earlier with Cancelled: true if
	// the reactor is stopped (or ctx is cancelled) first.
	ScheduleTimer(ctx context.Context, d time.Duration) <-chan TimerResult
}
