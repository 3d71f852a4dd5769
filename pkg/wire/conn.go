package wire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/solvent-labs/rpcconn/pkg/reactor"
)

// ErrClosed is returned by SendMessage once the connection's close
// listener has fired, for any pending or future call.
var ErrClosed = errors.New("wire: connection closed")

// ProtocolConn is the protocol-connection contract rpcconn's
// reconnection driver consumes, produced by a ConnectionFactory from a
// reactor.RawConn. rpcconn treats it opaquely beyond this surface.
type ProtocolConn interface {
	Host() string
	Port() int

	// SendMessage sends payload and waits for the matching response.
	// Implementations that fail because the connection went away
	// mid-flight must return an error wrapping ErrClosed so that
	// rpcconn's retry logic can recognize it.
	SendMessage(ctx context.Context, payload []byte) ([]byte, error)

	// OnClosed registers listener to be invoked exactly once, with a
	// nil cause on a clean close or a non-nil cause on an unexpected
	// one. Calling OnClosed after the connection already closed
	// invokes listener immediately with the recorded cause.
	OnClosed(listener func(cause error))
}

// pendingCall is one in-flight SendMessage waiting for its response,
// queued in send order: DefaultConn does not reorder responses, it
// pairs them FIFO with the requests that produced them, matching the
// "no pipelining reordering" contract rpcconn's concurrency model
// assumes.
type pendingCall struct {
	result chan callResult
}

type callResult struct {
	payload []byte
	err     error
}

// DefaultConn is the default ProtocolConn: it frames requests/responses
// with a Codec over a single reactor.RawConn stream, and pairs
// responses with requests in the order they were sent.
type DefaultConn struct {
	raw   reactor.RawConn
	codec Codec

	writeMu sync.Mutex

	mu      sync.Mutex
	pending []*pendingCall
	closed  bool
	cause   error
	readers []func(error)
}

// NewDefaultConn wraps raw and starts its response-reading goroutine.
func NewDefaultConn(raw reactor.RawConn, codec Codec) *DefaultConn {
	c := &DefaultConn{raw: raw, codec: codec}
	go c.readLoop()
	return c
}

func (c *DefaultConn) Host() string { return c.raw.Host() }
func (c *DefaultConn) Port() int    { return c.raw.Port() }

func (c *DefaultConn) SendMessage(ctx context.Context, payload []byte) ([]byte, error) {
	c.mu.Lock()
	if c.closed {
		err := c.cause
		c.mu.Unlock()
		if err == nil {
			err = ErrClosed
		}
		return nil, fmt.Errorf("%w: %w", ErrClosed, err)
	}
	call := &pendingCall{result: make(chan callResult, 1)}
	c.pending = append(c.pending, call)
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.codec.Encode(c.raw, payload)
	c.writeMu.Unlock()
	if err != nil {
		c.failAll(err)
		return nil, fmt.Errorf("%w: %w", ErrClosed, err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-call.result:
		return res.payload, res.err
	}
}

func (c *DefaultConn) OnClosed(listener func(cause error)) {
	c.mu.Lock()
	if c.closed {
		cause := c.cause
		c.mu.Unlock()
		listener(cause)
		return
	}
	c.readers = append(c.readers, listener)
	c.mu.Unlock()
}

func (c *DefaultConn) readLoop() {
	for {
		payload, err := c.codec.Decode(c.raw)
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.failAll(nil)
			} else {
				c.failAll(err)
			}
			return
		}

		c.mu.Lock()
		if len(c.pending) == 0 {
			c.mu.Unlock()
			// Protocol violation: a response with no matching
			// request. Drop it, the remote is misbehaving.
			continue
		}
		call := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()

		call.result <- callResult{payload: payload}
	}
}

// failAll marks the connection closed with cause, fails every pending
// call with ErrClosed, and notifies OnClosed listeners exactly once.
// A nil cause means a clean close (io.EOF from a graceful peer
// shutdown is translated to nil by readLoop).
func (c *DefaultConn) failAll(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cause = cause
	pending := c.pending
	c.pending = nil
	readers := c.readers
	c.mu.Unlock()

	pendingErr := ErrClosed
	if cause != nil {
		pendingErr = fmt.Errorf("%w: %w", ErrClosed, cause)
	}
	for _, call := range pending {
		call.result <- callResult{err: pendingErr}
	}
	for _, listener := range readers {
		listener(cause)
	}
}

// Close tears down the underlying raw connection and reports a clean
// close (nil cause) to listeners and pending calls.
func (c *DefaultConn) Close() error {
	c.failAll(nil)
	return c.raw.Close()
}
