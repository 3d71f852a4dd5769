package rpcconn

import (
	"errors"
	"fmt"

	"github.com/solvent-labs/rpcconn/pkg/wire"
)

var (
	// ErrInvalidCfg is returned by New when construction options are
	// invalid or contradictory.
	ErrInvalidCfg = errors.New("rpcconn: invalid configuration")

	// ErrNotStarted is wrapped into a ConnectionError by SendRequest
	// when the client lifecycle is not started.
	ErrNotStarted = errors.New("rpcconn: client is not started")

	// ErrNoLiveConnection is wrapped into a ConnectionError by
	// SendRequest when the live set is empty.
	ErrNoLiveConnection = errors.New("rpcconn: no live connection available")

	// ErrReactorStoppedWhileConnecting is wrapped into a ConnectionError
	// by Start when the reactor stops before every driver has produced
	// its first successful connection.
	ErrReactorStoppedWhileConnecting = errors.New("io reactor stopped while connecting")

	// ErrAlreadyStarted is returned by Start when the client is already
	// starting, stopping or stopped. Start on a started client returns nil.
	ErrAlreadyStarted = errors.New("rpcconn: client already started")

)

// ErrConnectionClosed must be returned (or wrapped, via errors.Is) by
// a ProtocolConn.SendMessage implementation to signal that the
// underlying connection went away mid-request. SendRequest treats it
// specially: the request is retried against the live set rather than
// propagated to the caller. It is the same sentinel pkg/wire.DefaultConn
// uses, so custom ConnectionFactory implementations that delegate to
// pkg/wire get retry behavior for free.
var ErrConnectionClosed = wire.ErrClosed

// ConnectionError is the taxonomy kind surfaced by SendRequest and Start
// when no viable connection is available. Callers should classify errors
// with errors.Is against the sentinels above, not by inspecting the
// message.
type ConnectionError struct {
	cause error
}

func newConnectionError(cause error) *ConnectionError {
	return &ConnectionError{cause: cause}
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("rpcconn: connection error: %s", e.cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.cause
}

// ClosedBy distinguishes why a ProtocolConn's close listener fired.
type ClosedBy uint8

const (
	ClosedByUnknown ClosedBy = iota
	ClosedByRemote
	ClosedByUser
	ClosedByReactor
)

func (cause ClosedBy) String() string {
	switch cause {
	case ClosedByRemote:
		return "remote"
	case ClosedByUser:
		return "explicit user close"
	case ClosedByReactor:
		return "reactor shutdown"
	default:
		return "unknown"
	}
}
