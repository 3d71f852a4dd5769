package rpcconn

import (
	"context"

	"github.com/solvent-labs/rpcconn/pkg/reactor"
)

// ProtocolConn is the subset of pkg/wire.ProtocolConn the client needs;
// declared again here (structurally identical) so this package does
// not have to import pkg/wire just to name the interface its
// ConnectionFactory hook must produce. Any pkg/wire.ProtocolConn
// satisfies it.
type ProtocolConn interface {
	Host() string
	Port() int
	SendMessage(ctx context.Context, payload []byte) ([]byte, error)
	OnClosed(listener func(cause error))
}

// ConnectionFactory is the client's only extension point, replacing
// the reference implementation's subclass hooks with an explicit
// capability interface supplied at construction: no inheritance, just
// an interface the client holds.
type ConnectionFactory interface {
	// CreateConnection wraps a freshly dialed raw connection. Required.
	CreateConnection(raw reactor.RawConn) (ProtocolConn, error)

	// InitializeConnection runs an optional handshake after wrapping,
	// before the entry is allowed to enter StateOpen. A failure here
	// is treated identically to a connect failure: the driver backs
	// off and retries.
	InitializeConnection(ctx context.Context, conn ProtocolConn) error
}

// NoopInitializer can be embedded by a ConnectionFactory that has no
// handshake to perform, so it only needs to implement CreateConnection.
type NoopInitializer struct{}

func (NoopInitializer) InitializeConnection(context.Context, ProtocolConn) error {
	return nil
}
