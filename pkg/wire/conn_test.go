package wire

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// pipeRawConn adapts a net.Conn (as returned by net.Pipe) to
// reactor.RawConn for tests, since reactor.RawConn only adds Host/Port
// on top of io.ReadWriteCloser.
type pipeRawConn struct {
	net.Conn
	host string
	port int
}

func (p *pipeRawConn) Host() string { return p.host }
func (p *pipeRawConn) Port() int    { return p.port }

func newConnPair(t *testing.T) (*DefaultConn, *DefaultConn) {
	t.Helper()
	client, server := net.Pipe()

	clientConn := NewDefaultConn(&pipeRawConn{Conn: client, host: "client", port: 1}, BytesCodec{})
	serverConn := NewDefaultConn(&pipeRawConn{Conn: server, host: "server", port: 2}, BytesCodec{})
	return clientConn, serverConn
}

func TestDefaultConnSendMessageRoundTrip(t *testing.T) {
	clientEnd, serverEnd := net.Pipe()
	client := NewDefaultConn(&pipeRawConn{Conn: clientEnd, host: "client", port: 1}, BytesCodec{})
	defer client.Close()
	defer serverEnd.Close()

	// The server side is a bare pipe end rather than a DefaultConn: a
	// DefaultConn's own readLoop would compete with this goroutine for
	// the request bytes.
	codec := BytesCodec{}
	go func() {
		payload, err := codec.Decode(serverEnd)
		if err != nil {
			return
		}
		_ = codec.Encode(serverEnd, append([]byte("echo: "), payload...))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	resp, err := client.SendMessage(ctx, []byte("hi"))
	require.NoError(t, err)
	require.Equal(t, []byte("echo: hi"), resp)
}

func TestDefaultConnCloseFailsPendingCalls(t *testing.T) {
	client, server := newConnPair(t)
	defer server.Close()

	resultCh := make(chan error, 1)
	go func() {
		_, err := client.SendMessage(context.Background(), []byte("hi"))
		resultCh <- err
	}()

	// Give SendMessage a chance to register its pending call before we
	// tear the connection down.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, client.Close())

	select {
	case err := <-resultCh:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("SendMessage did not return after Close")
	}
}

func TestDefaultConnOnClosedFiresOnCleanClose(t *testing.T) {
	client, server := newConnPair(t)
	defer server.Close()

	closedCh := make(chan error, 1)
	client.OnClosed(func(cause error) { closedCh <- cause })

	require.NoError(t, client.Close())

	select {
	case cause := <-closedCh:
		require.NoError(t, cause)
	case <-time.After(time.Second):
		t.Fatal("OnClosed listener never fired")
	}
}

func TestDefaultConnOnClosedFiresImmediatelyIfAlreadyClosed(t *testing.T) {
	client, server := newConnPair(t)
	defer server.Close()

	require.NoError(t, client.Close())

	fired := false
	client.OnClosed(func(cause error) { fired = true })
	require.True(t, fired)
}

func TestDefaultConnRemoteCloseIsReportedAsClean(t *testing.T) {
	client, server := newConnPair(t)
	defer client.Close()

	closedCh := make(chan error, 1)
	client.OnClosed(func(cause error) { closedCh <- cause })

	require.NoError(t, server.Close())

	select {
	case cause := <-closedCh:
		require.NoError(t, cause)
	case <-time.After(time.Second):
		t.Fatal("OnClosed listener never fired after remote close")
	}
}
