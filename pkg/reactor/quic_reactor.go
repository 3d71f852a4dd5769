package reactor

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/quic-go/quic-go"
)

const defaultUDPBufferSize int = 1 << 20

// QUICConfig configures the default QUIC-backed Reactor, ported from
// grinta's TransportConfig: one UDP socket, one QUIC transport,
// mTLS-secured streams used as the raw byte surface for whatever wire
// codec the caller's ConnectionFactory layers on top.
type QUICConfig struct {
	// BindAddr/BindPort is where this reactor listens for inbound
	// QUIC connections (accepted connections are not surfaced to
	// rpcconn today: it is a client-only consumer of this reactor,
	// but keeping a listener lets the same binary act as both ends in
	// tests and examples).
	BindAddr string
	BindPort int

	// TLSConfig secures every dialed and accepted connection. Required.
	TLSConfig *tls.Config

	// BufferSize of the requested UDP kernel read buffer.
	BufferSize int

	// GracePeriod is how long Stop waits for in-flight streams to
	// drain before tearing down the UDP socket, ported from grinta's
	// Transport.Shutdown.
	GracePeriod time.Duration

	MetricSink   metrics.MetricSink
	MetricLabels []metrics.Label
	LogHandler   slog.Handler
}

// QUICReactor is the default, production Reactor implementation.
type QUICReactor struct {
	cfg    QUICConfig
	logger *slog.Logger
	msink  metrics.MetricSink

	mu      sync.Mutex
	running bool
	udpLn   *net.UDPConn
	tr      *quic.Transport
	ln      *quic.Listener

	gracefulTerm atomic.Bool
	stopCh       chan struct{}
}

// NewQUICReactor allocates a UDP socket and a QUIC transport, but does
// not start accepting connections until Start is called. opts are
// applied over cfg in order, mirroring rpcconn.Option's functional-
// options pattern.
func NewQUICReactor(cfg QUICConfig, opts ...QUICOption) (*QUICReactor, error) {
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, fmt.Errorf("reactor: invalid configuration: %w", err)
		}
	}

	if cfg.TLSConfig == nil {
		return nil, fmt.Errorf("reactor: TLSConfig is required")
	}

	r := &QUICReactor{cfg: cfg, stopCh: make(chan struct{})}

	if cfg.LogHandler != nil {
		r.logger = slog.New(cfg.LogHandler)
	} else {
		r.logger = slog.Default()
	}

	if cfg.MetricSink != nil {
		r.msink = cfg.MetricSink
	} else {
		r.msink = metrics.Default()
	}

	return r, nil
}

func (r *QUICReactor) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *QUICReactor) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	port := r.cfg.BindPort
	addr := net.ParseIP(r.cfg.BindAddr)
	if addr == nil {
		addr = net.IPv4zero
	}

	udpLn, err := net.ListenUDP("udp", &net.UDPAddr{IP: addr, Port: port})
	if err != nil {
		return fmt.Errorf("reactor: failed to allocate UDP listener: %w", err)
	}

	if err := negociateBufferSize(udpLn, r.bufferSize(), r.logger); err != nil {
		udpLn.Close()
		return err
	}

	tr := &quic.Transport{Conn: udpLn}
	ln, err := tr.Listen(r.cfg.TLSConfig, &quic.Config{
		Versions:       []quic.Version{quic.Version2, quic.Version1},
		MaxIdleTimeout: time.Minute,
	})
	if err != nil {
		udpLn.Close()
		return fmt.Errorf("reactor: failed to allocate QUIC listener: %w", err)
	}

	r.udpLn = udpLn
	r.tr = tr
	r.ln = ln
	r.running = true
	r.gracefulTerm.Store(false)
	r.stopCh = make(chan struct{})
	return nil
}

func (r *QUICReactor) bufferSize() int {
	if r.cfg.BufferSize > 0 {
		return r.cfg.BufferSize
	}
	return defaultUDPBufferSize
}

func negociateBufferSize(conn *net.UDPConn, requested int, logger *slog.Logger) error {
	size := requested
	for size > 0 {
		if err := conn.SetReadBuffer(size); err != nil {
			size = size >> 1
			continue
		}
		if size != requested {
			logger.Warn("using smaller than expected UDP buffer", "bytes", size)
		}
		return nil
	}
	return fmt.Errorf("reactor: could not allocate udp buffer")
}

func (r *QUICReactor) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stopCh)
	ln, tr, udpLn := r.ln, r.tr, r.udpLn
	r.mu.Unlock()

	r.gracefulTerm.Store(true)

	grace := r.cfg.GracePeriod
	if grace == 0 {
		grace = 2 * time.Second
	}

	if ln != nil {
		ln.Close()
	}

	select {
	case <-time.After(grace):
	case <-ctx.Done():
	}

	if tr != nil {
		tr.Close()
	}
	if udpLn != nil {
		udpLn.Close()
	}
	return nil
}

func (r *QUICReactor) Connect(ctx context.Context, host string, port int, timeout time.Duration) (RawConn, error) {
	r.mu.Lock()
	tr := r.tr
	r.mu.Unlock()
	if tr == nil {
		return nil, fmt.Errorf("reactor: not started")
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("reactor: invalid address %s:%d: %w", host, port, err)
	}

	cx, err := tr.Dial(dialCtx, addr, r.cfg.TLSConfig, &quic.Config{
		Versions:       []quic.Version{quic.Version2, quic.Version1},
		MaxIdleTimeout: time.Minute,
	})
	if err != nil {
		r.msink.IncrCounterWithLabels(
			[]string{"rpcconn", "reactor", "connect", "error", "count"},
			1.0,
			append(r.cfg.MetricLabels, metrics.Label{Name: "host", Value: host}),
		)
		return nil, err
	}

	stream, err := cx.OpenStreamSync(dialCtx)
	if err != nil {
		cx.CloseWithError(0, "failed to open initial stream")
		return nil, err
	}

	r.msink.IncrCounterWithLabels(
		[]string{"rpcconn", "reactor", "connect", "count"},
		1.0,
		append(r.cfg.MetricLabels, metrics.Label{Name: "host", Value: host}),
	)

	return &quicRawConn{
		Stream: stream,
		conn:   cx,
		host:   host,
		port:   port,
	}, nil
}

func (r *QUICReactor) ScheduleTimer(ctx context.Context, d time.Duration) <-chan TimerResult {
	out := make(chan TimerResult, 1)
	r.mu.Lock()
	stopCh := r.stopCh
	r.mu.Unlock()

	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			out <- TimerResult{Cancelled: false}
		case <-stopCh:
			out <- TimerResult{Cancelled: true}
		case <-ctx.Done():
			out <- TimerResult{Cancelled: true}
		}
	}()

	return out
}

type quicRawConn struct {
	quic.Stream
	conn quic.Connection
	host string
	port int
}

func (c *quicRawConn) Host() string { return c.host }
func (c *quicRawConn) Port() int    { return c.port }

func (c *quicRawConn) Close() error {
	err := c.Stream.Close()
	c.conn.CloseWithError(0, "stream closed")
	return err
}
