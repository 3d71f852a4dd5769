package rpcconn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-metrics"
	"github.com/solvent-labs/rpcconn/pkg/reactor"
)

// Lifecycle is one of a Client's monotonic lifecycle states. It never
// moves backwards, and a Client that reaches LifecycleStopped is not
// restartable: construct a new one instead.
type Lifecycle uint8

const (
	LifecycleUnstarted Lifecycle = iota
	LifecycleStarting
	LifecycleStarted
	LifecycleStopping
	LifecycleStopped
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleUnstarted:
		return "unstarted"
	case LifecycleStarting:
		return "starting"
	case LifecycleStarted:
		return "started"
	case LifecycleStopping:
		return "stopping"
	case LifecycleStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Client is the RPC client connection manager. It keeps one
// reconnectDriver alive per configured Endpoint, routes SendRequest
// calls across whichever connections are currently open, and retries
// requests that fail because their connection closed mid-flight.
//
// Every exported method is safe for concurrent use.
type Client struct {
	cfg     config
	reactor reactor.Reactor
	factory ConnectionFactory
	logger  *slog.Logger
	msink   metrics.MetricSink

	endpoints []Endpoint
	reg       *registry

	mu        sync.RWMutex
	lifecycle Lifecycle

	drivers      []*reconnectDriver
	driverCancel context.CancelFunc
	driverWG     sync.WaitGroup

	// events is the single logical queue every registry mutation flows
	// through, so drivers running concurrently never race each other or
	// a concurrent SendRequest snapshot. lifecycle is guarded by mu.
	events  chan driverEvent
	runStop chan struct{}
}

// New constructs a Client for the given fixed endpoint list. reactor
// and factory are required. The client is not started; call Start to
// bring up the reconnection drivers.
func New(endpoints []Endpoint, rtr reactor.Reactor, factory ConnectionFactory, opts ...Option) (*Client, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("%w: at least one endpoint is required", ErrInvalidCfg)
	}
	if rtr == nil {
		return nil, fmt.Errorf("%w: a reactor is required", ErrInvalidCfg)
	}
	if factory == nil {
		return nil, fmt.Errorf("%w: a connection factory is required", ErrInvalidCfg)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCfg, err)
		}
	}

	var logger *slog.Logger
	if cfg.logHandler != nil {
		logger = slog.New(cfg.logHandler)
	} else {
		logger = slog.Default()
	}

	msink := cfg.msink
	if msink == nil {
		msink = metrics.Default()
	}

	eps := make([]Endpoint, len(endpoints))
	copy(eps, endpoints)

	return &Client{
		cfg:       cfg,
		reactor:   rtr,
		factory:   factory,
		logger:    logger,
		msink:     msink,
		endpoints: eps,
		reg:       newRegistry(eps),
		events:    make(chan driverEvent, 64),
		runStop:   make(chan struct{}),
	}, nil
}

// Start brings the reactor up (if not already running), launches one
// reconnection driver per endpoint, and blocks until every endpoint has
// produced its first live connection or ctx is cancelled first. If the
// reactor stops before all drivers succeed, or if ctx is cancelled
// first, Start returns a *ConnectionError wrapping
// ErrReactorStoppedWhileConnecting.
func (cl *Client) Start(ctx context.Context) error {
	cl.mu.Lock()
	if cl.lifecycle != LifecycleUnstarted {
		lifecycle := cl.lifecycle
		cl.mu.Unlock()
		if lifecycle == LifecycleStarted {
			return nil
		}
		return ErrAlreadyStarted
	}

	// The lifecycle transition and the driverCancel/drivers/driverWG
	// setup happen inside the same critical section: that way, a
	// concurrent Stop can never observe LifecycleStarting without
	// driverWG.Add already having run for it, which is what rules out
	// Stop reaching driverWG.Wait() before Start's Add (a documented
	// sync.WaitGroup misuse).
	cl.lifecycle = LifecycleStarting
	driverCtx, cancel := context.WithCancel(context.Background())
	cl.driverCancel = cancel
	drivers := make([]*reconnectDriver, len(cl.endpoints))
	for i, ep := range cl.endpoints {
		drivers[i] = newReconnectDriver(i, ep, cl)
	}
	cl.drivers = drivers
	cl.driverWG.Add(len(drivers))
	cl.mu.Unlock()

	if err := cl.reactor.Start(ctx); err != nil {
		cancel()
		cl.driverWG.Add(-len(drivers))
		return newConnectionError(err)
	}

	go cl.run()
	for _, d := range drivers {
		go d.run(driverCtx)
	}

	for _, d := range drivers {
		select {
		case err := <-d.firstSuccess:
			if err != nil {
				_ = cl.Stop(context.Background())
				return err
			}
		case <-ctx.Done():
			_ = cl.Stop(context.Background())
			return newConnectionError(ErrReactorStoppedWhileConnecting)
		}
	}

	cl.mu.Lock()
	cl.lifecycle = LifecycleStarted
	cl.mu.Unlock()
	return nil
}

// Stop requests the reactor to stop, which unblocks every pending
// reconnection attempt, waits for every driver goroutine to exit, then
// returns. It is idempotent: calling Stop more than once is a no-op
// after the first call.
func (cl *Client) Stop(ctx context.Context) error {
	cl.mu.Lock()
	switch cl.lifecycle {
	case LifecycleStopping, LifecycleStopped:
		cl.mu.Unlock()
		return nil
	}
	cl.lifecycle = LifecycleStopping
	cancel := cl.driverCancel
	cl.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	err := cl.reactor.Stop(ctx)
	cl.driverWG.Wait()
	close(cl.runStop)

	cl.mu.Lock()
	cl.lifecycle = LifecycleStopped
	cl.mu.Unlock()

	return err
}

// SendRequest asks the routing strategy for a live connection and
// forwards payload through it, retrying transparently against a
// (possibly different) live connection if the chosen one reports
// ErrConnectionClosed. Any other failure, or ctx expiring, is returned
// to the caller unchanged.
func (cl *Client) SendRequest(ctx context.Context, payload []byte) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if cl.lifecycleState() != LifecycleStarted {
			return nil, newConnectionError(ErrNotStarted)
		}

		live := cl.reg.liveSet()
		if len(live) == 0 {
			return nil, newConnectionError(ErrNoLiveConnection)
		}

		entry := cl.cfg.routingStrategy(live, payload)
		if entry == nil {
			return nil, newConnectionError(ErrNoLiveConnection)
		}

		resp, err := entry.Conn.SendMessage(ctx, payload)
		if err == nil {
			return resp, nil
		}

		if errors.Is(err, ErrConnectionClosed) {
			cl.logger.Warn("request failed because the connection closed, retrying",
				LabelHost.L(entry.Endpoint.Host), LabelPort.L(entry.Endpoint.Port))
			cl.msink.IncrCounterWithLabels(MetricRequestRetryCount, 1.0, endpointLabels(entry.Endpoint, cl.cfg.metricLabels...))
			continue
		}

		cl.logger.Warn(fmt.Sprintf("request failed: %s", err),
			LabelHost.L(entry.Endpoint.Host), LabelPort.L(entry.Endpoint.Port))
		cl.msink.IncrCounterWithLabels(MetricRequestFailedCount, 1.0, endpointLabels(entry.Endpoint, cl.cfg.metricLabels...))
		return nil, err
	}
}

// Connected reports whether the client is started and has at least one
// live connection.
func (cl *Client) Connected() bool {
	return cl.lifecycleState() == LifecycleStarted && cl.reg.isLive()
}

// Entries returns a snapshot of every configured endpoint's current
// ConnectionEntry, for observability/testing.
func (cl *Client) Entries() []*ConnectionEntry {
	return cl.reg.all()
}

func (cl *Client) lifecycleState() Lifecycle {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return cl.lifecycle
}

// run is the client's single serializer goroutine: every registry
// mutation a driver asks for is applied here, and nowhere else.
func (cl *Client) run() {
	for {
		select {
		case ev := <-cl.events:
			cl.apply(ev)
		case <-cl.runStop:
			return
		}
	}
}

func (cl *Client) apply(ev driverEvent) {
	entry := cl.reg.get(ev.idx).snapshot()
	switch ev.kind {
	case evConnecting:
		entry.State = StateConnecting
		entry.AttemptCount = ev.attemptCount
	case evOpened:
		entry.State = StateOpen
		entry.Conn = ev.conn
		entry.AttemptCount = 0
	case evClosed:
		entry.State = StateClosed
		entry.Conn = nil
	case evTerminated:
		entry.State = StateTerminated
		entry.Conn = nil
	}
	cl.reg.set(ev.idx, entry)
}
