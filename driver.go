package rpcconn

import (
	"context"
	"fmt"
	"runtime"

	"github.com/hashicorp/go-metrics"
)

// driverEventKind names the registry mutation a reconnectDriver is
// asking the client's serializer goroutine to apply. The driver
// goroutine itself never touches the registry directly: every
// transition is funneled through Client.events so registry/lifecycle
// state only ever changes on Client.run (see §5 of SPEC_FULL.md).
type driverEventKind uint8

const (
	evConnecting driverEventKind = iota
	evOpened
	evClosed
	evTerminated
)

type driverEvent struct {
	idx          int
	kind         driverEventKind
	conn         ProtocolConn
	attemptCount int
}

// reconnectDriver owns one endpoint's ConnectionEntry for the whole
// life of the client: it is the only goroutine that calls Connect,
// CreateConnection and InitializeConnection for that endpoint, and the
// only one that decides when to back off.
type reconnectDriver struct {
	idx      int
	endpoint Endpoint
	client   *Client

	// firstSuccess receives exactly one value: nil once the endpoint
	// has opened its first connection, or an error if the driver
	// terminated before ever succeeding.
	firstSuccess chan error
}

func newReconnectDriver(idx int, ep Endpoint, c *Client) *reconnectDriver {
	return &reconnectDriver{
		idx:          idx,
		endpoint:     ep,
		client:       c,
		firstSuccess: make(chan error, 1),
	}
}

func (d *reconnectDriver) run(ctx context.Context) {
	defer d.client.driverWG.Done()

	everOpened := false
	attempt := 1

	for {
		d.publish(evConnecting, nil, attempt)
		d.client.logger.Debug(
			fmt.Sprintf("connecting to %s", d.endpoint),
			LabelHost.L(d.endpoint.Host), LabelPort.L(d.endpoint.Port),
		)
		d.client.msink.IncrCounterWithLabels(MetricConnAttemptCount, 1.0, d.labels())

		conn, err := d.attempt(ctx)
		if err == nil {
			everOpened = true
			d.publish(evOpened, conn, 0)
			// Wait for the open to be applied to the registry before
			// signalling first success, so Start never returns while
			// Connected or the live set still lag behind.
			for d.client.reg.get(d.idx).State != StateOpen {
				runtime.Gosched()
			}
			d.client.logger.Info(
				fmt.Sprintf("connected to %s", d.endpoint),
				LabelHost.L(d.endpoint.Host), LabelPort.L(d.endpoint.Port),
			)
			d.client.msink.IncrCounterWithLabels(MetricConnEstablishCount, 1.0, d.labels())
			d.signalFirstSuccess(nil)

			cause, stopped := d.waitClosed(ctx, conn)
			if stopped {
				d.terminate(everOpened)
				return
			}
			if cause == nil {
				d.client.logger.Info(
					fmt.Sprintf("connection to %s closed", d.endpoint),
					LabelHost.L(d.endpoint.Host), LabelPort.L(d.endpoint.Port),
				)
				d.publish(evTerminated, nil, 0)
				d.client.msink.IncrCounterWithLabels(MetricConnClosedCount, 1.0, d.labels())
				return
			}

			d.client.logger.Warn(
				fmt.Sprintf("connection to %s closed unexpectedly: %s", d.endpoint, cause),
				LabelHost.L(d.endpoint.Host), LabelPort.L(d.endpoint.Port), LabelError.L(cause.Error()),
			)
			d.client.msink.IncrCounterWithLabels(MetricConnClosedCount, 1.0, d.labels())
			d.publish(evClosed, nil, 0)
			attempt = 1
			continue
		}

		attempt++
		delay := backoffDelay(d.client.cfg.connectionTimeout, attempt)
		d.client.logger.Warn(
			fmt.Sprintf("failed connecting to %s, will try again in %.0fs", d.endpoint, delay.Seconds()),
			LabelHost.L(d.endpoint.Host), LabelPort.L(d.endpoint.Port), LabelError.L(err.Error()),
		)
		d.client.msink.IncrCounterWithLabels(MetricConnFailedCount, 1.0, d.labels())
		d.client.msink.SetGaugeWithLabels(MetricBackoffDelaySeconds, float32(delay.Seconds()), d.labels())

		timerRes := <-d.client.reactor.ScheduleTimer(ctx, delay)
		if timerRes.Cancelled || !d.client.reactor.Running() {
			d.terminate(everOpened)
			return
		}
	}
}

// attempt performs exactly one connect+wrap+initialize cycle.
func (d *reconnectDriver) attempt(ctx context.Context) (ProtocolConn, error) {
	raw, err := d.client.reactor.Connect(ctx, d.endpoint.Host, d.endpoint.Port, d.client.cfg.connectionTimeout)
	if err != nil {
		return nil, err
	}

	conn, err := d.client.factory.CreateConnection(raw)
	if err != nil {
		return nil, err
	}

	if err := d.client.factory.InitializeConnection(ctx, conn); err != nil {
		return nil, err
	}

	return conn, nil
}

// waitClosed blocks until conn's close listener fires, returning its
// cause (nil means clean close), or returns stopped=true if ctx is
// cancelled first (client Stop).
func (d *reconnectDriver) waitClosed(ctx context.Context, conn ProtocolConn) (cause error, stopped bool) {
	closedCh := make(chan error, 1)
	conn.OnClosed(func(c error) { closedCh <- c })

	select {
	case <-ctx.Done():
		return nil, true
	case c := <-closedCh:
		return c, false
	}
}

func (d *reconnectDriver) terminate(everOpened bool) {
	d.publish(evTerminated, nil, 0)
	if !everOpened {
		d.signalFirstSuccess(newConnectionError(ErrReactorStoppedWhileConnecting))
	}
}

func (d *reconnectDriver) signalFirstSuccess(err error) {
	select {
	case d.firstSuccess <- err:
	default:
		// already signaled once, nothing to do.
	}
}

func (d *reconnectDriver) publish(kind driverEventKind, conn ProtocolConn, attempt int) {
	d.client.events <- driverEvent{idx: d.idx, kind: kind, conn: conn, attemptCount: attempt}
}

func (d *reconnectDriver) labels() []metrics.Label {
	return append(endpointLabels(d.endpoint), d.client.cfg.metricLabels...)
}
