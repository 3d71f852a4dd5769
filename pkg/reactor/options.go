package reactor

import (
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/hashicorp/go-metrics"
)

// QUICOption configures a QUICReactor at construction, mirroring the
// functional-options pattern used for the root rpcconn.Client.
type QUICOption func(*QUICConfig) error

// WithBindAddr controls which local UDP interface the reactor listens
// and dials from.
func WithBindAddr(addr string, port int) QUICOption {
	return func(c *QUICConfig) error {
		c.BindAddr = addr
		c.BindPort = port
		return nil
	}
}

// WithTLSConfig sets the TLS configuration used to secure every dialed
// and accepted connection. Required; NewQUICReactor rejects a config
// that still has a nil TLSConfig once options are applied.
func WithTLSConfig(tlsCfg *tls.Config) QUICOption {
	return func(c *QUICConfig) error {
		c.TLSConfig = tlsCfg
		return nil
	}
}

// WithUDPBufferSize overrides the requested UDP kernel read buffer.
func WithUDPBufferSize(size int) QUICOption {
	return func(c *QUICConfig) error {
		c.BufferSize = size
		return nil
	}
}

// WithShutdownGracePeriod controls how long Stop waits for in-flight
// streams to drain before tearing down the UDP socket, ported from
// grinta's WithGracePeriod. Defaults to 2s if never set or set to 0.
func WithShutdownGracePeriod(period time.Duration) QUICOption {
	return func(c *QUICConfig) error {
		if period == 0 {
			period = 2 * time.Second
		}
		c.GracePeriod = period
		return nil
	}
}

// WithMetricSink chooses which metrics.MetricSink the reactor emits
// connect counters through.
func WithMetricSink(sink metrics.MetricSink) QUICOption {
	return func(c *QUICConfig) error {
		c.MetricSink = sink
		return nil
	}
}

// WithMetricLabels adds static labels to every metric the reactor emits.
func WithMetricLabels(labels []metrics.Label) QUICOption {
	return func(c *QUICConfig) error {
		c.MetricLabels = labels
		return nil
	}
}

// WithLogHandler chooses which slog.Handler the reactor logs through.
func WithLogHandler(handler slog.Handler) QUICOption {
	return func(c *QUICConfig) error {
		c.LogHandler = handler
		return nil
	}
}
