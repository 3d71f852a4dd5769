package rpcconn

import (
	"log/slog"
	"time"

	"github.com/hashicorp/go-metrics"
)

type config struct {
	connectionTimeout time.Duration
	routingStrategy   RoutingStrategy
	logHandler        slog.Handler
	msink             metrics.MetricSink
	metricLabels      []metrics.Label
}

func defaultConfig() config {
	return config{
		connectionTimeout: 5 * time.Second,
		routingStrategy:   UniformRandomStrategy,
	}
}

// Option configures a Client at construction, mirroring grinta's
// functional-options pattern (options.go) rather than a struct literal.
type Option func(*config) error

// WithConnectionTimeout sets the per-attempt Connect timeout and the
// base unit for the exponential backoff schedule (see backoffDelay).
func WithConnectionTimeout(d time.Duration) Option {
	return func(c *config) error {
		if d <= 0 {
			return ErrInvalidCfg
		}
		c.connectionTimeout = d
		return nil
	}
}

// WithRoutingStrategy overrides the default uniform-random strategy.
func WithRoutingStrategy(strategy RoutingStrategy) Option {
	return func(c *config) error {
		if strategy == nil {
			return ErrInvalidCfg
		}
		c.routingStrategy = strategy
		return nil
	}
}

// WithLogHandler chooses which slog.Handler structured logs are
// emitted through. Defaults to slog.Default().
func WithLogHandler(handler slog.Handler) Option {
	return func(c *config) error {
		c.logHandler = handler
		return nil
	}
}

// WithMetricSink chooses which metrics.MetricSink receives this
// client's counters/gauges. Defaults to metrics.Default().
func WithMetricSink(sink metrics.MetricSink) Option {
	return func(c *config) error {
		c.msink = sink
		return nil
	}
}

// WithMetricLabels adds static labels to every metric this client
// emits, e.g. to identify which logical caller owns the client.
func WithMetricLabels(labels []metrics.Label) Option {
	return func(c *config) error {
		c.metricLabels = labels
		return nil
	}
}
