package rpcconn

import (
	"log/slog"
	"strconv"

	"github.com/hashicorp/go-metrics"
)

var (
	MetricConnAttemptCount    = []string{"rpcconn", "connection", "attempt", "count"}
	MetricConnEstablishCount  = []string{"rpcconn", "connection", "established", "count"}
	MetricConnFailedCount     = []string{"rpcconn", "connection", "failed", "count"}
	MetricConnClosedCount     = []string{"rpcconn", "connection", "closed", "count"}
	MetricBackoffDelaySeconds = []string{"rpcconn", "connection", "backoff", "seconds"}
	MetricRequestRetryCount   = []string{"rpcconn", "request", "retry", "count"}
	MetricRequestFailedCount  = []string{"rpcconn", "request", "failed", "count"}
)

// TelemetryLabel names a metrics/log attribute key shared between the
// structured logger and the metric sink, so the two stay consistent.
type TelemetryLabel string

const (
	LabelHost  TelemetryLabel = "host"
	LabelPort  TelemetryLabel = "port"
	LabelError TelemetryLabel = "error"
)

func (lab TelemetryLabel) M(val string) metrics.Label {
	return metrics.Label{Name: string(lab), Value: val}
}

func (lab TelemetryLabel) L(val any) slog.Attr {
	return slog.Attr{Key: string(lab), Value: slog.AnyValue(val)}
}

func endpointLabels(ep Endpoint, extra ...metrics.Label) []metrics.Label {
	labels := []metrics.Label{
		LabelHost.M(ep.Host),
		LabelPort.M(strconv.Itoa(ep.Port)),
	}
	return append(labels, extra...)
}
