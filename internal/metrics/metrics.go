// Package metrics exposes Prometheus-compatible counters and gauges for the
// subscription engine. All fields are updated atomically so they can be
// read concurrently from an HTTP handler without holding any additional
// lock.
//
// # Metric catalogue
//
//	geyser_connection_attempts_total   – counter: times the engine opened a gRPC connection
//	geyser_connection_errors_total     – counter: connection attempts that failed
//	geyser_reconnect_attempts_total    – counter: reconnect cycles after a transient error
//	geyser_updates_forwarded_total     – counter: updates delivered to the output adapter
//	geyser_stream_send_errors_total    – counter: errors returned by stream.Send
//	geyser_stream_recv_errors_total    – counter: errors returned by stream.Recv (non-EOF)
//	geyser_connected                   – gauge:   1 when a stream is active, 0 otherwise
//	geyser_active_subscriptions        – gauge:   number of subscriptions currently registered
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
)

// Metrics holds every counter and gauge for one or more subscriptions. The
// zero value is ready to use.
type Metrics struct {
	ConnectionAttempts atomic.Int64
	ConnectionErrors   atomic.Int64
	ReconnectAttempts  atomic.Int64
	UpdatesForwarded   atomic.Int64
	StreamSendErrors   atomic.Int64
	StreamRecvErrors   atomic.Int64

	Connected           atomic.Int64
	ActiveSubscriptions atomic.Int64
}

// New allocates a new Metrics value with all counters at zero.
func New() *Metrics {
	return &Metrics{}
}

type metricLine struct {
	help  string
	kind  string
	name  string
	value int64
}

func (m *Metrics) snapshot() []metricLine {
	return []metricLine{
		{"Total number of gRPC connection attempts made by the engine.", "counter", "geyser_connection_attempts_total", m.ConnectionAttempts.Load()},
		{"Total number of gRPC connection attempts that returned an error.", "counter", "geyser_connection_errors_total", m.ConnectionErrors.Load()},
		{"Total number of reconnection cycles initiated after a transient error.", "counter", "geyser_reconnect_attempts_total", m.ReconnectAttempts.Load()},
		{"Total number of updates delivered to an output adapter.", "counter", "geyser_updates_forwarded_total", m.UpdatesForwarded.Load()},
		{"Total number of stream.Send calls that returned an error.", "counter", "geyser_stream_send_errors_total", m.StreamSendErrors.Load()},
		{"Total number of stream.Recv calls that returned a non-EOF error.", "counter", "geyser_stream_recv_errors_total", m.StreamRecvErrors.Load()},
		{"1 when a bidirectional stream is currently active, 0 otherwise.", "gauge", "geyser_connected", m.Connected.Load()},
		{"Number of subscriptions currently registered.", "gauge", "geyser_active_subscriptions", m.ActiveSubscriptions.Load()},
	}
}

// Handler returns an http.Handler that writes every metric in the
// Prometheus text exposition format on each GET request.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		writeMetrics(w, m.snapshot())
	})
}

func writeMetrics(w io.Writer, lines []metricLine) {
	for _, l := range lines {
		fmt.Fprintf(w, "# HELP %s %s\n", l.name, l.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", l.name, l.kind)
		fmt.Fprintf(w, "%s %d\n", l.name, l.value)
	}
}
