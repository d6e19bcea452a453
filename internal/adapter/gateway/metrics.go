package gateway

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Metrics tracks counters for the metrics endpoint.
type Metrics struct {
	ChatRequests    atomic.Int64
	ToolCallsTotal  atomic.Int64
	ToolErrorsTotal atomic.Int64
	WSConnections   atomic.Int64
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	sessions := 0
	if s.deps.Sessions != nil {
		sessions = s.deps.Sessions.Len()
	}

	writeMetric(w, "absensi_chat_requests_total", "counter", "Questions received over HTTP and websocket.", s.metrics.ChatRequests.Load())
	writeMetric(w, "absensi_tool_calls_total", "counter", "Operation invocations.", s.metrics.ToolCallsTotal.Load())
	writeMetric(w, "absensi_tool_errors_total", "counter", "Operation invocations that failed.", s.metrics.ToolErrorsTotal.Load())
	writeMetric(w, "absensi_ws_connections", "gauge", "Open websocket connections.", s.metrics.WSConnections.Load())
	writeMetric(w, "absensi_sessions_active", "gauge", "Conversations held for HTTP clients.", int64(sessions))
	writeMetric(w, "absensi_tools_registered", "gauge", "Registered operations.", int64(len(s.deps.Tools.Schemas())))
	writeMetric(w, "absensi_uptime_seconds", "gauge", "Seconds since the gateway started.", int64(time.Since(s.startTime).Seconds()))
}

func writeMetric(w http.ResponseWriter, name, kind, help string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(w, "%s %d\n", name, value)
}
