package api

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/AaronLay10/StepwiseEngine/internal/events"
	"github.com/AaronLay10/StepwiseEngine/internal/version"
)

var metricsState = &MetricsState{}

// MetricsState holds process-level values for the /metrics endpoint.
type MetricsState struct {
	mu              sync.RWMutex
	startTime       time.Time
	sessionID       string
	lastSaveTimeSec int64 // -1 if never saved
}

// InitMetrics initializes the metrics system. Must be called at startup.
func InitMetrics(sessionID string) {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.startTime = time.Now()
	metricsState.sessionID = sessionID
	metricsState.lastSaveTimeSec = -1
}

// SetLastSave records the time of the last successful save.
func SetLastSave(ts time.Time) {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.lastSaveTimeSec = ts.Unix()
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}

// metricsHandler returns Prometheus-compatible metrics in text format.
func metricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	metricsState.mu.RLock()
	startTime := metricsState.startTime
	sessionID := metricsState.sessionID
	lastSave := metricsState.lastSaveTimeSec
	metricsState.mu.RUnlock()

	readiness.mu.RLock()
	walkerReady := readiness.walkerReady
	mqttConnected := readiness.mqttConnected
	postgresConnected := readiness.postgresConnected
	readiness.mu.RUnlock()

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	writeMetric := func(name, mtype, help string, value interface{}, labels string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		fmt.Fprintf(w, "%s{%s} %v\n", name, labels, value)
	}

	labels := fmt.Sprintf(`session="%s",instance="%s",version="%s"`, sessionID, hostname, version.Version)

	writeMetric("stepwise_uptime_seconds", "gauge",
		"Number of seconds since the process started", time.Since(startTime).Seconds(), labels)
	writeMetric("stepwise_walker_ready", "gauge",
		"Whether the session has started (1) or not (0)", boolGauge(walkerReady), labels)
	writeMetric("stepwise_events_total", "counter",
		"Total number of events emitted since startup", events.TotalCount(), labels)
	writeMetric("stepwise_mqtt_connected", "gauge",
		"Whether the MQTT broker is connected (1) or not (0)", boolGauge(mqttConnected), labels)
	writeMetric("stepwise_postgres_connected", "gauge",
		"Whether PostgreSQL is connected (1) or not (0)", boolGauge(postgresConnected), labels)
	writeMetric("stepwise_ws_clients", "gauge",
		"Number of active event stream connections", events.SubscriberCount(), labels)
	writeMetric("stepwise_events_dropped_total", "counter",
		"Events lost to event stream clients that fell behind", events.DroppedCount(), labels)
	writeMetric("stepwise_last_save_timestamp", "gauge",
		"Unix timestamp of the last successful save (-1 if never)", lastSave, labels)

	op := currentOperator()
	if op == nil {
		return
	}
	st := op.Stats()
	nodeLabels := fmt.Sprintf(`%s,node="%s"`, labels, st.NodeID)
	writeMetric("stepwise_steps_total", "counter",
		"Steps completed by this process", st.Steps, labels)
	writeMetric("stepwise_global_steps", "gauge",
		"Global step counter of the session", st.GlobalSteps, nodeLabels)
	writeMetric("stepwise_remaining_gates", "gauge",
		"Uncleared gates on the current node", st.RemainingGates, nodeLabels)
	writeMetric("stepwise_anchors", "gauge",
		"Live rewind anchors", st.Anchors, labels)
	writeMetric("stepwise_overlays", "gauge",
		"Active encounter overlays", st.Overlays, labels)
}
