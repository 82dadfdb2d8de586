package api

import (
	"net/http"
	"strings"
	"sync"
)

type readinessState struct {
	mu                sync.RWMutex
	walkerReady       bool
	mqttConnected     bool
	mqttOptional      bool
	postgresConnected bool
	postgresOptional  bool
}

var readiness = &readinessState{mqttOptional: true, postgresOptional: true}

// CheckStatus is one dependency's entry in the readiness response.
type CheckStatus struct {
	Status   string `json:"status"`
	Optional bool   `json:"optional,omitempty"`
}

type ReadinessResponse struct {
	Ready       bool                   `json:"ready"`
	Checks      map[string]CheckStatus `json:"checks"`
	NotReadyMsg string                 `json:"message,omitempty"`
}

// SetWalkerReady marks whether the session has started and can step.
func SetWalkerReady(ready bool) {
	readiness.mu.Lock()
	readiness.walkerReady = ready
	readiness.mu.Unlock()
}

// SetMQTTState records broker connectivity. An optional broker that is down
// does not fail readiness.
func SetMQTTState(connected, optional bool) {
	readiness.mu.Lock()
	readiness.mqttConnected = connected
	readiness.mqttOptional = optional
	readiness.mu.Unlock()
}

// SetPostgresState records database connectivity.
func SetPostgresState(connected, optional bool) {
	readiness.mu.Lock()
	readiness.postgresConnected = connected
	readiness.postgresOptional = optional
	readiness.mu.Unlock()
}

func dependencyCheck(name string, connected, optional bool, reasons *[]string) CheckStatus {
	switch {
	case connected:
		return CheckStatus{Status: "ok", Optional: optional}
	case optional:
		return CheckStatus{Status: "unavailable", Optional: true}
	default:
		*reasons = append(*reasons, name+" not connected")
		return CheckStatus{Status: "not_ready"}
	}
}

func readyHandler(w http.ResponseWriter, r *http.Request) {
	readiness.mu.RLock()
	walkerReady := readiness.walkerReady
	mqttConnected, mqttOptional := readiness.mqttConnected, readiness.mqttOptional
	pgConnected, pgOptional := readiness.postgresConnected, readiness.postgresOptional
	readiness.mu.RUnlock()

	var reasons []string
	checks := map[string]CheckStatus{}
	if walkerReady {
		checks["walker"] = CheckStatus{Status: "ok"}
	} else {
		checks["walker"] = CheckStatus{Status: "not_ready"}
		reasons = append(reasons, "walker not started")
	}
	checks["mqtt"] = dependencyCheck("mqtt", mqttConnected, mqttOptional, &reasons)
	checks["postgres"] = dependencyCheck("postgres", pgConnected, pgOptional, &reasons)

	resp := ReadinessResponse{Ready: len(reasons) == 0, Checks: checks}
	status := http.StatusOK
	if !resp.Ready {
		resp.NotReadyMsg = strings.Join(reasons, "; ")
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
