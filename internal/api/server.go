package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/AaronLay10/StepwiseEngine/internal/events"
	"github.com/AaronLay10/StepwiseEngine/internal/walk"
)

// maxStepsPerRequest caps POST /step?n=.
const maxStepsPerRequest = 100

// Operator is the session surface the API drives. *walk.Driver implements it.
type Operator interface {
	Step(ctx context.Context) (walk.StepResult, error)
	Progress() walk.Progress
	Export() walk.SaveRecord
	Anchors() []walk.Anchor
	Stats() walk.Stats
	ClearGate(gateID string) (walk.Progress, error)
	Rewind(anchorID string, mode walk.RewindMode) (walk.Progress, error)
}

// SaveFunc writes the session to its configured save slot.
type SaveFunc func(ctx context.Context) error

var (
	opMu     sync.RWMutex
	operator Operator
	saver    SaveFunc
)

// SetOperator sets the session the endpoints act on.
func SetOperator(op Operator) {
	opMu.Lock()
	operator = op
	opMu.Unlock()
}

// SetSaver sets the function behind POST /operator/save.
func SetSaver(fn SaveFunc) {
	opMu.Lock()
	saver = fn
	opMu.Unlock()
}

func currentOperator() Operator {
	opMu.RLock()
	defer opMu.RUnlock()
	return operator
}

func currentSaver() SaveFunc {
	opMu.RLock()
	defer opMu.RUnlock()
	return saver
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   "stepwise",
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func eventsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, events.Snapshot())
}

type OperatorResponse struct {
	OK       bool             `json:"ok"`
	Error    string           `json:"error,omitempty"`
	Progress *walk.Progress   `json:"progress,omitempty"`
	Result   *walk.StepResult `json:"result,omitempty"`
	Steps    int              `json:"steps,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, OperatorResponse{OK: false, Error: msg})
}

// withOperator rejects the request when no session is attached.
func withOperator(method string, fn func(w http.ResponseWriter, r *http.Request, op Operator)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		op := currentOperator()
		if op == nil {
			writeError(w, http.StatusServiceUnavailable, "no session")
			return
		}
		fn(w, r, op)
	}
}

func progressHandler(w http.ResponseWriter, r *http.Request, op Operator) {
	writeJSON(w, http.StatusOK, op.Progress())
}

func stateHandler(w http.ResponseWriter, r *http.Request, op Operator) {
	writeJSON(w, http.StatusOK, op.Export())
}

func anchorsHandler(w http.ResponseWriter, r *http.Request, op Operator) {
	writeJSON(w, http.StatusOK, op.Anchors())
}

func stepHandler(w http.ResponseWriter, r *http.Request, op Operator) {
	n := 1
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > maxStepsPerRequest {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("n must be between 1 and %d", maxStepsPerRequest))
			return
		}
		n = parsed
	}

	var last walk.StepResult
	for i := 0; i < n; i++ {
		res, err := op.Step(r.Context())
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, OperatorResponse{OK: false, Error: err.Error(), Steps: i})
			return
		}
		last = res
	}
	events.Emit("info", "operator.step", "", map[string]interface{}{
		"steps":   n,
		"node_id": last.NodeID,
	})
	writeJSON(w, http.StatusOK, OperatorResponse{OK: true, Result: &last, Progress: &last.Progress, Steps: n})
}

type ClearGateRequest struct {
	GateID string `json:"gate_id"`
}

func clearGateHandler(w http.ResponseWriter, r *http.Request, op Operator) {
	var req ClearGateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.GateID == "" {
		writeError(w, http.StatusBadRequest, "gate_id required")
		return
	}
	p, err := op.ClearGate(req.GateID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, OperatorResponse{OK: true, Progress: &p})
}

type RewindRequest struct {
	AnchorID string `json:"anchor_id"`
	Mode     string `json:"mode"`
}

func rewindHandler(w http.ResponseWriter, r *http.Request, op Operator) {
	var req RewindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.AnchorID == "" {
		writeError(w, http.StatusBadRequest, "anchor_id required")
		return
	}
	mode := walk.PositionAndState
	switch req.Mode {
	case "", string(walk.PositionAndState):
	case string(walk.PositionOnly):
		mode = walk.PositionOnly
	default:
		writeError(w, http.StatusBadRequest, "invalid mode")
		return
	}
	p, err := op.Rewind(req.AnchorID, mode)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, OperatorResponse{OK: true, Progress: &p})
}

func saveHandler(w http.ResponseWriter, r *http.Request, op Operator) {
	save := currentSaver()
	if save == nil {
		writeError(w, http.StatusNotImplemented, "no save store configured")
		return
	}
	if err := save(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	SetLastSave(time.Now())
	p := op.Progress()
	writeJSON(w, http.StatusOK, OperatorResponse{OK: true, Progress: &p})
}

func statusFor(err error) int {
	switch {
	case walk.IsCode(err, walk.CodeNotFound):
		return http.StatusNotFound
	case walk.IsCode(err, walk.CodeRewindConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// NewMux registers every endpoint.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler)
	mux.HandleFunc("/metrics", metricsHandler)
	mux.HandleFunc("/events", RequireAnyRole(eventsHandler))
	mux.HandleFunc("/progress", RequireAnyRole(withOperator(http.MethodGet, progressHandler)))
	mux.HandleFunc("/state", RequireAnyRole(withOperator(http.MethodGet, stateHandler)))
	mux.HandleFunc("/anchors", RequireAnyRole(withOperator(http.MethodGet, anchorsHandler)))
	mux.HandleFunc("/step", RequireAnyRole(withOperator(http.MethodPost, stepHandler)))
	mux.HandleFunc("/operator/clear-gate", RequireAnyRole(withOperator(http.MethodPost, clearGateHandler)))
	mux.HandleFunc("/operator/rewind", RequireAnyRole(withOperator(http.MethodPost, rewindHandler)))
	mux.HandleFunc("/operator/save", RequireAdmin(withOperator(http.MethodPost, saveHandler)))
	mux.HandleFunc("/ws/events", RequireAnyRole(wsEventsHandler))
	mux.HandleFunc("/ws/progress", RequireAnyRole(wsProgressHandler))
	return mux
}

// ListenAndServe starts the API server on the given port, with TLS when
// STEPWISE_TLS_CERT and STEPWISE_TLS_KEY are set. It blocks until the
// server exits.
func ListenAndServe(port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           NewMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg := LoadTLSConfig(); cfg != nil {
		srv.TLSConfig = cfg
		log.Printf("API listening on %s (tls)\n", srv.Addr)
		return srv.ListenAndServeTLS("", "")
	}
	log.Printf("API listening on %s\n", srv.Addr)
	return srv.ListenAndServe()
}

// Start starts the API server in a goroutine.
// Errors are logged but do not stop the caller.
func Start(port int) {
	go func() {
		if err := ListenAndServe(port); err != nil {
			log.Printf("api server error: %v", err)
		}
	}()
}
