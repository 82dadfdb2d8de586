package walk

import (
	"context"
	"sync"

	"github.com/AaronLay10/StepwiseEngine/internal/events"
	"github.com/AaronLay10/StepwiseEngine/internal/flow"
)

// Driver serializes every access to a Controller so that no two steps, and
// no operator command and step, are ever in flight together.
type Driver struct {
	mu    sync.Mutex
	ctrl  *Controller
	steps uint64
	last  StepResult
}

// NewDriver wraps ctrl.
func NewDriver(ctrl *Controller) *Driver {
	return &Driver{ctrl: ctrl}
}

// Start enters or resumes the session.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctrl.Start(ctx)
}

// Step runs one step.
func (d *Driver) Step(ctx context.Context) (StepResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, err := d.ctrl.Step(ctx)
	if err != nil {
		return res, err
	}
	d.steps++
	d.last = res
	return res, nil
}

// Run performs up to n steps, stopping early if ctx ends. It returns the
// number of steps completed.
func (d *Driver) Run(ctx context.Context, n int) (int, error) {
	for i := 0; i < n; i++ {
		if _, err := d.Step(ctx); err != nil {
			return i, err
		}
	}
	return n, nil
}

// Progress returns the latest projection.
func (d *Driver) Progress() Progress {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctrl.LastProgress()
}

// LastResult returns the result of the last completed step.
func (d *Driver) LastResult() StepResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Export captures the session for saving.
func (d *Driver) Export() SaveRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Export(d.ctrl.state)
}

// Anchors lists the anchor table.
func (d *Driver) Anchors() []Anchor {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctrl.state.Anchors.ExportAnchors()
}

// ClearGate marks a gate on the current node cleared on an operator's behalf.
func (d *Driver) ClearGate(gateID string) (Progress, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.ctrl.state
	if !s.Gates.MarkCleared(gateID) {
		return d.ctrl.last, newError(CodeNotFound, "gate not found: "+gateID)
	}
	events.Emit("info", "operator.clear_gate", "", map[string]interface{}{
		"node_id": s.Walk.CurrentNode,
		"gate_id": gateID,
	})
	return d.ctrl.publish(), nil
}

// Rewind rewinds to an anchor on an operator's behalf. The next step
// re-enters the node if needed and refreshes without walking.
func (d *Driver) Rewind(anchorID string, mode RewindMode) (Progress, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.ctrl.state
	if err := s.Anchors.RewindToAnchor(anchorID, s, mode); err != nil {
		return d.ctrl.last, err
	}
	s.RefreshWithoutStep = true
	events.Emit("info", "operator.rewind", "", map[string]interface{}{
		"anchor_id": anchorID,
		"mode":      string(mode),
	})
	return d.ctrl.publish(), nil
}

// ReloadGraph swaps in a new graph between steps.
func (d *Driver) ReloadGraph(g *flow.Graph) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ctrl.SetGraph(g)
}

// Stats is a point-in-time summary used by metrics.
type Stats struct {
	Steps          uint64
	GlobalSteps    int
	NodeID         string
	Anchors        int
	RemainingGates int
	Overlays       int
}

// Stats returns a summary of the session.
func (d *Driver) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.ctrl.state
	return Stats{
		Steps:          d.steps,
		GlobalSteps:    s.Counters.Global,
		NodeID:         s.Walk.CurrentNode,
		Anchors:        s.Anchors.Len(),
		RemainingGates: d.ctrl.last.RemainingGates,
		Overlays:       len(s.Overlays),
	}
}
