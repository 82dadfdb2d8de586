package walk

import (
	"sort"

	"github.com/AaronLay10/StepwiseEngine/internal/events"
	"github.com/AaronLay10/StepwiseEngine/internal/flow"
)

// GateStatus is the lifecycle state of a gate within one node visit.
type GateStatus string

const (
	GateUnresolved GateStatus = "unresolved"
	GatePending    GateStatus = "pending"
	GateCleared    GateStatus = "cleared"
	GateFailed     GateStatus = "failed"
)

// GateState is the runtime state of one gate for the current node visit.
type GateState struct {
	GateID    string `json:"gate_id"`
	Position  int    `json:"position"`
	Cleared   bool   `json:"cleared"`
	Cooldown  int    `json:"cooldown"`
	FailCount int    `json:"fail_count"`
}

// GateSnapshot is an independent copy of the resolver's gate states, tagged
// with the node they belong to.
type GateSnapshot struct {
	NodeID string               `json:"node_id"`
	Gates  map[string]GateState `json:"gates"`
}

func (s GateSnapshot) clone() GateSnapshot {
	out := GateSnapshot{NodeID: s.NodeID, Gates: make(map[string]GateState, len(s.Gates))}
	for id, st := range s.Gates {
		out.Gates[id] = st
	}
	return out
}

// GateResolver owns gate runtime state for the node currently being walked.
type GateResolver struct {
	nodeID  string
	states  map[string]*GateState
	pending *GateSnapshot
}

// NewGateResolver returns a resolver holding no node.
func NewGateResolver() *GateResolver {
	return &GateResolver{states: make(map[string]*GateState)}
}

// NodeID returns the node the resolver was last initialized for.
func (r *GateResolver) NodeID() string {
	return r.nodeID
}

// InitializeForNode resolves every gate position on node with seed. If a
// snapshot tagged with node's id is queued it supplies the runtime flags;
// a queued snapshot for any other node is discarded.
func (r *GateResolver) InitializeForNode(node *flow.Node, seed int64) {
	pending := r.pending
	r.pending = nil
	r.states = make(map[string]*GateState)
	r.nodeID = ""
	if node == nil {
		return
	}
	r.nodeID = node.ID

	if pending != nil && pending.NodeID != node.ID {
		events.Emit("warn", "anchor.conflict", "discarded gate snapshot for another node", map[string]interface{}{
			"snapshot_node": pending.NodeID,
			"node_id":       node.ID,
		})
		pending = nil
	}

	for i := range node.Gates {
		g := &node.Gates[i]
		st := &GateState{
			GateID:   g.ID,
			Position: ResolvePosition(g.Position, node.Track.Length, seed, g.ID),
		}
		if pending != nil {
			if saved, ok := pending.Gates[g.ID]; ok {
				st.Cleared = saved.Cleared
				st.Cooldown = clampZero(saved.Cooldown)
				st.FailCount = saved.FailCount
			}
		}
		r.states[g.ID] = st
	}
}

// GetNextGate returns the lowest-ordered gate that is not cleared and whose
// position has been reached, or nil.
func (r *GateResolver) GetNextGate(node *flow.Node, trackProgress int) *flow.Gate {
	if node == nil || node.ID != r.nodeID {
		return nil
	}
	for _, g := range sortedGates(node) {
		st, ok := r.states[g.ID]
		if !ok || st.Cleared {
			continue
		}
		if st.Position <= trackProgress {
			return g
		}
	}
	return nil
}

// MarkCleared clears the gate. It reports false if the gate is unknown.
func (r *GateResolver) MarkCleared(gateID string) bool {
	st, ok := r.states[gateID]
	if !ok {
		return false
	}
	st.Cleared = true
	st.Cooldown = 0
	return true
}

// MarkFailed records a failure and starts a cooldown of the given length.
func (r *GateResolver) MarkFailed(gateID string, cooldown int) bool {
	st, ok := r.states[gateID]
	if !ok {
		return false
	}
	st.FailCount++
	st.Cooldown = clampZero(cooldown)
	return true
}

// TickCooldowns decrements every gate cooldown, stopping at zero.
func (r *GateResolver) TickCooldowns() {
	for _, st := range r.states {
		if st.Cooldown > 0 {
			st.Cooldown--
		}
	}
}

// AllGatesCleared reports whether every gate on node is cleared. A nil node
// or a node without gates has nothing to clear.
func (r *GateResolver) AllGatesCleared(node *flow.Node) bool {
	if node == nil || len(node.Gates) == 0 {
		return true
	}
	if node.ID != r.nodeID {
		return false
	}
	for i := range node.Gates {
		st, ok := r.states[node.Gates[i].ID]
		if !ok || !st.Cleared {
			return false
		}
	}
	return true
}

// TakeSnapshot returns a deep copy of the live gate states.
func (r *GateResolver) TakeSnapshot() GateSnapshot {
	snap := GateSnapshot{NodeID: r.nodeID, Gates: make(map[string]GateState, len(r.states))}
	for id, st := range r.states {
		snap.Gates[id] = *st
	}
	return snap
}

// RestoreFromSnapshot overwrites the live gate states. A snapshot taken on a
// different node is refused with ErrSnapshotNodeMismatch and nothing changes.
func (r *GateResolver) RestoreFromSnapshot(snap GateSnapshot) error {
	if snap.NodeID != r.nodeID {
		return ErrSnapshotNodeMismatch
	}
	for id, st := range r.states {
		saved, ok := snap.Gates[id]
		if !ok {
			*st = GateState{GateID: id, Position: st.Position}
			continue
		}
		saved.GateID = id
		saved.Cooldown = clampZero(saved.Cooldown)
		*st = saved
	}
	return nil
}

// QueueRestore holds snap until the next InitializeForNode.
func (r *GateResolver) QueueRestore(snap GateSnapshot) {
	c := snap.clone()
	r.pending = &c
}

// Pending returns a copy of the queued snapshot, if any.
func (r *GateResolver) Pending() (GateSnapshot, bool) {
	if r.pending == nil {
		return GateSnapshot{}, false
	}
	return r.pending.clone(), true
}

// GetMaxResolvedPosition returns the furthest gate position on the current
// node, or 0 when it has no gates.
func (r *GateResolver) GetMaxResolvedPosition() int {
	furthest := 0
	for _, st := range r.states {
		if st.Position > furthest {
			furthest = st.Position
		}
	}
	return furthest
}

// State returns a copy of a gate's runtime state.
func (r *GateResolver) State(gateID string) (GateState, bool) {
	st, ok := r.states[gateID]
	if !ok {
		return GateState{}, false
	}
	return *st, true
}

// Status returns the lifecycle state of a gate.
func (r *GateResolver) Status(gateID string) GateStatus {
	st, ok := r.states[gateID]
	switch {
	case !ok:
		return GateUnresolved
	case st.Cleared:
		return GateCleared
	case st.Cooldown > 0:
		return GateFailed
	default:
		return GatePending
	}
}

func (r *GateResolver) clone() *GateResolver {
	c := &GateResolver{nodeID: r.nodeID, states: make(map[string]*GateState, len(r.states))}
	for id, st := range r.states {
		cp := *st
		c.states[id] = &cp
	}
	if r.pending != nil {
		p := r.pending.clone()
		c.pending = &p
	}
	return c
}

// sortedGates orders a node's gates by Order, then by id.
func sortedGates(node *flow.Node) []*flow.Gate {
	out := make([]*flow.Gate, 0, len(node.Gates))
	for i := range node.Gates {
		out = append(out, &node.Gates[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}
