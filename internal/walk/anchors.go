package walk

import (
	"github.com/AaronLay10/StepwiseEngine/internal/events"
)

// AnchorScope decides when an anchor is invalidated.
type AnchorScope string

const (
	// ScopeNode anchors are cleared on every node transition.
	ScopeNode AnchorScope = "node"
	// ScopeRegion anchors are cleared when the region changes.
	ScopeRegion AnchorScope = "region"
	// ScopeGraph anchors live for the whole session.
	ScopeGraph AnchorScope = "graph"
)

// RewindMode selects how much of an anchor is restored.
type RewindMode string

const (
	PositionOnly     RewindMode = "position_only"
	PositionAndState RewindMode = "position_and_state"
)

// Anchor is a named, scoped snapshot of walk state.
type Anchor struct {
	ID       string          `json:"id"`
	Scope    AnchorScope     `json:"scope"`
	NodeID   string          `json:"node_id"`
	Region   string          `json:"region"`
	NodeSeed int64           `json:"node_seed"`
	Counters Counters        `json:"counters"`
	Flags    map[string]bool `json:"flags"`
	Gates    GateSnapshot    `json:"gates"`
}

func (a Anchor) clone() Anchor {
	a.Flags = copyBools(a.Flags)
	a.Gates = a.Gates.clone()
	return a
}

// AnchorManager holds the anchor table for a session.
type AnchorManager struct {
	anchors map[string]Anchor
}

// NewAnchorManager returns an empty anchor table.
func NewAnchorManager() *AnchorManager {
	return &AnchorManager{anchors: make(map[string]Anchor)}
}

// CreateAnchor captures counters, flags, the current node and the gate state
// under id, replacing any anchor with the same id.
func (m *AnchorManager) CreateAnchor(id string, state *GameState, scope AnchorScope) {
	if scope == "" {
		scope = ScopeNode
	}
	a := Anchor{
		ID:       id,
		Scope:    scope,
		NodeID:   state.Walk.CurrentNode,
		Region:   state.Walk.Region,
		NodeSeed: state.Walk.NodeSeed,
		Counters: state.Counters,
		Flags:    copyBools(state.Flags),
		Gates:    gateSnapshotFor(state),
	}
	m.anchors[id] = a
	events.Emit("info", "anchor.created", "", map[string]interface{}{
		"anchor_id": id,
		"scope":     string(scope),
		"node_id":   a.NodeID,
	})
}

// RewindToAnchor restores the anchor named id. PositionOnly restores the
// counters and the current node. PositionAndState also restores flags and gate
// state; if the anchor's node is not the one the resolver holds, the gate
// snapshot is queued for when that node is re-entered.
func (m *AnchorManager) RewindToAnchor(id string, state *GameState, mode RewindMode) error {
	a, ok := m.anchors[id]
	if !ok {
		return ErrAnchorNotFound
	}

	from := state.Walk.CurrentNode
	state.Counters = a.Counters
	state.Walk.CurrentNode = a.NodeID
	state.Walk.Region = a.Region
	// A position-only rewind within the node the resolver holds keeps the
	// live gate positions and the seed they were resolved with.
	if mode == PositionAndState || a.NodeID != state.Gates.NodeID() {
		state.Walk.NodeSeed = a.NodeSeed
	}

	if mode == PositionAndState {
		state.Flags = copyBools(a.Flags)
		if a.Gates.NodeID == state.Gates.NodeID() {
			if err := state.Gates.RestoreFromSnapshot(a.Gates); err != nil {
				return err
			}
		} else {
			state.Gates.QueueRestore(a.Gates)
		}
	}

	events.Emit("info", "anchor.rewound", "", map[string]interface{}{
		"anchor_id": id,
		"mode":      string(mode),
		"from_node": from,
		"node_id":   a.NodeID,
	})
	return nil
}

// ClearAnchorsInScope removes every anchor of scope and returns how many went.
func (m *AnchorManager) ClearAnchorsInScope(scope AnchorScope) int {
	n := 0
	for id, a := range m.anchors {
		if a.Scope == scope {
			delete(m.anchors, id)
			n++
		}
	}
	if n > 0 {
		events.Emit("info", "anchor.cleared", "", map[string]interface{}{
			"scope": string(scope),
			"count": n,
		})
	}
	return n
}

// Get returns a copy of the anchor named id.
func (m *AnchorManager) Get(id string) (Anchor, bool) {
	a, ok := m.anchors[id]
	if !ok {
		return Anchor{}, false
	}
	return a.clone(), true
}

// Len returns the number of anchors held.
func (m *AnchorManager) Len() int {
	return len(m.anchors)
}

// ExportAnchors returns copies of every anchor ordered by id.
func (m *AnchorManager) ExportAnchors() []Anchor {
	out := make([]Anchor, 0, len(m.anchors))
	for _, id := range sortedKeys(m.anchors) {
		out = append(out, m.anchors[id].clone())
	}
	return out
}

// ImportAnchors replaces the anchor table.
func (m *AnchorManager) ImportAnchors(list []Anchor) {
	m.anchors = make(map[string]Anchor, len(list))
	for _, a := range list {
		if a.ID == "" {
			continue
		}
		if a.Scope == "" {
			a.Scope = ScopeNode
		}
		if a.Gates.Gates == nil {
			a.Gates.Gates = make(map[string]GateState)
		}
		m.anchors[a.ID] = a.clone()
	}
}

func (m *AnchorManager) clone() *AnchorManager {
	c := NewAnchorManager()
	for id, a := range m.anchors {
		c.anchors[id] = a.clone()
	}
	return c
}

// gateSnapshotFor returns the gate state belonging to the current node. After
// a cross-node rewind that state may still be queued on the resolver.
func gateSnapshotFor(state *GameState) GateSnapshot {
	if pending, ok := state.Gates.Pending(); ok && pending.NodeID == state.Walk.CurrentNode {
		return pending
	}
	if state.Gates.NodeID() != state.Walk.CurrentNode {
		return GateSnapshot{NodeID: state.Walk.CurrentNode, Gates: make(map[string]GateState)}
	}
	return state.Gates.TakeSnapshot()
}

// scopesByName is used when decoding authored scope strings.
var scopesByName = map[string]AnchorScope{
	"node":   ScopeNode,
	"region": ScopeRegion,
	"graph":  ScopeGraph,
}

// parseScope normalizes an authored scope, defaulting to ScopeNode.
func parseScope(s string) (AnchorScope, bool) {
	if s == "" {
		return ScopeNode, true
	}
	sc, ok := scopesByName[s]
	return sc, ok
}

// parseMode normalizes an authored rewind mode, defaulting to PositionAndState.
func parseMode(s string) (RewindMode, bool) {
	switch RewindMode(s) {
	case "":
		return PositionAndState, true
	case PositionOnly, PositionAndState:
		return RewindMode(s), true
	}
	return "", false
}

