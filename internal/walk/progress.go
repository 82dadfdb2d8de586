package walk

import (
	"github.com/AaronLay10/StepwiseEngine/internal/flow"
)

// EntryState tags a progress entry for display.
type EntryState string

const (
	EntryCleared EntryState = "cleared"
	EntryActive  EntryState = "active"
	EntryCooling EntryState = "cooling"
)

// ProgressEntry is one gate or the trailing exit.
type ProgressEntry struct {
	Kind     string     `json:"kind"`
	ID       string     `json:"id"`
	Position int        `json:"position"`
	State    EntryState `json:"state"`
	Visual   string     `json:"visual,omitempty"`
}

// Progress is the read-only projection of the current node's progress.
type Progress struct {
	NodeID          string          `json:"node_id"`
	GlobalSteps     int             `json:"global_steps"`
	NodeSteps       int             `json:"node_steps"`
	Track           int             `json:"track"`
	Entries         []ProgressEntry `json:"entries"`
	NextIndex       *int            `json:"next_index"`
	StepsToNext     *int            `json:"steps_to_next"`
	AllGatesCleared bool            `json:"all_gates_cleared"`
	SpawnMode       flow.SpawnMode  `json:"spawn_mode"`
	RemainingGates  int             `json:"remaining_gates"`
	// ExitNextStep is true when a steps-mode exit would spawn after one more step.
	ExitNextStep bool `json:"exit_next_step"`
}

// CalculateProgress builds the projection for node. It only reads from gates.
// Gates without runtime state are placed with nodeSeed.
func CalculateProgress(node *flow.Node, gates *GateResolver, counters Counters, nodeSeed int64) Progress {
	p := Progress{
		GlobalSteps:     counters.Global,
		NodeSteps:       counters.Node,
		Track:           counters.Track,
		AllGatesCleared: gates.AllGatesCleared(node),
	}
	if node == nil {
		return p
	}
	p.NodeID = node.ID
	p.SpawnMode = node.ExitRule.Mode

	onNode := gates.NodeID() == node.ID
	furthest := 0
	next := -1
	for _, g := range sortedGates(node) {
		e := ProgressEntry{Kind: "gate", ID: g.ID, State: EntryActive, Visual: g.Visual}
		st, ok := gates.State(g.ID)
		if onNode && ok {
			e.Position = st.Position
			switch {
			case st.Cleared:
				e.State = EntryCleared
			case st.Cooldown > 0:
				e.State = EntryCooling
			}
		} else {
			e.Position = ResolvePosition(g.Position, node.Track.Length, nodeSeed, g.ID)
		}
		if e.Position > furthest {
			furthest = e.Position
		}
		if e.State != EntryCleared {
			p.RemainingGates++
			if next == -1 {
				next = len(p.Entries)
			}
		}
		p.Entries = append(p.Entries, e)
	}

	exitPos := clampZero(furthest + node.ExitRule.StepOffset)
	p.Entries = append(p.Entries, ProgressEntry{Kind: "exit", ID: "exit", Position: exitPos, State: EntryActive})
	stepsMode := node.ExitRule.Mode == flow.SpawnSteps || node.ExitRule.Mode == ""

	if next == -1 {
		next = len(p.Entries) - 1
	}
	idx := next
	p.NextIndex = &idx
	if entry := p.Entries[next]; entry.Kind == "gate" || stepsMode {
		d := clampZero(entry.Position - counters.Track)
		p.StepsToNext = &d
	}

	if stepsMode && (p.AllGatesCleared || !node.ExitRule.RequireAllGatesCleared) {
		peek := counters.PeekNext(1)
		peek.AdvanceTrackProgress(node.Track.ExtraProgressPerStep)
		p.ExitNextStep = counters.Track < exitPos && peek.Track >= exitPos
	}
	return p
}
