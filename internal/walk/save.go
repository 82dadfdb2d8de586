package walk

import (
	"fmt"
)

// SaveVersion is the current SaveRecord layout version.
const SaveVersion = 1

// SaveRecord is the flat, versioned persisted form of a session.
type SaveRecord struct {
	Version int   `json:"version"`
	Seed    int64 `json:"seed"`

	GlobalSteps   int `json:"global_steps"`
	NodeSteps     int `json:"node_steps"`
	TrackProgress int `json:"track_progress"`
	StepSerial    int `json:"step_serial"`

	CurrentNode  string         `json:"current_node"`
	Region       string         `json:"region"`
	LastExit     string         `json:"last_exit"`
	NodeSeed     int64          `json:"node_seed"`
	HistoryIndex int            `json:"history_index"`
	Visits       map[string]int `json:"visits"`

	Flags    map[string]bool `json:"flags"`
	Counters map[string]int  `json:"counters"`
	Tags     []string        `json:"tags"`

	GateNode string      `json:"gate_node"`
	Gates    []GateState `json:"gates"`

	Anchors    []Anchor                 `json:"anchors"`
	Encounters map[string]EncounterRoll `json:"encounters"`
	Overlays   []Overlay                `json:"overlays"`

	Side    SideState      `json:"side"`
	Forced  ForcedState    `json:"forced"`
	Bonuses map[string]int `json:"bonuses"`
	Party   Party          `json:"party"`

	RefreshWithoutStep bool `json:"refresh_without_step,omitempty"`
}

// Export captures state as a SaveRecord. The record shares nothing with state.
func Export(state *GameState) SaveRecord {
	cp := state.clone()
	rec := SaveRecord{
		Version:       SaveVersion,
		Seed:          cp.Seed,
		GlobalSteps:   cp.Counters.Global,
		NodeSteps:     cp.Counters.Node,
		TrackProgress: cp.Counters.Track,
		StepSerial:    cp.StepSerial,
		CurrentNode:   cp.Walk.CurrentNode,
		Region:        cp.Walk.Region,
		LastExit:      cp.Walk.LastExit,
		NodeSeed:      cp.Walk.NodeSeed,
		HistoryIndex:  cp.Walk.HistoryIndex,
		Visits:        cp.Walk.Visits,
		Flags:         cp.Flags,
		Counters:      cp.Vars,
		Tags:          sortedKeys(cp.Tags),
		Anchors:       cp.Anchors.ExportAnchors(),
		Encounters:    make(map[string]EncounterRoll, len(cp.Encounters)),
		Overlays:      cp.Overlays,
		Side:          cp.Side,
		Forced:        cp.Forced,
		Bonuses:       cp.Bonuses,
		Party:         cp.Party,

		RefreshWithoutStep: cp.RefreshWithoutStep,
	}
	for k, r := range cp.Encounters {
		rec.Encounters[k] = *r
	}
	if rec.Overlays == nil {
		rec.Overlays = []Overlay{}
	}

	snap := gateSnapshotFor(cp)
	rec.GateNode = snap.NodeID
	rec.Gates = make([]GateState, 0, len(snap.Gates))
	for _, id := range sortedKeys(snap.Gates) {
		rec.Gates = append(rec.Gates, snap.Gates[id])
	}
	return rec
}

// Import builds a GameState from rec. Gate states are queued on the resolver
// so the controller's Resume restores them for the saved node.
func Import(rec SaveRecord) (*GameState, error) {
	if rec.Version != SaveVersion {
		return nil, newError(CodeConfig, fmt.Sprintf("unsupported save version: %d", rec.Version))
	}
	s := NewGameState(rec.Seed)
	s.Counters = Counters{
		Global: clampZero(rec.GlobalSteps),
		Node:   clampZero(rec.NodeSteps),
		Track:  clampZero(rec.TrackProgress),
	}
	s.StepSerial = clampZero(rec.StepSerial)
	s.Walk = WalkState{
		CurrentNode:  rec.CurrentNode,
		Region:       rec.Region,
		LastExit:     rec.LastExit,
		NodeSeed:     rec.NodeSeed,
		HistoryIndex: rec.HistoryIndex,
		Visits:       copyInts(rec.Visits),
	}
	s.Flags = copyBools(rec.Flags)
	s.Vars = copyInts(rec.Counters)
	for _, t := range rec.Tags {
		s.Tags[t] = true
	}
	for k, r := range rec.Encounters {
		roll := r
		s.Encounters[k] = &roll
	}
	s.Overlays = append([]Overlay(nil), rec.Overlays...)

	s.Side = rec.Side
	s.Side.Cooldowns = copyInts(rec.Side.Cooldowns)
	s.Side.History = append([]string(nil), rec.Side.History...)
	s.Forced = ForcedState{
		Consumed:  copyBools(rec.Forced.Consumed),
		Cooldowns: copyInts(rec.Forced.Cooldowns),
	}
	s.Bonuses = copyInts(rec.Bonuses)
	s.Party = Party{
		Unlocked: append([]string(nil), rec.Party.Unlocked...),
		Active:   append([]string(nil), rec.Party.Active...),
	}
	s.RefreshWithoutStep = rec.RefreshWithoutStep

	s.Anchors.ImportAnchors(rec.Anchors)

	snap := GateSnapshot{NodeID: rec.GateNode, Gates: make(map[string]GateState, len(rec.Gates))}
	for _, g := range rec.Gates {
		snap.Gates[g.GateID] = g
	}
	if snap.NodeID == "" {
		snap.NodeID = rec.CurrentNode
	}
	s.Gates.QueueRestore(snap)
	return s, nil
}
