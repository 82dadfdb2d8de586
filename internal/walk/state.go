package walk

import (
	"sort"
)

// WalkState tracks where the player is.
type WalkState struct {
	CurrentNode  string         `json:"current_node"`
	Region       string         `json:"region"`
	LastExit     string         `json:"last_exit"`
	NodeSeed     int64          `json:"node_seed"`
	HistoryIndex int            `json:"history_index"`
	Visits       map[string]int `json:"visits,omitempty"`
}

// EncounterRoll is the per-table encounter bookkeeping.
type EncounterRoll struct {
	Cooldown int `json:"cooldown"`
	Rolls    int `json:"rolls"`
	Hits     int `json:"hits"`
	LastHit  int `json:"last_hit"`
}

// Overlay multiplies the encounter rate until it expires.
type Overlay struct {
	ID         string  `json:"id"`
	Multiplier float64 `json:"multiplier"`
	// ExpiresAt is the global step at which the overlay is dropped. Zero never expires.
	ExpiresAt  int  `json:"expires_at,omitempty"`
	Persistent bool `json:"persistent,omitempty"`
}

// SideState holds the current side-content roll and variety bookkeeping.
type SideState struct {
	Left         string         `json:"left,omitempty"`
	Right        string         `json:"right,omitempty"`
	Retained     Choice         `json:"retained,omitempty"`
	VarietyDepth int            `json:"variety_depth,omitempty"`
	Cooldowns    map[string]int `json:"cooldowns,omitempty"`
	History      []string       `json:"history,omitempty"`
}

// ForcedState remembers which forced events fired.
type ForcedState struct {
	Consumed  map[string]bool `json:"consumed,omitempty"`
	Cooldowns map[string]int  `json:"cooldowns,omitempty"`
}

// Party is the roster reconfigured by party effects.
type Party struct {
	Unlocked []string `json:"unlocked,omitempty"`
	Active   []string `json:"active,omitempty"`
}

const maxSideHistory = 32

// GameState is the shared, session-wide state bag. The gate resolver and
// anchor manager are registered here and are the only mutators of gate and
// anchor data.
type GameState struct {
	Seed     int64
	Counters Counters
	Walk     WalkState
	// StepSerial counts committed steps. Rewinds never lower it, so a
	// replayed step draws fresh rolls.
	StepSerial int

	Flags map[string]bool
	// Vars is the named integer counter map used by conditions and effects.
	Vars map[string]int
	Tags map[string]bool

	Encounters map[string]*EncounterRoll
	Overlays   []Overlay
	Side       SideState
	Forced     ForcedState
	Bonuses    map[string]int
	Party      Party

	// RefreshWithoutStep is set by a rewind effect. The next step replays
	// side content without advancing the counters.
	RefreshWithoutStep bool

	Gates   *GateResolver
	Anchors *AnchorManager
}

// NewGameState creates an empty session state.
func NewGameState(seed int64) *GameState {
	return &GameState{
		Seed:       seed,
		Walk:       WalkState{Visits: make(map[string]int)},
		Flags:      make(map[string]bool),
		Vars:       make(map[string]int),
		Tags:       make(map[string]bool),
		Encounters: make(map[string]*EncounterRoll),
		Side:       SideState{Cooldowns: make(map[string]int)},
		Forced:     ForcedState{Consumed: make(map[string]bool), Cooldowns: make(map[string]int)},
		Bonuses:    make(map[string]int),
		Gates:      NewGateResolver(),
		Anchors:    NewAnchorManager(),
	}
}

// EncounterMultiplier is the product of all active overlays.
func (s *GameState) EncounterMultiplier() float64 {
	m := 1.0
	for _, o := range s.Overlays {
		m *= o.Multiplier
	}
	if m < 0 {
		return 0
	}
	return m
}

// PushOverlay adds an overlay, replacing one with the same id.
func (s *GameState) PushOverlay(o Overlay) {
	s.RemoveOverlay(o.ID)
	s.Overlays = append(s.Overlays, o)
}

// RemoveOverlay drops every overlay with the given id.
func (s *GameState) RemoveOverlay(id string) {
	kept := s.Overlays[:0]
	for _, o := range s.Overlays {
		if o.ID != id {
			kept = append(kept, o)
		}
	}
	s.Overlays = kept
}

// expireOverlays drops overlays whose expiry step has been reached.
func (s *GameState) expireOverlays() []string {
	var expired []string
	kept := s.Overlays[:0]
	for _, o := range s.Overlays {
		if o.ExpiresAt > 0 && s.Counters.Global >= o.ExpiresAt {
			expired = append(expired, o.ID)
			continue
		}
		kept = append(kept, o)
	}
	s.Overlays = kept
	return expired
}

// dropTransientOverlays removes non-persistent overlays on node transition.
func (s *GameState) dropTransientOverlays() {
	kept := s.Overlays[:0]
	for _, o := range s.Overlays {
		if o.Persistent {
			kept = append(kept, o)
		}
	}
	s.Overlays = kept
}

// ScriptVars exposes the state to script conditions.
func (s *GameState) ScriptVars() map[string]interface{} {
	flags := make(map[string]interface{}, len(s.Flags))
	for k, v := range s.Flags {
		flags[k] = v
	}
	vars := make(map[string]interface{}, len(s.Vars))
	for k, v := range s.Vars {
		vars[k] = v
	}
	tags := make([]interface{}, 0, len(s.Tags))
	for _, t := range sortedKeys(s.Tags) {
		tags = append(tags, t)
	}
	return map[string]interface{}{
		"flags":        flags,
		"counters":     vars,
		"tags":         tags,
		"node":         s.Walk.CurrentNode,
		"region":       s.Walk.Region,
		"global_steps": s.Counters.Global,
		"node_steps":   s.Counters.Node,
		"track":        s.Counters.Track,
	}
}

// clone returns a deep copy used as a step checkpoint.
func (s *GameState) clone() *GameState {
	c := *s
	c.Walk.Visits = copyInts(s.Walk.Visits)
	c.Flags = copyBools(s.Flags)
	c.Vars = copyInts(s.Vars)
	c.Tags = copyBools(s.Tags)
	c.Encounters = make(map[string]*EncounterRoll, len(s.Encounters))
	for k, v := range s.Encounters {
		r := *v
		c.Encounters[k] = &r
	}
	c.Overlays = append([]Overlay(nil), s.Overlays...)
	c.Side.Cooldowns = copyInts(s.Side.Cooldowns)
	c.Side.History = append([]string(nil), s.Side.History...)
	c.Forced.Consumed = copyBools(s.Forced.Consumed)
	c.Forced.Cooldowns = copyInts(s.Forced.Cooldowns)
	c.Bonuses = copyInts(s.Bonuses)
	c.Party.Unlocked = append([]string(nil), s.Party.Unlocked...)
	c.Party.Active = append([]string(nil), s.Party.Active...)
	c.Gates = s.Gates.clone()
	c.Anchors = s.Anchors.clone()
	return &c
}

// restore copies a checkpoint back into s, keeping the registered resolver
// and manager pointers stable.
func (s *GameState) restore(cp *GameState) {
	gates, anchors := s.Gates, s.Anchors
	*gates = *cp.Gates
	*anchors = *cp.Anchors
	*s = *cp
	s.Gates, s.Anchors = gates, anchors
}

func copyBools(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyInts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
