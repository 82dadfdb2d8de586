package flow

// Graph is the top-level container loaded from JSON or YAML.
// It is authored data and is never mutated at runtime.
type Graph struct {
	Version         int              `json:"version" yaml:"version"`
	Entry           string           `json:"entry" yaml:"entry"`
	Nodes           []Node           `json:"nodes" yaml:"nodes"`
	Edges           []Edge           `json:"edges" yaml:"edges"`
	EncounterTables []EncounterTable `json:"encounter_tables" yaml:"encounter_tables"`
	SideTables      []SideTable      `json:"side_tables" yaml:"side_tables"`
}

// Node is a static location. Gates, exits and tables are resolved against it
// every time the player enters.
type Node struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Region      string `json:"region" yaml:"region"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Gates    []Gate          `json:"gates" yaml:"gates"`
	Exits    []ExitCandidate `json:"exits" yaml:"exits"`
	ExitRule ExitSpawnRule   `json:"exit_rule" yaml:"exit_rule"`
	Track    TrackConfig     `json:"track" yaml:"track"`

	SideTable            string        `json:"side_table,omitempty" yaml:"side_table,omitempty"`
	SideVarietyDepth     int           `json:"side_variety_depth,omitempty" yaml:"side_variety_depth,omitempty"`
	RetainUnselectedSide bool          `json:"retain_unselected_side,omitempty" yaml:"retain_unselected_side,omitempty"`
	EncounterTable       string        `json:"encounter_table,omitempty" yaml:"encounter_table,omitempty"`
	ForcedEvents         []ForcedEvent `json:"forced_events,omitempty" yaml:"forced_events,omitempty"`

	OnEnter *Event `json:"on_enter,omitempty" yaml:"on_enter,omitempty"`
	OnExit  *Event `json:"on_exit,omitempty" yaml:"on_exit,omitempty"`
	// CenterEvent plays when the player keeps to the path between the
	// offered side content.
	CenterEvent *Event `json:"center_event,omitempty" yaml:"center_event,omitempty"`
}

// Edge is a fallback connection, consulted only when the source node
// declares no explicit exits.
type Edge struct {
	From       string       `json:"from" yaml:"from"`
	To         string       `json:"to" yaml:"to"`
	Label      string       `json:"label,omitempty" yaml:"label,omitempty"`
	Weight     int          `json:"weight" yaml:"weight"`
	Conditions []*Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// PositionKind selects how a gate position is computed.
type PositionKind string

const (
	PositionAbsolute PositionKind = "absolute"
	PositionPercent  PositionKind = "percent"
	PositionRange    PositionKind = "range"
)

// PositionSpec describes where on the track a gate sits.
type PositionSpec struct {
	Kind    PositionKind `json:"kind" yaml:"kind"`
	Steps   int          `json:"steps,omitempty" yaml:"steps,omitempty"`
	Percent float64      `json:"percent,omitempty" yaml:"percent,omitempty"`
	Min     int          `json:"min,omitempty" yaml:"min,omitempty"`
	Max     int          `json:"max,omitempty" yaml:"max,omitempty"`
}

// EventTiming tells when a gate's event plays.
type EventTiming string

const (
	TimingOnAppear EventTiming = "on_appear"
	TimingOnPass   EventTiming = "on_pass"
	TimingOnFail   EventTiming = "on_fail"
)

// Gate is an ordered checkpoint on a node's track.
type Gate struct {
	ID          string       `json:"id" yaml:"id"`
	Order       int          `json:"order" yaml:"order"`
	Position    PositionSpec `json:"position" yaml:"position"`
	Visual      string       `json:"visual,omitempty" yaml:"visual,omitempty"`
	Audio       string       `json:"audio,omitempty" yaml:"audio,omitempty"`
	Conditions  []*Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	PassEffects []*Effect    `json:"pass_effects,omitempty" yaml:"pass_effects,omitempty"`
	FailEffects []*Effect    `json:"fail_effects,omitempty" yaml:"fail_effects,omitempty"`
	Event       *Event       `json:"event,omitempty" yaml:"event,omitempty"`
	EventTiming EventTiming  `json:"event_timing,omitempty" yaml:"event_timing,omitempty"`

	// CooldownOnFail overrides the engine's default fail cooldown when set.
	CooldownOnFail *int `json:"cooldown_on_fail,omitempty" yaml:"cooldown_on_fail,omitempty"`
}

// ExitCandidate is an explicitly authored way out of a node.
type ExitCandidate struct {
	ID         string       `json:"id" yaml:"id"`
	Target     string       `json:"target" yaml:"target"`
	Label      string       `json:"label,omitempty" yaml:"label,omitempty"`
	Weight     int          `json:"weight" yaml:"weight"`
	Conditions []*Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// SpawnMode decides when exits become available.
type SpawnMode string

const (
	SpawnNone        SpawnMode = "none"
	SpawnProbability SpawnMode = "probability"
	SpawnSteps       SpawnMode = "steps"
)

// SelectionMode decides which of the available exits are offered.
type SelectionMode string

const (
	SelectAll      SelectionMode = "all"
	SelectWeighted SelectionMode = "weighted"
)

// ExitSpawnRule is the per-node policy for exit availability.
type ExitSpawnRule struct {
	Mode                   SpawnMode     `json:"mode" yaml:"mode"`
	Probability            float64       `json:"probability,omitempty" yaml:"probability,omitempty"`
	StepOffset             int           `json:"step_offset,omitempty" yaml:"step_offset,omitempty"`
	RequireAllGatesCleared bool          `json:"require_all_gates_cleared,omitempty" yaml:"require_all_gates_cleared,omitempty"`
	Selection              SelectionMode `json:"selection,omitempty" yaml:"selection,omitempty"`
	MaxChoices             int           `json:"max_choices,omitempty" yaml:"max_choices,omitempty"`
}

// TrackConfig configures the measuring track gates and exits sit on.
type TrackConfig struct {
	Length               int    `json:"length" yaml:"length"`
	ExtraProgressPerStep int    `json:"extra_progress_per_step,omitempty" yaml:"extra_progress_per_step,omitempty"`
	MirrorCounter        string `json:"mirror_counter,omitempty" yaml:"mirror_counter,omitempty"`
}

// Event is opaque to the engine. It is handed to the event player and its
// Effects are applied once playback finishes.
type Event struct {
	ID      string         `json:"id" yaml:"id"`
	Kind    string         `json:"kind,omitempty" yaml:"kind,omitempty"`
	Params  map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	Effects []*Effect      `json:"effects,omitempty" yaml:"effects,omitempty"`
}

// EncounterTable is a weighted list of battles rolled while walking.
type EncounterTable struct {
	ID            string      `json:"id" yaml:"id"`
	Name          string      `json:"name" yaml:"name"`
	Rate          float64     `json:"rate" yaml:"rate"`
	CooldownSteps int         `json:"cooldown_steps,omitempty" yaml:"cooldown_steps,omitempty"`
	Entries       []Encounter `json:"entries" yaml:"entries"`
}

// Encounter is handed to the battle runner when rolled.
type Encounter struct {
	ID         string         `json:"id" yaml:"id"`
	Weight     int            `json:"weight" yaml:"weight"`
	Conditions []*Condition   `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Params     map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	OnVictory  *Event         `json:"on_victory,omitempty" yaml:"on_victory,omitempty"`
	OnDefeat   *Event         `json:"on_defeat,omitempty" yaml:"on_defeat,omitempty"`
	OnEscape   *Event         `json:"on_escape,omitempty" yaml:"on_escape,omitempty"`
}

// SideTable holds the side content offered left and right of the path.
type SideTable struct {
	ID      string      `json:"id" yaml:"id"`
	Entries []SideEntry `json:"entries" yaml:"entries"`
}

// SideEntry is one piece of side content.
type SideEntry struct {
	ID         string       `json:"id" yaml:"id"`
	Label      string       `json:"label,omitempty" yaml:"label,omitempty"`
	Weight     int          `json:"weight" yaml:"weight"`
	Cooldown   int          `json:"cooldown,omitempty" yaml:"cooldown,omitempty"`
	Conditions []*Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Event      *Event       `json:"event,omitempty" yaml:"event,omitempty"`
}

// TriggerKind selects how a forced event fires.
type TriggerKind string

const (
	TriggerSteps       TriggerKind = "steps"
	TriggerProbability TriggerKind = "probability"
)

// ForcedEvent interrupts the walk when its trigger fires.
type ForcedEvent struct {
	ID          string       `json:"id" yaml:"id"`
	Trigger     TriggerKind  `json:"trigger" yaml:"trigger"`
	AtStep      int          `json:"at_step,omitempty" yaml:"at_step,omitempty"`
	Probability float64      `json:"probability,omitempty" yaml:"probability,omitempty"`
	Cooldown    int          `json:"cooldown,omitempty" yaml:"cooldown,omitempty"`
	Once        bool         `json:"once,omitempty" yaml:"once,omitempty"`
	Conditions  []*Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Event       *Event       `json:"event" yaml:"event"`
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	if g == nil {
		return nil
	}
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// EdgesFrom returns the outgoing edges of a node in authored order.
func (g *Graph) EdgesFrom(id string) []Edge {
	if g == nil {
		return nil
	}
	var out []Edge
	for _, e := range g.Edges {
		if e.From == id {
			out = append(out, e)
		}
	}
	return out
}

// EncounterTable returns the table with the given id and its index in the
// authored list, or nil and -1.
func (g *Graph) EncounterTable(id string) (*EncounterTable, int) {
	if g == nil || id == "" {
		return nil, -1
	}
	for i := range g.EncounterTables {
		t := &g.EncounterTables[i]
		if t.ID == id || (t.ID == "" && t.Name == id) {
			return t, i
		}
	}
	return nil, -1
}

// SideTable returns the side table with the given id, or nil.
func (g *Graph) SideTable(id string) *SideTable {
	if g == nil || id == "" {
		return nil
	}
	for i := range g.SideTables {
		if g.SideTables[i].ID == id {
			return &g.SideTables[i]
		}
	}
	return nil
}

// Gate returns the gate with the given id on the node, or nil.
func (n *Node) Gate(id string) *Gate {
	if n == nil {
		return nil
	}
	for i := range n.Gates {
		if n.Gates[i].ID == id {
			return &n.Gates[i]
		}
	}
	return nil
}
