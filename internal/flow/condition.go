package flow

// ConditionKind selects how a condition is evaluated.
type ConditionKind string

const (
	CondFlag    ConditionKind = "flag"
	CondNotFlag ConditionKind = "not_flag"
	CondCounter ConditionKind = "counter"
	CondTag     ConditionKind = "tag"
	CondNotTag  ConditionKind = "not_tag"
	// CondExpr uses the compact expression syntax, e.g. "gate_a.cleared && counter.keys >= 2".
	CondExpr ConditionKind = "expr"
	// CondScript evaluates a tengo expression against the state.
	CondScript ConditionKind = "script"
)

// Condition is a pure predicate over the shared game state.
type Condition struct {
	Kind  ConditionKind `json:"kind" yaml:"kind"`
	Key   string        `json:"key,omitempty" yaml:"key,omitempty"`
	Op    string        `json:"op,omitempty" yaml:"op,omitempty"`
	Value int           `json:"value,omitempty" yaml:"value,omitempty"`
	Expr  string        `json:"expr,omitempty" yaml:"expr,omitempty"`
}

// EffectKind selects the state mutation an effect performs.
type EffectKind string

const (
	EffSetFlag       EffectKind = "set_flag"
	EffClearFlag     EffectKind = "clear_flag"
	EffSetCounter    EffectKind = "set_counter"
	EffAddCounter    EffectKind = "add_counter"
	EffAddTag        EffectKind = "add_tag"
	EffRemoveTag     EffectKind = "remove_tag"
	EffPushOverlay   EffectKind = "push_overlay"
	EffRemoveOverlay EffectKind = "remove_overlay"
	EffCreateAnchor  EffectKind = "create_anchor"
	EffRewindAnchor  EffectKind = "rewind_anchor"
	EffStageBonus    EffectKind = "stage_bonus"
	EffPartyUnlock   EffectKind = "party_unlock"
	EffPartySet      EffectKind = "party_set"
)

// Effect mutates the shared game state. Only the fields relevant to Kind are read.
type Effect struct {
	Kind  EffectKind `json:"kind" yaml:"kind"`
	Key   string     `json:"key,omitempty" yaml:"key,omitempty"`
	Value int        `json:"value,omitempty" yaml:"value,omitempty"`

	// Overlay payload.
	Multiplier float64 `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
	Duration   int     `json:"duration,omitempty" yaml:"duration,omitempty"`
	Persistent bool    `json:"persistent,omitempty" yaml:"persistent,omitempty"`

	// Anchor payload.
	Scope string `json:"scope,omitempty" yaml:"scope,omitempty"`
	Mode  string `json:"mode,omitempty" yaml:"mode,omitempty"`

	// Party payload.
	Members []string `json:"members,omitempty" yaml:"members,omitempty"`
}
