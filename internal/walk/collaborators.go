package walk

import (
	"context"

	"github.com/AaronLay10/StepwiseEngine/internal/flow"
)

// BattleOutcome is reported by the battle runner.
type BattleOutcome string

const (
	Victory BattleOutcome = "victory"
	Defeat  BattleOutcome = "defeat"
	Escape  BattleOutcome = "escape"
)

// Choice is the player's approach choice for side content.
type Choice string

const (
	ChoiceNone   Choice = ""
	ChoiceLeft   Choice = "left"
	ChoiceRight  Choice = "right"
	ChoiceCenter Choice = "center"
)

// BattleRunner runs an encounter to completion.
type BattleRunner interface {
	RunBattle(ctx context.Context, enc *flow.Encounter, state *GameState) (BattleOutcome, error)
}

// EventPlayer plays an event to completion. The controller applies the
// event's effects after Play returns without error.
type EventPlayer interface {
	Play(ctx context.Context, ev *flow.Event, state *GameState) error
}

// InputSource is the player.
type InputSource interface {
	// AwaitApproach blocks until the player approaches gate.
	AwaitApproach(ctx context.Context, gate *flow.Gate) error
	// ChooseSide picks between the rolled side entries. Either may be nil.
	ChooseSide(ctx context.Context, left, right *flow.SideEntry) (Choice, error)
	// ChooseExit returns an index into options, or -1 to keep walking.
	ChooseExit(ctx context.Context, options []ExitOption) (int, error)
}

// ProgressPublisher receives the projection once per step.
type ProgressPublisher interface {
	Publish(p Progress)
}

// ScriptEvaluator evaluates script conditions.
type ScriptEvaluator interface {
	EvalBool(ctx context.Context, expr string, vars map[string]interface{}) (bool, error)
}

// PublisherFunc adapts a function to ProgressPublisher.
type PublisherFunc func(Progress)

func (f PublisherFunc) Publish(p Progress) { f(p) }

// MultiPublisher fans a projection out to several publishers.
type MultiPublisher []ProgressPublisher

func (m MultiPublisher) Publish(p Progress) {
	for _, pub := range m {
		if pub != nil {
			pub.Publish(p)
		}
	}
}

// AutoBattle resolves every battle with a fixed outcome.
type AutoBattle struct {
	Outcome BattleOutcome
}

func (b AutoBattle) RunBattle(ctx context.Context, _ *flow.Encounter, _ *GameState) (BattleOutcome, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if b.Outcome == "" {
		return Victory, nil
	}
	return b.Outcome, nil
}

// EffectsOnlyPlayer plays nothing. The controller still applies the effects.
type EffectsOnlyPlayer struct{}

func (EffectsOnlyPlayer) Play(ctx context.Context, _ *flow.Event, _ *GameState) error {
	return ctx.Err()
}

// AutoInput answers every prompt immediately using a fixed policy.
type AutoInput struct {
	// Side is picked whenever that side has content.
	Side Choice
	// TakeExit picks the first offered exit when true.
	TakeExit bool
}

func (a AutoInput) AwaitApproach(ctx context.Context, _ *flow.Gate) error {
	return ctx.Err()
}

func (a AutoInput) ChooseSide(ctx context.Context, left, right *flow.SideEntry) (Choice, error) {
	if err := ctx.Err(); err != nil {
		return ChoiceNone, err
	}
	switch {
	case a.Side == ChoiceLeft && left != nil:
		return ChoiceLeft, nil
	case a.Side == ChoiceRight && right != nil:
		return ChoiceRight, nil
	}
	return ChoiceCenter, nil
}

func (a AutoInput) ChooseExit(ctx context.Context, options []ExitOption) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}
	if a.TakeExit && len(options) > 0 {
		return 0, nil
	}
	return -1, nil
}
