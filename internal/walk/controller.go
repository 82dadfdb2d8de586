package walk

import (
	"context"
	"math/rand"

	"github.com/AaronLay10/StepwiseEngine/internal/events"
	"github.com/AaronLay10/StepwiseEngine/internal/flow"
)

// StepOutcome names the branch a step ended in.
type StepOutcome string

const (
	OutcomeWalked      StepOutcome = "walked"
	OutcomeRefreshed   StepOutcome = "refreshed"
	OutcomeGatePassed  StepOutcome = "gate_passed"
	OutcomeGateFailed  StepOutcome = "gate_failed"
	OutcomeGateCooling StepOutcome = "gate_cooling"
	OutcomeForcedEvent StepOutcome = "forced_event"
	OutcomeExitTaken   StepOutcome = "exit_taken"
	OutcomeRewound     StepOutcome = "rewound"
	OutcomeNoNode      StepOutcome = "no_node"
)

// StepResult describes what one step did.
type StepResult struct {
	Outcome   StepOutcome   `json:"outcome"`
	NodeID    string        `json:"node_id"`
	GateID    string        `json:"gate_id,omitempty"`
	EventID   string        `json:"event_id,omitempty"`
	Encounter string        `json:"encounter,omitempty"`
	Battle    BattleOutcome `json:"battle,omitempty"`
	Side      Choice        `json:"side,omitempty"`
	ExitID    string        `json:"exit_id,omitempty"`
	Progress  Progress      `json:"progress"`
}

// Options configures a Controller.
type Options struct {
	// RewindSteps is how far a lost or escaped battle walks the player back.
	RewindSteps int
	// FailCooldown is the gate cooldown after a failure unless the gate
	// declares its own.
	FailCooldown     int
	ResetTrackOnFail bool
	// MaxChoices caps offered exits when a node does not set its own cap.
	MaxChoices int

	Battle    BattleRunner
	Events    EventPlayer
	Input     InputSource
	Publisher ProgressPublisher
	Scripts   ScriptEvaluator
}

// DefaultOptions mirrors the engine.yaml defaults.
func DefaultOptions() Options {
	return Options{
		RewindSteps:      10,
		FailCooldown:     3,
		ResetTrackOnFail: true,
		MaxChoices:       3,
	}
}

// Controller is the step loop for one session. It is not safe for
// concurrent use; Driver serializes access.
type Controller struct {
	graph   *flow.Graph
	state   *GameState
	opts    Options
	checker *Checker
	last    Progress
}

// NewController creates a controller over graph and state. Missing
// collaborators are replaced by the automatic stand-ins.
func NewController(g *flow.Graph, state *GameState, opts Options) *Controller {
	if opts.Battle == nil {
		opts.Battle = AutoBattle{}
	}
	if opts.Events == nil {
		opts.Events = EffectsOnlyPlayer{}
	}
	if opts.Input == nil {
		opts.Input = AutoInput{}
	}
	return &Controller{
		graph:   g,
		state:   state,
		opts:    opts,
		checker: &Checker{Scripts: opts.Scripts},
	}
}

// State returns the live game state.
func (c *Controller) State() *GameState { return c.state }

// Graph returns the graph being walked.
func (c *Controller) Graph() *flow.Graph { return c.graph }

// SetGraph swaps the graph between steps. Live gate state is kept; gates
// the new graph no longer declares are ignored.
func (c *Controller) SetGraph(g *flow.Graph) {
	c.graph = g
	c.last = c.progress()
	events.Emit("info", "graph.reloaded", "", map[string]interface{}{
		"nodes": len(g.Nodes),
	})
}

// LastProgress returns the projection published by the last step.
func (c *Controller) LastProgress() Progress { return c.last }

// CurrentNode returns the authored node the player is on, or nil.
func (c *Controller) CurrentNode() *flow.Node {
	return c.graph.Node(c.state.Walk.CurrentNode)
}

// Start enters the graph's entry node for a fresh session, or resumes the
// node recorded in the state after a load.
func (c *Controller) Start(ctx context.Context) error {
	if c.state.Walk.CurrentNode != "" {
		c.Resume()
		return nil
	}
	node := c.graph.Node(c.graph.Entry)
	if node == nil {
		events.Emit("error", "config.warning", "entry node not found", map[string]interface{}{
			"node_id": c.graph.Entry,
		})
		return newError(CodeConfig, "entry node not found: "+c.graph.Entry)
	}
	cp := c.state.clone()
	if err := c.enter(ctx, node); err != nil {
		c.state.restore(cp)
		return err
	}
	c.publish()
	return nil
}

// Resume initializes the gate resolver for the loaded current node from any
// queued snapshot. The on-enter hook is not fired.
func (c *Controller) Resume() {
	node := c.CurrentNode()
	if node == nil {
		events.Emit("warn", "config.warning", "saved node not found", map[string]interface{}{
			"node_id": c.state.Walk.CurrentNode,
		})
	}
	c.state.Gates.InitializeForNode(node, c.state.Walk.NodeSeed)
	if node != nil {
		c.state.Side.VarietyDepth = node.SideVarietyDepth
	}
	c.publish()
}

// Step performs one discrete step. The only error it returns is the
// context's; in that case every mutation made by the step is rolled back.
func (c *Controller) Step(ctx context.Context) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}
	cp := c.state.clone()
	c.state.StepSerial++
	res := StepResult{}
	if err := c.step(ctx, &res); err != nil {
		c.state.restore(cp)
		events.Emit("warn", "step.canceled", "", map[string]interface{}{
			"node_id":      c.state.Walk.CurrentNode,
			"global_steps": c.state.Counters.Global,
			"error":        err.Error(),
		})
		return StepResult{}, err
	}
	res.NodeID = c.state.Walk.CurrentNode
	res.Progress = c.publish()
	events.Emit("info", "step.completed", "", map[string]interface{}{
		"node_id":      res.NodeID,
		"outcome":      string(res.Outcome),
		"global_steps": c.state.Counters.Global,
		"track":        c.state.Counters.Track,
	})
	return res, nil
}

func (c *Controller) step(ctx context.Context, res *StepResult) error {
	s := c.state

	// 1. Re-enter the node if a rewind moved the pointer.
	node := c.CurrentNode()
	if node == nil {
		events.Emit("warn", "config.warning", "current node not found", map[string]interface{}{
			"node_id": s.Walk.CurrentNode,
		})
		res.Outcome = OutcomeNoNode
		return nil
	}
	if s.Gates.NodeID() != node.ID {
		if err := c.reenter(ctx, node); err != nil {
			return err
		}
		if s.Walk.CurrentNode != node.ID {
			res.Outcome = OutcomeRewound
			return nil
		}
	}
	sides := c.graph.SideTable(node.SideTable)

	// 2. A rewind fired mid-step: show side content again without walking.
	if s.RefreshWithoutStep {
		s.RefreshWithoutStep = false
		s.Side.Retained = ChoiceNone
		RollSides(ctx, sides, s, c.checker, c.rng("refresh"))
		c.emitSides(node)
		events.Emit("info", "step.refreshed", "", map[string]interface{}{"node_id": node.ID})
		res.Outcome = OutcomeRefreshed
		return nil
	}

	// 3. Walk.
	s.Counters.Advance(1)
	s.Counters.AdvanceTrackProgress(node.Track.ExtraProgressPerStep)
	c.mirror(node)
	rng := c.rng("step")

	// 4. Cooldowns and overlay expiry.
	s.Gates.TickCooldowns()
	s.tickSideCooldowns()
	s.tickEncounterCooldowns()
	s.tickForcedCooldowns()
	s.expireOverlays()

	// 5. Side content for display.
	RollSides(ctx, sides, s, c.checker, rng)
	c.emitSides(node)

	// 6. A reached gate blocks the rest of the step.
	if gate := s.Gates.GetNextGate(node, s.Counters.Track); gate != nil {
		res.GateID = gate.ID
		return c.handleGate(ctx, node, gate, res)
	}

	// 7. Forced events.
	if fe := CheckForcedEvents(ctx, node, s, c.checker, rng); fe != nil {
		events.Emit("info", "event.forced", "", map[string]interface{}{
			"node_id":  node.ID,
			"event_id": fe.ID,
		})
		res.Outcome = OutcomeForcedEvent
		res.EventID = fe.ID
		return c.play(ctx, fe.Event)
	}
	res.Outcome = OutcomeWalked

	// 8. Encounters.
	if err := c.handleEncounter(ctx, node, rng, res); err != nil {
		return err
	}
	if c.interrupted(node) {
		res.Outcome = OutcomeRewound
		return nil
	}

	// 9. Side choice.
	if err := c.handleSides(ctx, node, sides, res); err != nil {
		return err
	}
	if c.interrupted(node) {
		res.Outcome = OutcomeRewound
		return nil
	}

	// 10. Exits.
	return c.handleExits(ctx, node, rng, res)
}

func (c *Controller) handleGate(ctx context.Context, node *flow.Node, gate *flow.Gate, res *StepResult) error {
	s := c.state
	st, _ := s.Gates.State(gate.ID)
	if st.Cooldown > 0 {
		events.Emit("info", "gate.cooling", "", map[string]interface{}{
			"node_id":  node.ID,
			"gate_id":  gate.ID,
			"cooldown": st.Cooldown,
		})
		res.Outcome = OutcomeGateCooling
		return nil
	}

	events.Emit("info", "gate.appeared", "", map[string]interface{}{
		"node_id":  node.ID,
		"gate_id":  gate.ID,
		"position": st.Position,
		"visual":   gate.Visual,
		"audio":    gate.Audio,
	})
	if gateTiming(gate) == flow.TimingOnAppear {
		if err := c.play(ctx, gate.Event); err != nil {
			return err
		}
		if c.interrupted(node) {
			res.Outcome = OutcomeRewound
			return nil
		}
	}

	if err := c.opts.Input.AwaitApproach(ctx, gate); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		events.Emit("warn", "event.error", "approach input failed", map[string]interface{}{
			"gate_id": gate.ID,
			"error":   err.Error(),
		})
		res.Outcome = OutcomeGateCooling
		return nil
	}

	if c.checker.Check(ctx, gate.Conditions, s) {
		s.Gates.MarkCleared(gate.ID)
		ApplyEffects(gate.PassEffects, s)
		events.Emit("info", "gate.passed", "", map[string]interface{}{
			"node_id": node.ID,
			"gate_id": gate.ID,
		})
		res.Outcome = OutcomeGatePassed
		if gateTiming(gate) == flow.TimingOnPass {
			if err := c.play(ctx, gate.Event); err != nil {
				return err
			}
		}
		if !c.interrupted(node) && s.Gates.AllGatesCleared(node) {
			events.Emit("info", "gate.cleared", "all gates cleared", map[string]interface{}{
				"node_id": node.ID,
			})
		}
		return nil
	}

	cooldown := c.opts.FailCooldown
	if gate.CooldownOnFail != nil {
		cooldown = *gate.CooldownOnFail
	}
	// Marks land before effects so a rewind among them restores gate state
	// untouched.
	s.Gates.MarkFailed(gate.ID, cooldown)
	ApplyEffects(gate.FailEffects, s)
	if c.opts.ResetTrackOnFail && !c.interrupted(node) {
		s.Counters.ResetTrackProgress()
		c.mirror(node)
	}
	st, _ = s.Gates.State(gate.ID)
	events.Emit("info", "gate.failed", "", map[string]interface{}{
		"node_id":    node.ID,
		"gate_id":    gate.ID,
		"fail_count": st.FailCount,
		"cooldown":   st.Cooldown,
	})
	res.Outcome = OutcomeGateFailed
	if gateTiming(gate) == flow.TimingOnFail {
		return c.play(ctx, gate.Event)
	}
	return nil
}

func gateTiming(g *flow.Gate) flow.EventTiming {
	if g.EventTiming == "" {
		return flow.TimingOnAppear
	}
	return g.EventTiming
}

func (c *Controller) handleEncounter(ctx context.Context, node *flow.Node, rng *rand.Rand, res *StepResult) error {
	if node.EncounterTable == "" {
		return nil
	}
	s := c.state
	table, idx := c.graph.EncounterTable(node.EncounterTable)
	if table == nil {
		events.Emit("warn", "config.warning", "encounter table not found", map[string]interface{}{
			"node_id": node.ID,
			"table":   node.EncounterTable,
		})
		return nil
	}
	enc := RollEncounter(ctx, table, idx, s, c.checker, rng)
	if enc == nil {
		return nil
	}
	res.Encounter = enc.ID
	events.Emit("info", "encounter.triggered", "", map[string]interface{}{
		"node_id":      node.ID,
		"table":        TableKey(table, idx),
		"encounter_id": enc.ID,
	})

	outcome, err := c.opts.Battle.RunBattle(ctx, enc, s)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		events.Emit("error", "battle.error", err.Error(), map[string]interface{}{
			"encounter_id": enc.ID,
		})
		return nil
	}
	res.Battle = outcome
	events.Emit("info", "battle.finished", "", map[string]interface{}{
		"encounter_id": enc.ID,
		"outcome":      string(outcome),
	})

	switch outcome {
	case Victory:
		return c.play(ctx, enc.OnVictory)
	case Defeat, Escape:
		s.Counters.Rewind(c.opts.RewindSteps)
		c.mirror(node)
		ev := enc.OnDefeat
		if outcome == Escape {
			ev = enc.OnEscape
		}
		if err := c.play(ctx, ev); err != nil {
			return err
		}
		if !c.interrupted(node) {
			s.Side.Retained = ChoiceNone
			RollSides(ctx, c.graph.SideTable(node.SideTable), s, c.checker, rng)
			c.emitSides(node)
		}
	default:
		events.Emit("warn", "battle.error", "unknown battle outcome", map[string]interface{}{
			"encounter_id": enc.ID,
			"outcome":      string(outcome),
		})
	}
	return nil
}

func (c *Controller) handleSides(ctx context.Context, node *flow.Node, table *flow.SideTable, res *StepResult) error {
	s := c.state
	left := sideEntry(table, s.Side.Left)
	right := sideEntry(table, s.Side.Right)
	if left == nil && right == nil {
		return nil
	}
	choice, err := c.opts.Input.ChooseSide(ctx, left, right)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		events.Emit("warn", "event.error", "side input failed", map[string]interface{}{
			"node_id": node.ID,
			"error":   err.Error(),
		})
		return nil
	}

	var picked *flow.SideEntry
	switch choice {
	case ChoiceLeft:
		picked = left
	case ChoiceRight:
		picked = right
	case ChoiceCenter:
		return c.keepCenter(ctx, node, res)
	}
	if picked == nil {
		return nil
	}
	res.Side = choice
	selectSide(s, picked, choice, node.RetainUnselectedSide)
	events.Emit("info", "side.selected", "", map[string]interface{}{
		"node_id": node.ID,
		"side":    string(choice),
		"entry":   picked.ID,
	})
	if s.Side.Retained != ChoiceNone {
		events.Emit("info", "side.retained", "", map[string]interface{}{
			"node_id": node.ID,
			"side":    string(s.Side.Retained),
		})
	}
	return c.play(ctx, picked.Event)
}

// keepCenter plays the node's center event. The rolled sides are left
// unselected.
func (c *Controller) keepCenter(ctx context.Context, node *flow.Node, res *StepResult) error {
	if node.CenterEvent == nil {
		return nil
	}
	res.Side = ChoiceCenter
	events.Emit("info", "side.selected", "", map[string]interface{}{
		"node_id":  node.ID,
		"side":     string(ChoiceCenter),
		"event_id": node.CenterEvent.ID,
	})
	return c.play(ctx, node.CenterEvent)
}

func (c *Controller) handleExits(ctx context.Context, node *flow.Node, rng *rand.Rand, res *StepResult) error {
	s := c.state
	if !ShouldSpawn(node.ExitRule, node, s.Gates, s.Counters, rng) {
		return nil
	}
	options := ResolveExits(ctx, c.graph, node, s, c.checker)
	maxChoices := node.ExitRule.MaxChoices
	if maxChoices == 0 {
		maxChoices = c.opts.MaxChoices
	}
	options = SelectExits(options, node.ExitRule.Selection, maxChoices, rng)
	if len(options) == 0 {
		events.Emit("info", "exit.none", "", map[string]interface{}{"node_id": node.ID})
		return nil
	}
	ids := make([]string, len(options))
	for i, o := range options {
		ids[i] = o.ID
	}
	events.Emit("info", "exit.spawned", "", map[string]interface{}{
		"node_id": node.ID,
		"exits":   ids,
	})

	idx, err := c.opts.Input.ChooseExit(ctx, options)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		events.Emit("warn", "event.error", "exit input failed", map[string]interface{}{
			"node_id": node.ID,
			"error":   err.Error(),
		})
		return nil
	}
	if idx < 0 || idx >= len(options) {
		return nil
	}
	return c.transition(ctx, node, options[idx], res)
}

func (c *Controller) transition(ctx context.Context, from *flow.Node, exit ExitOption, res *StepResult) error {
	next := c.graph.Node(exit.Target)
	if next == nil {
		events.Emit("warn", "config.warning", "exit target not found", map[string]interface{}{
			"node_id": from.ID,
			"target":  exit.Target,
		})
		return nil
	}
	if err := c.play(ctx, from.OnExit); err != nil {
		return err
	}
	events.Emit("info", "node.exited", "", map[string]interface{}{"node_id": from.ID})
	events.Emit("info", "exit.taken", "", map[string]interface{}{
		"node_id": from.ID,
		"exit_id": exit.ID,
		"target":  next.ID,
	})
	c.state.Walk.LastExit = exit.ID
	res.ExitID = exit.ID
	res.Outcome = OutcomeExitTaken
	return c.enter(ctx, next)
}

// enter moves the player onto node as a fresh visit.
func (c *Controller) enter(ctx context.Context, node *flow.Node) error {
	s := c.state
	regionChanged := s.Walk.Region != node.Region

	s.Walk.CurrentNode = node.ID
	s.Walk.Region = node.Region
	s.Walk.Visits[node.ID]++
	s.Walk.NodeSeed = deriveSeed(s.Seed, node.ID, s.Counters.Global)

	s.Counters.ResetNodeSteps()
	c.mirror(node)
	s.Anchors.ClearAnchorsInScope(ScopeNode)
	if regionChanged {
		s.Anchors.ClearAnchorsInScope(ScopeRegion)
	}
	s.dropTransientOverlays()
	s.Side = SideState{
		VarietyDepth: node.SideVarietyDepth,
		Cooldowns:    s.Side.Cooldowns,
		History:      s.Side.History,
	}
	s.Gates.InitializeForNode(node, s.Walk.NodeSeed)

	events.Emit("info", "node.entered", "", map[string]interface{}{
		"node_id": node.ID,
		"region":  node.Region,
		"visit":   s.Walk.Visits[node.ID],
	})
	return c.play(ctx, node.OnEnter)
}

// reenter returns to node after a rewind. Counters and seed come from the
// anchor, so nothing is reset.
func (c *Controller) reenter(ctx context.Context, node *flow.Node) error {
	s := c.state
	s.Walk.Region = node.Region
	s.Side = SideState{
		VarietyDepth: node.SideVarietyDepth,
		Cooldowns:    s.Side.Cooldowns,
		History:      s.Side.History,
	}
	s.Gates.InitializeForNode(node, s.Walk.NodeSeed)
	events.Emit("info", "node.reentered", "", map[string]interface{}{
		"node_id": node.ID,
		"region":  node.Region,
	})
	return c.play(ctx, node.OnEnter)
}

// play hands ev to the event player and then applies its effects. Playback
// errors other than cancellation are logged and the effects are skipped.
func (c *Controller) play(ctx context.Context, ev *flow.Event) error {
	if ev == nil {
		return nil
	}
	if err := c.opts.Events.Play(ctx, ev, c.state); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		events.Emit("error", "event.error", err.Error(), map[string]interface{}{
			"event_id": ev.ID,
		})
		return nil
	}
	ApplyEffects(ev.Effects, c.state)
	events.Emit("info", "event.played", "", map[string]interface{}{
		"event_id": ev.ID,
		"kind":     ev.Kind,
	})
	return nil
}

// interrupted reports whether an effect rewound the walk or moved the
// player off node during this step.
func (c *Controller) interrupted(node *flow.Node) bool {
	return c.state.RefreshWithoutStep || c.state.Walk.CurrentNode != node.ID
}

func (c *Controller) mirror(node *flow.Node) {
	if node != nil && node.Track.MirrorCounter != "" {
		c.state.Vars[node.Track.MirrorCounter] = c.state.Counters.Track
	}
}

func (c *Controller) emitSides(node *flow.Node) {
	if c.state.Side.Left == "" && c.state.Side.Right == "" {
		return
	}
	events.Emit("info", "side.rolled", "", map[string]interface{}{
		"node_id": node.ID,
		"left":    c.state.Side.Left,
		"right":   c.state.Side.Right,
	})
}

// rng returns the deterministic random source for the current step.
func (c *Controller) rng(phase string) *rand.Rand {
	s := c.state
	return rand.New(rand.NewSource(deriveSeed(s.Seed^s.Walk.NodeSeed, phase, s.StepSerial)))
}

func (c *Controller) progress() Progress {
	return CalculateProgress(c.CurrentNode(), c.state.Gates, c.state.Counters, c.state.Walk.NodeSeed)
}

func (c *Controller) publish() Progress {
	c.last = c.progress()
	if c.opts.Publisher != nil {
		c.opts.Publisher.Publish(c.last)
	}
	return c.last
}
