package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/AaronLay10/StepwiseEngine/internal/events"
	"github.com/AaronLay10/StepwiseEngine/internal/flow"
	"github.com/AaronLay10/StepwiseEngine/internal/walk"
)

// BattleRequest is published when an encounter starts.
type BattleRequest struct {
	RequestID   string         `json:"request_id"`
	EncounterID string         `json:"encounter_id"`
	Params      map[string]any `json:"params,omitempty"`
	NodeID      string         `json:"node_id"`
	GlobalSteps int            `json:"global_steps"`
	Party       []string       `json:"party,omitempty"`
}

// BattleResult is expected back on the result topic.
type BattleResult struct {
	RequestID string             `json:"request_id"`
	Outcome   walk.BattleOutcome `json:"outcome"`
}

// BattleBridge runs battles in a remote process. It implements
// walk.BattleRunner.
type BattleBridge struct {
	m       Messenger
	prefix  string
	timeout time.Duration

	mu      sync.Mutex
	seq     uint64
	waiting map[string]chan walk.BattleOutcome
}

// NewBattleBridge subscribes to the result topic under prefix.
func NewBattleBridge(m Messenger, prefix string, timeout time.Duration) (*BattleBridge, error) {
	b := &BattleBridge{
		m:       m,
		prefix:  prefix,
		timeout: timeout,
		waiting: map[string]chan walk.BattleOutcome{},
	}
	if err := m.Subscribe(b.resultTopic(), b.handleResult); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *BattleBridge) requestTopic() string { return b.prefix + "/battle/request" }
func (b *BattleBridge) resultTopic() string  { return b.prefix + "/battle/result" }

// RunBattle publishes a request and waits for the matching result.
func (b *BattleBridge) RunBattle(ctx context.Context, enc *flow.Encounter, state *walk.GameState) (walk.BattleOutcome, error) {
	b.mu.Lock()
	b.seq++
	id := strconv.FormatUint(b.seq, 10)
	ch := make(chan walk.BattleOutcome, 1)
	b.waiting[id] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.waiting, id)
		b.mu.Unlock()
	}()

	req := BattleRequest{
		RequestID:   id,
		EncounterID: enc.ID,
		Params:      enc.Params,
		NodeID:      state.Walk.CurrentNode,
		GlobalSteps: state.Counters.Global,
		Party:       state.Party.Active,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	if err := b.m.Publish(b.requestTopic(), payload, false); err != nil {
		return "", fmt.Errorf("publish battle request: %w", err)
	}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	select {
	case outcome := <-ch:
		return outcome, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (b *BattleBridge) handleResult(_ string, payload []byte) {
	var res BattleResult
	if err := json.Unmarshal(payload, &res); err != nil {
		events.Emit("warn", "battle.error", "invalid battle result", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	switch res.Outcome {
	case walk.Victory, walk.Defeat, walk.Escape:
	default:
		events.Emit("warn", "battle.error", "unknown battle outcome", map[string]interface{}{
			"request_id": res.RequestID,
			"outcome":    string(res.Outcome),
		})
		return
	}

	b.mu.Lock()
	ch, ok := b.waiting[res.RequestID]
	b.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- res.Outcome:
	default:
	}
}
