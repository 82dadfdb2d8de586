package walk

import (
	"context"
	"fmt"

	"github.com/AaronLay10/StepwiseEngine/internal/events"
	"github.com/AaronLay10/StepwiseEngine/internal/flow"
)

// Checker evaluates authored condition lists.
type Checker struct {
	Scripts ScriptEvaluator
}

// Check ANDs every condition. Nil entries are skipped, so an empty or
// all-nil list passes.
func (c *Checker) Check(ctx context.Context, conds []*flow.Condition, state *GameState) bool {
	for _, cond := range conds {
		if cond == nil {
			continue
		}
		ok, err := c.eval(ctx, cond, state)
		if err != nil {
			events.Emit("warn", "config.warning", "condition evaluation failed", map[string]interface{}{
				"kind":  string(cond.Kind),
				"key":   cond.Key,
				"error": err.Error(),
			})
			return false
		}
		if !ok {
			return false
		}
	}
	return true
}

func (c *Checker) eval(ctx context.Context, cond *flow.Condition, state *GameState) (bool, error) {
	switch cond.Kind {
	case flow.CondFlag:
		return state.Flags[cond.Key], nil
	case flow.CondNotFlag:
		return !state.Flags[cond.Key], nil
	case flow.CondCounter:
		op := cond.Op
		if op == "" {
			op = ">="
		}
		for _, known := range comparisonOps {
			if op == known {
				return compareInt(state.Vars[cond.Key], op, cond.Value), nil
			}
		}
		return false, newError(CodeCondition, fmt.Sprintf("unknown counter op %q", cond.Op))
	case flow.CondTag:
		return state.Tags[cond.Key], nil
	case flow.CondNotTag:
		return !state.Tags[cond.Key], nil
	case flow.CondExpr:
		return EvalExpr(cond.Expr, state), nil
	case flow.CondScript:
		if c == nil || c.Scripts == nil {
			return false, newError(CodeConfig, "script condition without a script evaluator")
		}
		ok, err := c.Scripts.EvalBool(ctx, cond.Expr, state.ScriptVars())
		if err != nil {
			return false, wrapError(CodeCondition, "script condition", err)
		}
		return ok, nil
	}
	return false, newError(CodeConfig, fmt.Sprintf("unknown condition kind %q", cond.Kind))
}
