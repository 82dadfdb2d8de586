package walk

import (
	"context"
	"errors"
	"testing"

	"github.com/AaronLay10/StepwiseEngine/internal/flow"
)

func TestEvalExpr(t *testing.T) {
	s := anchoredState()
	s.Flags["lamp"] = true
	s.Tags["brave"] = true
	s.Vars["keys"] = 2
	s.Gates.MarkCleared("a")

	tests := []struct {
		expr string
		want bool
	}{
		{"", true},
		{"a.cleared", true},
		{"b.cleared", false},
		{"flag.lamp", true},
		{"!flag.lamp", false},
		{"!flag.door", true},
		{"tag.brave", true},
		{"counter.keys >= 2", true},
		{"counter.keys > 2", false},
		{"counter.keys == 2 && a.cleared", true},
		{"counter.keys != 2", false},
		{"counter.keys <= 1", false},
		{"counter.missing < 1", true},
		{"node == 'hall'", true},
		{"region == 'castle' && flag.lamp", true},
		{"node == 'cave'", false},
		{"a.cleared && b.cleared", false},
		{"something weird", false},
		{"counter.keys >= lots", false},
	}
	for _, tt := range tests {
		if got := EvalExpr(tt.expr, s); got != tt.want {
			t.Errorf("EvalExpr(%q) = %v, want %v", tt.expr, got, tt.want)
		}
	}
}

type stubScripts struct {
	result bool
	err    error
	seen   map[string]interface{}
}

func (s *stubScripts) EvalBool(_ context.Context, _ string, vars map[string]interface{}) (bool, error) {
	s.seen = vars
	return s.result, s.err
}

func TestCheckerSkipsNilAndANDs(t *testing.T) {
	s := NewGameState(1)
	s.Flags["a"] = true
	c := &Checker{}

	if !c.Check(context.Background(), nil, s) {
		t.Error("expected empty list to pass")
	}
	if !c.Check(context.Background(), []*flow.Condition{nil, nil}, s) {
		t.Error("expected all-nil list to pass")
	}
	conds := []*flow.Condition{{Kind: flow.CondFlag, Key: "a"}, nil, {Kind: flow.CondNotFlag, Key: "b"}}
	if !c.Check(context.Background(), conds, s) {
		t.Error("expected flag a and not flag b to pass")
	}
	s.Flags["b"] = true
	if c.Check(context.Background(), conds, s) {
		t.Error("expected not_flag b to fail")
	}
}

func TestCheckerCounterOps(t *testing.T) {
	s := NewGameState(1)
	s.Vars["gold"] = 10
	c := &Checker{}
	tests := []struct {
		op    string
		value int
		want  bool
	}{
		{"", 10, true},
		{">=", 11, false},
		{"<", 11, true},
		{"==", 10, true},
		{"!=", 10, false},
	}
	for _, tt := range tests {
		cond := []*flow.Condition{{Kind: flow.CondCounter, Key: "gold", Op: tt.op, Value: tt.value}}
		if got := c.Check(context.Background(), cond, s); got != tt.want {
			t.Errorf("gold %s %d: got %v, want %v", tt.op, tt.value, got, tt.want)
		}
	}
	bad := []*flow.Condition{{Kind: flow.CondCounter, Key: "gold", Op: "~"}}
	if c.Check(context.Background(), bad, s) {
		t.Error("expected unknown op to fail")
	}
}

func TestCheckerScript(t *testing.T) {
	s := NewGameState(1)
	s.Vars["gold"] = 3
	cond := []*flow.Condition{{Kind: flow.CondScript, Expr: "counters.gold > 2"}}

	if (&Checker{}).Check(context.Background(), cond, s) {
		t.Error("expected script without evaluator to fail")
	}

	stub := &stubScripts{result: true}
	if !(&Checker{Scripts: stub}).Check(context.Background(), cond, s) {
		t.Error("expected script result true")
	}
	counters, _ := stub.seen["counters"].(map[string]interface{})
	if counters["gold"] != 3 {
		t.Errorf("expected script vars to carry counters, got %v", stub.seen["counters"])
	}

	stub = &stubScripts{result: true, err: errors.New("boom")}
	if (&Checker{Scripts: stub}).Check(context.Background(), cond, s) {
		t.Error("expected script error to fail")
	}
}
