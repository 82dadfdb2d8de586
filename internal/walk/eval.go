package walk

import (
	"strconv"
	"strings"
)

// EvalExpr evaluates the compact condition syntax against the state.
// Supported terms, joined with "&&":
//   - "" (empty = always true)
//   - "<gateID>.cleared" (gate on the current node is cleared)
//   - "flag.<name>" and "!flag.<name>"
//   - "tag.<name>" and "!tag.<name>"
//   - "counter.<name> <op> <int>" with op one of == != >= <= > <
//   - "node == '<nodeID>'" and "region == '<region>'"
//
// An unknown term evaluates to false.
func EvalExpr(expr string, state *GameState) bool {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true
	}

	if strings.Contains(expr, "&&") {
		parts := strings.SplitN(expr, "&&", 2)
		return EvalExpr(parts[0], state) && EvalExpr(parts[1], state)
	}

	if strings.HasPrefix(expr, "!") {
		return !evalTerm(strings.TrimSpace(expr[1:]), state)
	}
	return evalTerm(expr, state)
}

func evalTerm(expr string, state *GameState) bool {
	switch {
	case strings.HasPrefix(expr, "flag."):
		return state.Flags[strings.TrimPrefix(expr, "flag.")]

	case strings.HasPrefix(expr, "tag."):
		return state.Tags[strings.TrimPrefix(expr, "tag.")]

	case strings.HasPrefix(expr, "counter."):
		name, op, value, ok := parseComparison(strings.TrimPrefix(expr, "counter."))
		if !ok {
			return false
		}
		return compareInt(state.Vars[name], op, value)

	case strings.HasPrefix(expr, "node =="):
		return state.Walk.CurrentNode == extractSingleQuotedValue(expr, "node ==")

	case strings.HasPrefix(expr, "region =="):
		return state.Walk.Region == extractSingleQuotedValue(expr, "region ==")

	case strings.HasSuffix(expr, ".cleared"):
		gateID := strings.TrimSuffix(expr, ".cleared")
		return state.Gates.Status(gateID) == GateCleared
	}
	return false
}

// extractSingleQuotedValue extracts a single-quoted value after a prefix.
// Example: "node == 'forest'" with prefix "node ==" returns "forest"
func extractSingleQuotedValue(expr, prefix string) string {
	idx := strings.Index(expr, prefix)
	if idx == -1 {
		return ""
	}
	rest := strings.TrimSpace(expr[idx+len(prefix):])
	if len(rest) < 2 || rest[0] != '\'' {
		return ""
	}
	end := strings.Index(rest[1:], "'")
	if end == -1 {
		return ""
	}
	return rest[1 : end+1]
}

var comparisonOps = []string{"==", "!=", ">=", "<=", ">", "<"}

// parseComparison parses "<name> <op> <int>".
func parseComparison(expr string) (string, string, int, bool) {
	for _, op := range comparisonOps {
		idx := strings.Index(expr, op)
		if idx == -1 {
			continue
		}
		name := strings.TrimSpace(expr[:idx])
		value, err := strconv.Atoi(strings.TrimSpace(expr[idx+len(op):]))
		if name == "" || err != nil {
			return "", "", 0, false
		}
		return name, op, value, true
	}
	return "", "", 0, false
}

func compareInt(have int, op string, want int) bool {
	switch op {
	case "==", "":
		return have == want
	case "!=":
		return have != want
	case ">=":
		return have >= want
	case "<=":
		return have <= want
	case ">":
		return have > want
	case "<":
		return have < want
	}
	return false
}
