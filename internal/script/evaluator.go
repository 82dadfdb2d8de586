// Package script evaluates authored script conditions with tengo.
package script

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
)

const resultVar = "__result__"

// DefaultTimeout bounds a single evaluation.
const DefaultTimeout = 50 * time.Millisecond

// Evaluator compiles each expression once per variable set and runs a clone
// of the compiled program for every evaluation. It is safe for concurrent use.
type Evaluator struct {
	Timeout time.Duration

	mu       sync.Mutex
	compiled map[string]*tengo.Compiled
}

// NewEvaluator returns an evaluator using DefaultTimeout.
func NewEvaluator() *Evaluator {
	return &Evaluator{Timeout: DefaultTimeout, compiled: map[string]*tengo.Compiled{}}
}

// EvalBool evaluates expr with vars bound as globals and reports the
// truthiness of the result.
func (e *Evaluator) EvalBool(ctx context.Context, expr string, vars map[string]interface{}) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false, fmt.Errorf("empty script expression")
	}
	c, err := e.program(expr, vars)
	if err != nil {
		return false, err
	}
	for k, v := range vars {
		if err := c.Set(k, v); err != nil {
			return false, fmt.Errorf("script var %s: %w", k, err)
		}
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	if err := c.RunContext(ctx); err != nil {
		return false, fmt.Errorf("script %q: %w", expr, err)
	}
	return c.Get(resultVar).Bool(), nil
}

func (e *Evaluator) program(expr string, vars map[string]interface{}) (*tengo.Compiled, error) {
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	sort.Strings(names)
	key := expr + "\x00" + strings.Join(names, ",")

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.compiled == nil {
		e.compiled = map[string]*tengo.Compiled{}
	}
	if c, ok := e.compiled[key]; ok {
		return c.Clone(), nil
	}

	s := tengo.NewScript([]byte(fmt.Sprintf("%s := (%s)", resultVar, expr)))
	for _, name := range names {
		if err := s.Add(name, nil); err != nil {
			return nil, fmt.Errorf("script var %s: %w", name, err)
		}
	}
	s.SetImports(stdlib.GetModuleMap("math", "text", "times"))
	c, err := s.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile script %q: %w", expr, err)
	}
	e.compiled[key] = c
	return c.Clone(), nil
}
