// Package expr adapts the expr-lang expression engine to the
// visibility.Evaluator interface, letting callers attach string rules such as
// `loanAmount > 100000 && extras.role == "underwriter"` to fields without
// touching the condition-tree grammar.
package expr

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	exprlang "github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/goliatone/go-formflow/pkg/visibility"
)

// Evaluator compiles each distinct rule once and caches the program. The
// cache lives on the evaluator instance, so scoping one evaluator per
// configuration keeps rules from interfering across configurations.
type Evaluator struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// New returns an empty evaluator.
func New() *Evaluator {
	return &Evaluator{programs: make(map[string]*vm.Program)}
}

// Eval compiles (or reuses) the rule and runs it against the context values.
// The rule sees every flat form value as a variable plus the caller extras
// under `extras.`. Any non-boolean result is coerced: non-zero numbers and
// non-empty strings count as true.
func (e *Evaluator) Eval(fieldPath, rule string, ctx visibility.Context) (bool, error) {
	_ = fieldPath
	trimmed := strings.TrimSpace(rule)
	if trimmed == "" {
		return true, nil
	}

	program, err := e.compile(trimmed)
	if err != nil {
		return false, err
	}

	env := make(map[string]any, len(ctx.Values)+1)
	for key, value := range ctx.Values {
		env[key] = value
	}
	env["extras"] = ctx.Extras

	out, err := exprlang.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("visibility/expr: run %q: %w", trimmed, err)
	}
	return truthy(out), nil
}

func (e *Evaluator) compile(rule string) (*vm.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[rule]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	compiled, err := exprlang.Compile(rule, exprlang.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("visibility/expr: compile %q: %w", rule, err)
	}

	e.mu.Lock()
	e.programs[rule] = compiled
	e.mu.Unlock()
	return compiled, nil
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		trimmed := strings.TrimSpace(v)
		if parsed, err := strconv.ParseBool(trimmed); err == nil {
			return parsed
		}
		return trimmed != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}
