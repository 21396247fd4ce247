// Package condition implements the boolean expression trees used for source
// candidate gating and step/field visibility. Trees are parsed and validated
// once at configuration load; evaluation against a flat value map is a plain
// recursive walk with short-circuiting and no allocation.
package condition

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Op identifies a comparison operator. The spellings match the wire grammar.
type Op string

const (
	OpEq  Op = "==="
	OpNeq Op = "!=="
	OpGt  Op = ">"
	OpLt  Op = "<"
	OpGte Op = ">="
	OpLte Op = "<="
)

// MaxDepth bounds condition tree nesting. Trees are structurally acyclic, the
// guard just keeps a pathological configuration from blowing the stack.
const MaxDepth = 32

// Node is one vertex of a condition tree. Trees are immutable once parsed and
// safe to share across sessions.
type Node interface {
	node()
}

// Var reads a field value from the flat value map. A missing field reads as
// nil.
type Var struct {
	Name string
}

// Literal is a constant operand.
type Literal struct {
	Value any
}

// Compare applies Op to two operands.
type Compare struct {
	Op    Op
	Left  Node
	Right Node
}

// And is true when every term is true. Empty And is true.
type And struct {
	Terms []Node
}

// Or is true when any term is true. Empty Or is false.
type Or struct {
	Terms []Node
}

// In is true when Value equals any member of Set.
type In struct {
	Value Node
	Set   []Node
}

func (Var) node()     {}
func (Literal) node() {}
func (Compare) node() {}
func (And) node()     {}
func (Or) node()      {}
func (In) node()      {}

// Parse decodes a JSON condition document into a tree.
func Parse(data []byte) (Node, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("condition: parse: %w", err)
	}
	return FromValue(raw)
}

// FromValue builds a tree from an already-decoded document (JSON or YAML).
// Shape errors are configuration errors; FromValue is never called while a
// form session is live.
func FromValue(raw any) (Node, error) {
	return fromValue(raw, 0)
}

func fromValue(raw any, depth int) (Node, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("condition: tree exceeds max depth %d", MaxDepth)
	}

	m, ok := asObject(raw)
	if !ok {
		// Bare scalars are literals: strings, numbers, bools, null.
		return Literal{Value: raw}, nil
	}
	if len(m) != 1 {
		return nil, fmt.Errorf("condition: node must have exactly one operator key, got %d", len(m))
	}

	var key string
	var value any
	for k, v := range m {
		key, value = k, v
	}

	switch key {
	case "var":
		name, ok := value.(string)
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("condition: var name must be a non-empty string")
		}
		return Var{Name: strings.TrimSpace(name)}, nil
	case "and", "or":
		terms, err := childList(key, value, depth)
		if err != nil {
			return nil, err
		}
		if key == "and" {
			return And{Terms: terms}, nil
		}
		return Or{Terms: terms}, nil
	case "in":
		pair, ok := value.([]any)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("condition: in expects [value, set]")
		}
		operand, err := fromValue(pair[0], depth+1)
		if err != nil {
			return nil, err
		}
		members, ok := pair[1].([]any)
		if !ok {
			return nil, fmt.Errorf("condition: in set must be a sequence")
		}
		set := make([]Node, 0, len(members))
		for _, member := range members {
			node, err := fromValue(member, depth+1)
			if err != nil {
				return nil, err
			}
			set = append(set, node)
		}
		return In{Value: operand, Set: set}, nil
	case string(OpEq), string(OpNeq), string(OpGt), string(OpLt), string(OpGte), string(OpLte):
		pair, ok := value.([]any)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("condition: %s expects [left, right]", key)
		}
		left, err := fromValue(pair[0], depth+1)
		if err != nil {
			return nil, err
		}
		right, err := fromValue(pair[1], depth+1)
		if err != nil {
			return nil, err
		}
		return Compare{Op: Op(key), Left: left, Right: right}, nil
	default:
		return nil, fmt.Errorf("condition: unknown operator %q", key)
	}
}

func childList(op string, value any, depth int) ([]Node, error) {
	raw, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("condition: %s expects a sequence of conditions", op)
	}
	terms := make([]Node, 0, len(raw))
	for _, child := range raw {
		node, err := fromValue(child, depth+1)
		if err != nil {
			return nil, err
		}
		terms = append(terms, node)
	}
	return terms, nil
}

func asObject(raw any) (map[string]any, bool) {
	m, ok := raw.(map[string]any)
	return m, ok
}

// Evaluate runs the tree against a flat value map. The returned error is an
// evaluation fault (an ordering comparison between non-numeric operands);
// how faults translate to visibility is the caller's policy, not this
// package's.
func Evaluate(n Node, values map[string]any) (bool, error) {
	switch typed := n.(type) {
	case Var:
		return truthy(values[typed.Name]), nil
	case Literal:
		return truthy(typed.Value), nil
	case And:
		for _, term := range typed.Terms {
			ok, err := Evaluate(term, values)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case Or:
		for _, term := range typed.Terms {
			ok, err := Evaluate(term, values)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case Compare:
		return compare(typed, values)
	case In:
		needle, err := operand(typed.Value, values)
		if err != nil {
			return false, err
		}
		for _, member := range typed.Set {
			candidate, err := operand(member, values)
			if err != nil {
				return false, err
			}
			if equal(needle, candidate) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("condition: unsupported node %T", n)
	}
}

func compare(c Compare, values map[string]any) (bool, error) {
	left, err := operand(c.Left, values)
	if err != nil {
		return false, err
	}
	right, err := operand(c.Right, values)
	if err != nil {
		return false, err
	}

	switch c.Op {
	case OpEq:
		return equal(left, right), nil
	case OpNeq:
		return !equal(left, right), nil
	}

	// Ordering. A nil operand (missing field) compares false rather than
	// faulting; only genuinely non-numeric operands are a fault.
	if left == nil || right == nil {
		return false, nil
	}
	lf, lok := coerceNumber(left)
	rf, rok := coerceNumber(right)
	if !lok || !rok {
		return false, fmt.Errorf("condition: %s: non-numeric operand (%v, %v)", c.Op, left, right)
	}

	switch c.Op {
	case OpGt:
		return lf > rf, nil
	case OpLt:
		return lf < rf, nil
	case OpGte:
		return lf >= rf, nil
	case OpLte:
		return lf <= rf, nil
	default:
		return false, fmt.Errorf("condition: unknown operator %q", c.Op)
	}
}

// operand resolves a node used as a comparison operand. A nested condition
// evaluates to its boolean; a fault inside it propagates so the caller's
// fail-open/fail-closed policy applies to the whole tree.
func operand(n Node, values map[string]any) (any, error) {
	switch typed := n.(type) {
	case Var:
		return values[typed.Name], nil
	case Literal:
		return typed.Value, nil
	default:
		ok, err := Evaluate(n, values)
		if err != nil {
			return nil, err
		}
		return ok, nil
	}
}

// equal implements the grammar's strict-equality: nil only equals nil, both
// sides numeric compares numerically, everything else compares as strings.
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aok := coerceNumber(a)
	bf, bok := coerceNumber(b)
	if aok && bok {
		return af == bf
	}
	if aok != bok {
		return false
	}
	return coerceString(a) == coerceString(b)
}

func truthy(value any) bool {
	if value == nil {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return strings.TrimSpace(v) != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case float32:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

func coerceNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func coerceString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(value)
	}
}

// Vars returns the sorted set of field names referenced anywhere in the given
// trees. It runs once per configuration load (and again when a template
// expansion introduces new trees), never per evaluation.
func Vars(nodes ...Node) []string {
	set := make(map[string]struct{})
	for _, n := range nodes {
		collectVars(n, set)
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func collectVars(n Node, set map[string]struct{}) {
	switch typed := n.(type) {
	case Var:
		set[typed.Name] = struct{}{}
	case Compare:
		collectVars(typed.Left, set)
		collectVars(typed.Right, set)
	case And:
		for _, term := range typed.Terms {
			collectVars(term, set)
		}
	case Or:
		for _, term := range typed.Terms {
			collectVars(term, set)
		}
	case In:
		collectVars(typed.Value, set)
		for _, member := range typed.Set {
			collectVars(member, set)
		}
	}
}

// Rewrite returns a copy of the tree with every Var name passed through fn.
// Used when array-template expansion qualifies template-local field names
// with their instance index.
func Rewrite(n Node, fn func(string) string) Node {
	if n == nil {
		return nil
	}
	switch typed := n.(type) {
	case Var:
		return Var{Name: fn(typed.Name)}
	case Literal:
		return typed
	case Compare:
		return Compare{Op: typed.Op, Left: Rewrite(typed.Left, fn), Right: Rewrite(typed.Right, fn)}
	case And:
		return And{Terms: rewriteAll(typed.Terms, fn)}
	case Or:
		return Or{Terms: rewriteAll(typed.Terms, fn)}
	case In:
		return In{Value: Rewrite(typed.Value, fn), Set: rewriteAll(typed.Set, fn)}
	default:
		return n
	}
}

func rewriteAll(nodes []Node, fn func(string) string) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = Rewrite(n, fn)
	}
	return out
}
