package visibility

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-formflow/pkg/condition"
)

// StepRule gates one step. A nil When means always visible.
type StepRule struct {
	ID   string
	When condition.Node
}

// FieldRule gates one field. StepID ties the field to its step: a field in a
// hidden step is never visible regardless of its own condition. RuleExpr is
// an optional string rule handed to the configured Evaluator.
type FieldRule struct {
	ID     string
	StepID string

	When         condition.Node
	RequiredWhen condition.Node

	// AlwaysRequired marks the static required flag; RequiredWhen adds the
	// conditional variant on top.
	AlwaysRequired bool

	RuleExpr string
}

// RuleSet is every step and field rule of one configuration, in declaration
// order. Immutable once handed to a Resolver; replace via SetRules.
type RuleSet struct {
	Steps  []StepRule
	Fields []FieldRule
}

// Result is the outcome of one visibility pass. The maps are shared with the
// resolver's memoization cache; callers must treat them as read-only.
type Result struct {
	VisibleSteps   map[string]bool
	VisibleFields  map[string]bool
	RequiredFields map[string]bool
}

// Resolver recomputes visibility and requiredness across a rule set,
// memoized on a dependency signature so a value change that no condition
// tracks costs one map lookup per tracked variable, not a full pass.
//
// A Resolver belongs to one form session and is not safe for concurrent use,
// matching the session's single-writer contract.
type Resolver struct {
	rules   RuleSet
	tracked []string

	failClosed bool
	log        zerolog.Logger
	evaluator  Evaluator
	extras     map[string]any

	// string rules are opaque to static dependency extraction, so their
	// presence disables memoization entirely rather than risking a stale
	// result.
	hasExprRules bool

	signature  string
	cached     Result
	hasCached  bool
	recomputes int
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithFailClosed makes an evaluation fault hide the step or field instead of
// showing it. The default preserves the prototype's fail-open behavior.
func WithFailClosed() Option {
	return func(r *Resolver) { r.failClosed = true }
}

// WithLogger routes fault and recompute diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

// WithEvaluator supplies the evaluator for FieldRule.RuleExpr strings.
func WithEvaluator(eval Evaluator) Option {
	return func(r *Resolver) { r.evaluator = eval }
}

// WithExtras injects caller context passed through to the Evaluator.
func WithExtras(extras map[string]any) Option {
	return func(r *Resolver) { r.extras = extras }
}

// NewResolver builds a resolver for the rule set and precomputes the tracked
// variable list.
func NewResolver(rules RuleSet, opts ...Option) *Resolver {
	r := &Resolver{log: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.install(rules)
	return r
}

// SetRules swaps the rule set, re-extracts tracked variables, and drops the
// memoized result. Called when an array-template expansion changes the
// effective field list.
func (r *Resolver) SetRules(rules RuleSet) {
	r.install(rules)
}

func (r *Resolver) install(rules RuleSet) {
	r.rules = rules
	r.hasCached = false
	r.signature = ""

	var nodes []condition.Node
	r.hasExprRules = false
	for _, step := range rules.Steps {
		if step.When != nil {
			nodes = append(nodes, step.When)
		}
	}
	for _, field := range rules.Fields {
		if field.When != nil {
			nodes = append(nodes, field.When)
		}
		if field.RequiredWhen != nil {
			nodes = append(nodes, field.RequiredWhen)
		}
		if strings.TrimSpace(field.RuleExpr) != "" {
			r.hasExprRules = true
		}
	}
	r.tracked = condition.Vars(nodes...)

	if r.hasExprRules {
		r.log.Debug().Msg("string rules present, visibility memoization disabled")
	}
}

// Rules returns the installed rule set. Callers must treat it as read-only.
func (r *Resolver) Rules() RuleSet { return r.rules }

// TrackedVars returns the variable names whose changes can affect any rule.
func (r *Resolver) TrackedVars() []string {
	out := make([]string, len(r.tracked))
	copy(out, r.tracked)
	return out
}

// Signature serializes the current values of every tracked variable. Equal
// signatures mean an identical visibility outcome. Values are quoted so a
// string containing the pair separators cannot make two distinct states
// serialize identically.
func (r *Resolver) Signature(values map[string]any) string {
	var b strings.Builder
	for _, name := range r.tracked {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strconv.Quote(fmt.Sprint(values[name])))
		b.WriteByte(';')
	}
	return b.String()
}

// Recomputes reports how many full passes have run; the memoization tests
// and the engine's debug logging use it.
func (r *Resolver) Recomputes() int { return r.recomputes }

// Recompute returns the current visible/required sets, re-running the full
// pass only when a tracked variable changed since the previous call.
func (r *Resolver) Recompute(values map[string]any) Result {
	if !r.hasExprRules {
		sig := r.Signature(values)
		if r.hasCached && sig == r.signature {
			return r.cached
		}
		r.signature = sig
	}

	result := r.compute(values)
	r.cached = result
	r.hasCached = true
	r.recomputes++
	return result
}

func (r *Resolver) compute(values map[string]any) Result {
	result := Result{
		VisibleSteps:   make(map[string]bool, len(r.rules.Steps)),
		VisibleFields:  make(map[string]bool, len(r.rules.Fields)),
		RequiredFields: make(map[string]bool),
	}

	for _, step := range r.rules.Steps {
		if r.evalNode(step.When, values, "step "+step.ID) {
			result.VisibleSteps[step.ID] = true
		}
	}

	for _, field := range r.rules.Fields {
		if field.StepID != "" && !result.VisibleSteps[field.StepID] && r.hasStep(field.StepID) {
			continue
		}
		if !r.evalNode(field.When, values, "field "+field.ID) {
			continue
		}
		if !r.evalExpr(field, values) {
			continue
		}
		result.VisibleFields[field.ID] = true

		if field.AlwaysRequired || (field.RequiredWhen != nil && r.evalNode(field.RequiredWhen, values, "required "+field.ID)) {
			result.RequiredFields[field.ID] = true
		}
	}

	return result
}

func (r *Resolver) hasStep(id string) bool {
	for _, step := range r.rules.Steps {
		if step.ID == id {
			return true
		}
	}
	return false
}

// evalNode applies the fault policy: an evaluation fault resolves to visible
// under fail-open (the default), hidden under fail-closed, and is logged
// either way.
func (r *Resolver) evalNode(node condition.Node, values map[string]any, subject string) bool {
	if node == nil {
		return true
	}
	ok, err := condition.Evaluate(node, values)
	if err != nil {
		r.log.Warn().Err(err).Str("subject", subject).Bool("failClosed", r.failClosed).
			Msg("condition evaluation fault")
		return !r.failClosed
	}
	return ok
}

func (r *Resolver) evalExpr(field FieldRule, values map[string]any) bool {
	rule := strings.TrimSpace(field.RuleExpr)
	if rule == "" {
		return true
	}
	if r.evaluator == nil {
		r.log.Warn().Str("field", field.ID).Msg("string rule present but no evaluator configured")
		return !r.failClosed
	}
	ok, err := r.evaluator.Eval(field.ID, rule, Context{Values: values, Extras: r.extras})
	if err != nil {
		r.log.Warn().Err(err).Str("field", field.ID).Msg("string rule evaluation fault")
		return !r.failClosed
	}
	return ok
}
