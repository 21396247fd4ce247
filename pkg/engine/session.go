package engine

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-formflow/internal/model"
	"github.com/goliatone/go-formflow/pkg/expand"
	"github.com/goliatone/go-formflow/pkg/mapping"
	"github.com/goliatone/go-formflow/pkg/validation"
	"github.com/goliatone/go-formflow/pkg/visibility"
)

// ValidationError reports declared field rules that failed at submission.
type ValidationError struct {
	Issues []validation.Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "engine: validation failed"
	}
	first := e.Issues[0]
	if len(e.Issues) == 1 {
		return fmt.Sprintf("engine: %s %s", first.Field, first.Message)
	}
	return fmt.Sprintf("engine: %s %s (and %d more)", first.Field, first.Message, len(e.Issues)-1)
}

// Session is one user's pass through the form: the flat value map plus the
// visibility resolver memoized over it. A session has a single writer and is
// not safe for concurrent use.
type Session struct {
	engine *Engine
	values map[string]any
	vis    *visibility.Resolver

	// counts is the template expansion the current rule set was built for;
	// a count change rebuilds the rules.
	counts map[string]int
}

// NewSession starts an empty session.
func (e *Engine) NewSession() *Session {
	return e.newSession(make(map[string]any))
}

// NewSessionFrom starts a session prefilled from a source document and
// request context through the inbound mapping.
func (e *Engine) NewSessionFrom(source, ctx map[string]any) *Session {
	return e.newSession(e.ResolveInbound(source, ctx))
}

func (e *Engine) newSession(values map[string]any) *Session {
	s := &Session{engine: e, values: values}
	s.counts = e.templateCounts(values)
	s.vis = visibility.NewResolver(e.ruleSet(values), s.visOptions()...)
	return s
}

func (s *Session) visOptions() []visibility.Option {
	opts := []visibility.Option{visibility.WithLogger(s.engine.log)}
	if s.engine.failClosed {
		opts = append(opts, visibility.WithFailClosed())
	}
	if s.engine.evaluator != nil {
		opts = append(opts, visibility.WithEvaluator(s.engine.evaluator))
	}
	if s.engine.extras != nil {
		opts = append(opts, visibility.WithExtras(s.engine.extras))
	}
	return opts
}

// Set stores one field value. When the field controls an array template and
// the resolved instance count changes, the visibility rule set is rebuilt
// around the new expansion. Values of instances past a shrunken count are
// dropped from the store: they are no longer declared, visible, or validated,
// and must not survive into the outbound document.
func (s *Session) Set(field string, value any) {
	s.values[field] = value

	changed := false
	for _, name := range s.engine.templateNames {
		tmpl := s.engine.doc.Form.Templates[name]
		if tmpl.CountField != field {
			continue
		}
		if count := expand.Count(tmpl, s.values); count != s.counts[name] {
			if count < s.counts[name] {
				s.dropInstances(name, count, s.counts[name])
			}
			s.counts[name] = count
			changed = true
		}
	}
	if changed {
		s.vis.SetRules(s.engine.ruleSet(s.values))
	}
}

// dropInstances removes every stored value of template instances in [from, to).
func (s *Session) dropInstances(template string, from, to int) {
	for i := from; i < to; i++ {
		prefix := fmt.Sprintf("%s[%d].", template, i)
		for key := range s.values {
			if strings.HasPrefix(key, prefix) {
				delete(s.values, key)
			}
		}
	}
}

// SetAll stores a batch of field values through Set, so count-controlling
// fields still trigger a rule-set rebuild.
func (s *Session) SetAll(values map[string]any) {
	for field, value := range values {
		s.Set(field, value)
	}
}

// Get returns the stored value for a field.
func (s *Session) Get(field string) (any, bool) {
	v, ok := s.values[field]
	return v, ok
}

// Values returns a copy of the flat value map.
func (s *Session) Values() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Visibility returns the current visible and required sets, recomputing only
// when a tracked value changed.
func (s *Session) Visibility() visibility.Result {
	return s.vis.Recompute(s.values)
}

// Submit validates requiredness and declared field rules against the current
// visibility state, then builds the outbound document. A visible required
// field with an empty value yields a *mapping.RequiredFieldError naming the
// field; a failed validation rule yields a *ValidationError. Hidden fields
// are never enforced.
func (s *Session) Submit() (map[string]any, error) {
	result := s.Visibility()
	for _, rule := range s.vis.Rules().Fields {
		if !result.RequiredFields[rule.ID] {
			continue
		}
		if isEmpty(s.values[rule.ID]) {
			return nil, &mapping.RequiredFieldError{Target: rule.ID}
		}
	}

	if vr := s.engine.validator.Validate(s.visibleFields(result), s.values); !vr.Valid {
		return nil, &ValidationError{Issues: vr.Issues}
	}

	return s.engine.BuildOutbound(s.values)
}

func (s *Session) visibleFields(result visibility.Result) []model.FieldSpec {
	var out []model.FieldSpec
	for _, field := range s.engine.Fields(s.values) {
		if result.VisibleFields[field.ID] {
			out = append(out, field)
		}
	}
	return out
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}
