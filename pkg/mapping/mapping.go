// Package mapping converts irregular source documents into flat form values
// and flat form values back into nested target documents. Every target field
// is driven by an ordered candidate list tried in priority order; the first
// candidate whose condition is satisfied wins.
package mapping

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-formflow/pkg/docpath"
	"github.com/goliatone/go-formflow/pkg/transform"
)

// ArrayMarker inside a target or candidate path stands for "every index of
// the underlying sequence". The inbound mapper fans such targets out across
// as many flat keys as the source sequence has elements; the outbound mapper
// gathers them back.
const ArrayMarker = "[]"

// Named conditions a SourceCandidate may carry.
const (
	CondNotEmpty       = "notEmpty"
	CondArrayNotEmpty  = "arrayNotEmpty"
	CondExists         = "exists"
	CondObjectNotEmpty = "objectNotEmpty"
)

// CandidateFrom selects which document a candidate path resolves against.
type CandidateFrom string

const (
	// FromSource resolves against the primary source document. Default.
	FromSource CandidateFrom = "source"
	// FromContext resolves against the auxiliary context document.
	FromContext CandidateFrom = "context"
)

// SourceCandidate is one possible value source for a target field: either a
// path (with optional condition and transform) or a literal default. A
// default terminates the candidate scan unconditionally, so by configuration
// convention it comes last.
type SourceCandidate struct {
	Path          string
	From          CandidateFrom
	Condition     string
	Transform     string
	TransformArgs map[string]any

	Default    any
	HasDefault bool

	// Required may be set on any candidate in a rule; the loader folds it up
	// to the rule level.
	Required bool

	compiled docpath.Path
}

// Rule is the ordered candidate list for one target field.
type Rule struct {
	Target     string
	Required   bool
	Candidates []SourceCandidate

	targetPath docpath.Path
}

// Spec pairs the inbound (source document → form values) and outbound (form
// values → target document) rule sets, each in configuration-declared order.
type Spec struct {
	Inbound  []Rule
	Outbound []Rule

	compiled bool
}

// Compile parses every path expression and validates condition and transform
// names against the registry. It must be called once at configuration load;
// Resolver and Builder refuse an uncompiled spec. The returned logger events
// flag unreachable candidates declared after a literal default.
func (s *Spec) Compile(reg *transform.Registry, log zerolog.Logger) error {
	if reg == nil {
		return fmt.Errorf("mapping: nil transform registry")
	}

	for i := range s.Inbound {
		if err := compileRule(&s.Inbound[i], reg, log, "inbound", true); err != nil {
			return err
		}
	}
	for i := range s.Outbound {
		if err := compileRule(&s.Outbound[i], reg, log, "outbound", false); err != nil {
			return err
		}
	}
	s.compiled = true
	return nil
}

func compileRule(rule *Rule, reg *transform.Registry, log zerolog.Logger, direction string, inbound bool) error {
	if strings.TrimSpace(rule.Target) == "" {
		return fmt.Errorf("mapping: %s rule with empty target", direction)
	}

	// Outbound targets are document paths. An array target is checked with a
	// concrete index substituted, since the marker itself is not path syntax.
	if !inbound {
		probe := rule.Target
		if strings.Contains(probe, ArrayMarker) {
			probe = strings.Replace(probe, ArrayMarker, "[0]", 1)
		}
		compiled, err := docpath.Parse(probe)
		if err != nil {
			return fmt.Errorf("mapping: %s target %q: %w", direction, rule.Target, err)
		}
		if !strings.Contains(rule.Target, ArrayMarker) {
			rule.targetPath = compiled
		}
	}

	defaultSeen := false
	for ci := range rule.Candidates {
		cand := &rule.Candidates[ci]

		if defaultSeen {
			log.Warn().
				Str("direction", direction).
				Str("target", rule.Target).
				Int("candidate", ci).
				Msg("candidate declared after a literal default is unreachable")
		}

		if cand.HasDefault {
			defaultSeen = true
			continue
		}

		if strings.TrimSpace(cand.Path) == "" {
			return fmt.Errorf("mapping: %s target %q candidate %d: empty path", direction, rule.Target, ci)
		}
		if cand.From == "" {
			cand.From = FromSource
		}
		if cand.From != FromSource && cand.From != FromContext {
			return fmt.Errorf("mapping: %s target %q candidate %d: unknown source kind %q", direction, rule.Target, ci, cand.From)
		}
		if !knownCondition(cand.Condition) {
			return fmt.Errorf("mapping: %s target %q candidate %d: unknown condition %q", direction, rule.Target, ci, cand.Condition)
		}
		if cand.Transform != "" && !reg.Has(cand.Transform) {
			return fmt.Errorf("mapping: %s target %q candidate %d: unknown transform %q", direction, rule.Target, ci, cand.Transform)
		}

		// Array-marked candidate paths are substituted per index at build
		// time and compiled there; everything else compiles now so the hot
		// path never parses.
		if !strings.Contains(cand.Path, ArrayMarker) {
			compiled, err := docpath.Parse(cand.Path)
			if err != nil {
				return fmt.Errorf("mapping: %s target %q candidate %d: %w", direction, rule.Target, ci, err)
			}
			cand.compiled = compiled
		}

		if cand.Required {
			rule.Required = true
		}
	}
	return nil
}

func knownCondition(name string) bool {
	switch name {
	case "", CondNotEmpty, CondArrayNotEmpty, CondExists, CondObjectNotEmpty:
		return true
	default:
		return false
	}
}

// conditionSatisfied applies a named condition to a resolved value. present
// reports whether the path resolved at all; absent values satisfy nothing.
func conditionSatisfied(name string, value any, present bool) bool {
	if !present {
		return false
	}
	switch name {
	case "", CondExists:
		return value != nil
	case CondNotEmpty:
		switch v := value.(type) {
		case nil:
			return false
		case string:
			return strings.TrimSpace(v) != ""
		case []any:
			return len(v) > 0
		case map[string]any:
			return len(v) > 0
		default:
			return true
		}
	case CondArrayNotEmpty:
		seq, ok := value.([]any)
		return ok && len(seq) > 0
	case CondObjectNotEmpty:
		obj, ok := value.(map[string]any)
		return ok && len(obj) > 0
	default:
		return false
	}
}

// RequiredFieldError reports an outbound rule flagged required whose full
// candidate chain resolved to absent at submission time. It names the target
// path so callers can surface a field-level diagnostic.
type RequiredFieldError struct {
	Target string
}

func (e *RequiredFieldError) Error() string {
	return fmt.Sprintf("mapping: required field missing for target %q", e.Target)
}
