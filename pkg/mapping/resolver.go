package mapping

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-formflow/pkg/transform"
)

// Resolver is the inbound mapper: source document + context → flat values.
// It is stateless and safe for concurrent use once constructed.
type Resolver struct {
	spec *Spec
	reg  *transform.Registry
	log  zerolog.Logger
}

// NewResolver wires a compiled spec to a transform registry.
func NewResolver(spec *Spec, reg *transform.Registry, log zerolog.Logger) (*Resolver, error) {
	if spec == nil || !spec.compiled {
		return nil, fmt.Errorf("mapping: resolver requires a compiled spec")
	}
	return &Resolver{spec: spec, reg: reg, log: log}, nil
}

// ResolveField tries the rule's candidates in order and returns the first
// satisfied candidate's (possibly transformed) value. The second return is
// false when no candidate matched and no default exists; that is a normal
// outcome, not an error.
func (r *Resolver) ResolveField(rule Rule, doc, ctx map[string]any) (any, bool) {
	for _, cand := range rule.Candidates {
		if cand.HasDefault {
			return cand.Default, true
		}

		value, present := r.resolveCandidate(cand, doc, ctx)
		if !conditionSatisfied(cand.Condition, value, present) {
			continue
		}
		return r.applyTransform(cand, value), true
	}
	return nil, false
}

// ResolveAll applies every inbound rule in configuration order and returns
// the flat value map. Targets carrying the array marker fan out across the
// elements of the resolved source sequence.
func (r *Resolver) ResolveAll(doc, ctx map[string]any) map[string]any {
	values := make(map[string]any, len(r.spec.Inbound))
	for _, rule := range r.spec.Inbound {
		if strings.Contains(rule.Target, ArrayMarker) {
			r.resolveArrayField(rule, doc, ctx, values)
			continue
		}
		if value, ok := r.ResolveField(rule, doc, ctx); ok {
			values[rule.Target] = value
		}
	}
	return values
}

func (r *Resolver) resolveArrayField(rule Rule, doc, ctx map[string]any, values map[string]any) {
	value, ok := r.ResolveField(rule, doc, ctx)
	if !ok {
		return
	}
	seq, ok := value.([]any)
	if !ok {
		r.log.Debug().
			Str("target", rule.Target).
			Msg("array target resolved to a non-sequence, skipping fan-out")
		return
	}
	for i, elem := range seq {
		if elem == nil {
			continue
		}
		key := strings.Replace(rule.Target, ArrayMarker, fmt.Sprintf("[%d]", i), 1)
		values[key] = elem
	}
}

func (r *Resolver) resolveCandidate(cand SourceCandidate, doc, ctx map[string]any) (any, bool) {
	root := doc
	if cand.From == FromContext {
		root = ctx
	}
	if root == nil || cand.compiled.IsZero() {
		return nil, false
	}
	return cand.compiled.Get(root)
}

func (r *Resolver) applyTransform(cand SourceCandidate, value any) any {
	if cand.Transform == "" {
		return value
	}
	out, err := r.reg.Apply(cand.Transform, value, cand.TransformArgs)
	if err != nil {
		// Compile validated the name, so this is unreachable in a served
		// configuration; keep the value rather than dropping it.
		r.log.Error().Err(err).Str("transform", cand.Transform).Msg("transform failed")
		return value
	}
	return out
}
