package mapping

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-formflow/pkg/docpath"
	"github.com/goliatone/go-formflow/pkg/transform"
)

// maxArrayInstances bounds outbound array gathering; flat keys are produced
// by the inbound mapper and template expansion, both already bounded.
const maxArrayInstances = 100

// Builder is the outbound mapper: flat form values → nested target document.
// Stateless; safe for concurrent use once constructed.
type Builder struct {
	spec *Spec
	reg  *transform.Registry
	log  zerolog.Logger
}

// NewBuilder wires a compiled spec to a transform registry.
func NewBuilder(spec *Spec, reg *transform.Registry, log zerolog.Logger) (*Builder, error) {
	if spec == nil || !spec.compiled {
		return nil, fmt.Errorf("mapping: builder requires a compiled spec")
	}
	return &Builder{spec: spec, reg: reg, log: log}, nil
}

// Build converts the flat value map into a nested document, processing
// outbound rules in configuration order. A rule flagged required whose full
// candidate chain resolves to absent yields a *RequiredFieldError naming the
// target path; the partial document is not returned.
func (b *Builder) Build(values map[string]any) (map[string]any, error) {
	doc := make(map[string]any)
	for _, rule := range b.spec.Outbound {
		if strings.Contains(rule.Target, ArrayMarker) {
			if err := b.buildArrayField(rule, values, doc); err != nil {
				return nil, err
			}
			continue
		}

		value, ok := b.resolveOutbound(rule, values)
		if !ok {
			if rule.Required {
				return nil, &RequiredFieldError{Target: rule.Target}
			}
			continue
		}
		if err := rule.targetPath.Set(doc, value); err != nil {
			return nil, fmt.Errorf("mapping: outbound target %q: %w", rule.Target, err)
		}
	}
	return doc, nil
}

// buildArrayField gathers index-qualified flat keys back into a sequence.
// Sparse flat maps are normal (the inbound mapper skips nil projected
// elements), so the scan covers every index up to the bound rather than
// stopping at the first gap; a missing index stays a nil element in the
// sequence so positions keep their alignment. A required array rule must
// produce at least one instance.
func (b *Builder) buildArrayField(rule Rule, values map[string]any, doc map[string]any) error {
	wrote := 0
	for i := 0; i < maxArrayInstances; i++ {
		indexed := indexRule(rule, i)
		value, ok := b.resolveOutbound(indexed, values)
		if !ok {
			continue
		}
		targetPath, err := docpath.Parse(indexed.Target)
		if err != nil {
			return fmt.Errorf("mapping: outbound target %q: %w", indexed.Target, err)
		}
		if err := targetPath.Set(doc, value); err != nil {
			return fmt.Errorf("mapping: outbound target %q: %w", indexed.Target, err)
		}
		wrote++
	}
	if wrote == 0 && rule.Required {
		return &RequiredFieldError{Target: rule.Target}
	}
	return nil
}

func indexRule(rule Rule, i int) Rule {
	idx := fmt.Sprintf("[%d]", i)
	out := Rule{
		Target:   strings.Replace(rule.Target, ArrayMarker, idx, 1),
		Required: rule.Required,
	}
	out.Candidates = make([]SourceCandidate, len(rule.Candidates))
	for ci, cand := range rule.Candidates {
		cand.Path = strings.Replace(cand.Path, ArrayMarker, idx, 1)
		out.Candidates[ci] = cand
	}
	return out
}

// resolveOutbound mirrors the inbound candidate scan against the flat value
// map. Keys are matched exactly first (flat keys routinely contain dots and
// bracket indices), then as a path into any nested values.
func (b *Builder) resolveOutbound(rule Rule, values map[string]any) (any, bool) {
	for _, cand := range rule.Candidates {
		if cand.HasDefault {
			return cand.Default, true
		}

		value, present := lookupFlat(values, cand)
		if !conditionSatisfied(cand.Condition, value, present) {
			continue
		}
		if cand.Transform == "" {
			return value, true
		}
		out, err := b.reg.Apply(cand.Transform, value, cand.TransformArgs)
		if err != nil {
			b.log.Error().Err(err).Str("transform", cand.Transform).Msg("transform failed")
			return value, true
		}
		return out, true
	}
	return nil, false
}

func lookupFlat(values map[string]any, cand SourceCandidate) (any, bool) {
	if v, ok := values[cand.Path]; ok {
		return v, true
	}
	path := cand.compiled
	if path.IsZero() {
		parsed, err := docpath.Parse(cand.Path)
		if err != nil {
			return nil, false
		}
		path = parsed
	}
	return path.Get(values)
}
