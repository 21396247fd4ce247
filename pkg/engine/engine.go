// Package engine ties the pipeline together: one Engine serves a validated
// configuration document, and each user interaction runs inside a Session
// that owns the flat value map, visibility state, and template expansion.
package engine

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-formflow/internal/model"
	"github.com/goliatone/go-formflow/pkg/expand"
	"github.com/goliatone/go-formflow/pkg/mapping"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/transform"
	"github.com/goliatone/go-formflow/pkg/validation"
	"github.com/goliatone/go-formflow/pkg/visibility"
)

// Engine serves one configuration document. It is immutable after New and
// safe for concurrent use; per-user mutable state lives in Session.
type Engine struct {
	doc *schema.Document
	reg *transform.Registry

	resolver  *mapping.Resolver
	builder   *mapping.Builder
	validator *validation.Validator

	log        zerolog.Logger
	failClosed bool
	evaluator  visibility.Evaluator
	extras     map[string]any

	templateNames []string
}

// Option customises an Engine.
type Option func(*options)

type options struct {
	reg        *transform.Registry
	log        zerolog.Logger
	failClosed bool
	evaluator  visibility.Evaluator
	extras     map[string]any
	transforms map[string]transform.Func
}

// WithRegistry supplies the transform registry the document was loaded
// against. Required when the configuration references custom transforms.
func WithRegistry(reg *transform.Registry) Option {
	return func(o *options) { o.reg = reg }
}

// WithTransform registers a custom transform on the engine's registry.
func WithTransform(name string, fn transform.Func) Option {
	return func(o *options) {
		if o.transforms == nil {
			o.transforms = make(map[string]transform.Func)
		}
		o.transforms[name] = fn
	}
}

// WithLogger routes engine and session diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithFailClosed hides steps and fields whose conditions fault instead of
// showing them.
func WithFailClosed() Option {
	return func(o *options) { o.failClosed = true }
}

// WithEvaluator supplies the evaluator for string visibility rules.
func WithEvaluator(eval visibility.Evaluator) Option {
	return func(o *options) { o.evaluator = eval }
}

// WithExtras injects caller context passed through to the string-rule
// evaluator, e.g. user roles.
func WithExtras(extras map[string]any) Option {
	return func(o *options) { o.extras = extras }
}

// New builds an Engine for a loaded document.
func New(doc *schema.Document, opts ...Option) (*Engine, error) {
	if doc == nil {
		return nil, fmt.Errorf("engine: nil document")
	}

	o := options{reg: transform.NewRegistry(), log: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	for name, fn := range o.transforms {
		if err := o.reg.Register(name, fn); err != nil {
			return nil, fmt.Errorf("engine: register transform: %w", err)
		}
	}

	resolver, err := mapping.NewResolver(&doc.Mapping, o.reg, o.log)
	if err != nil {
		return nil, err
	}
	builder, err := mapping.NewBuilder(&doc.Mapping, o.reg, o.log)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(doc.Form.Templates))
	for name := range doc.Form.Templates {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Engine{
		doc:           doc,
		reg:           o.reg,
		resolver:      resolver,
		builder:       builder,
		validator:     validation.New(),
		log:           o.log,
		failClosed:    o.failClosed,
		evaluator:     o.evaluator,
		extras:        o.extras,
		templateNames: names,
	}, nil
}

// Document exposes the configuration the engine serves.
func (e *Engine) Document() *schema.Document { return e.doc }

// ResolveInbound maps a source document plus request context into the flat
// value map used to prefill a session.
func (e *Engine) ResolveInbound(source, ctx map[string]any) map[string]any {
	return e.resolver.ResolveAll(source, ctx)
}

// BuildOutbound converts flat values into the nested submission document.
// A required outbound rule with no resolvable candidate yields a
// *mapping.RequiredFieldError.
func (e *Engine) BuildOutbound(values map[string]any) (map[string]any, error) {
	return e.builder.Build(values)
}

// Fields returns the effective field list for the given values: step fields
// in declaration order, with each step's array-template instances expanded
// and appended after the declared fields.
func (e *Engine) Fields(values map[string]any) []model.FieldSpec {
	var out []model.FieldSpec
	for _, step := range e.doc.Form.Steps {
		out = append(out, step.Fields...)
		out = append(out, e.expandStep(step.ID, values)...)
	}
	return out
}

// ExpandTemplates returns the expanded instances per template for the given
// values.
func (e *Engine) ExpandTemplates(values map[string]any) map[string][]model.FieldSpec {
	if len(e.templateNames) == 0 {
		return nil
	}
	out := make(map[string][]model.FieldSpec, len(e.templateNames))
	for _, name := range e.templateNames {
		out[name] = expand.Expand(e.doc.Form.Templates[name], values)
	}
	return out
}

func (e *Engine) expandStep(stepID string, values map[string]any) []model.FieldSpec {
	var out []model.FieldSpec
	for _, name := range e.templateNames {
		tmpl := e.doc.Form.Templates[name]
		if tmpl.StepID != stepID {
			continue
		}
		out = append(out, expand.Expand(tmpl, values)...)
	}
	return out
}

// templateCounts resolves the instance count of every template.
func (e *Engine) templateCounts(values map[string]any) map[string]int {
	if len(e.templateNames) == 0 {
		return nil
	}
	counts := make(map[string]int, len(e.templateNames))
	for _, name := range e.templateNames {
		counts[name] = expand.Count(e.doc.Form.Templates[name], values)
	}
	return counts
}

// ruleSet flattens the schema plus the current template expansion into the
// visibility rule set.
func (e *Engine) ruleSet(values map[string]any) visibility.RuleSet {
	var rules visibility.RuleSet
	for _, step := range e.doc.Form.Steps {
		rules.Steps = append(rules.Steps, visibility.StepRule{
			ID:   step.ID,
			When: step.VisibleWhen,
		})
		for _, field := range step.Fields {
			rules.Fields = append(rules.Fields, fieldRule(field, step.ID))
		}
		for _, field := range e.expandStep(step.ID, values) {
			rules.Fields = append(rules.Fields, fieldRule(field, step.ID))
		}
	}
	return rules
}

func fieldRule(field model.FieldSpec, stepID string) visibility.FieldRule {
	return visibility.FieldRule{
		ID:             field.ID,
		StepID:         stepID,
		When:           field.VisibleWhen,
		RequiredWhen:   field.RequiredWhen,
		AlwaysRequired: field.Required,
		RuleExpr:       field.VisibleRule,
	}
}
