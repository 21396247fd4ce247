// Package formflow maps irregular source documents into declarative,
// multi-step forms and maps submitted values back out. The root package
// re-exports the common entry points; the pipeline stages live under pkg/.
package formflow

import (
	"github.com/goliatone/go-formflow/pkg/engine"
	"github.com/goliatone/go-formflow/pkg/mapping"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/transform"
	"github.com/goliatone/go-formflow/pkg/visibility"
)

// Document is one validated configuration: form schema plus mapping spec.
type Document = schema.Document

// ConfigError reports a malformed configuration document.
type ConfigError = schema.ConfigError

// RequiredFieldError reports a required field that resolved to absent at
// submission time.
type RequiredFieldError = mapping.RequiredFieldError

// ValidationError reports declared field rules that failed at submission.
type ValidationError = engine.ValidationError

// Engine serves one configuration document across many sessions.
type Engine = engine.Engine

// Session is one user's pass through a form.
type Session = engine.Session

// Load parses, compiles, and validates a YAML or JSON configuration.
func Load(data []byte, opts ...schema.Option) (*Document, error) {
	return schema.Load(data, opts...)
}

// LoadFile loads a configuration document from disk.
func LoadFile(path string, opts ...schema.Option) (*Document, error) {
	return schema.LoadFile(path, opts...)
}

// New builds an engine for a loaded document.
func New(doc *Document, opts ...engine.Option) (*Engine, error) {
	return engine.New(doc, opts...)
}

// Open loads a configuration and builds an engine over it in one call.
func Open(data []byte, opts ...engine.Option) (*Engine, error) {
	doc, err := schema.Load(data)
	if err != nil {
		return nil, err
	}
	return engine.New(doc, opts...)
}

// NewRegistry returns a transform registry seeded with the built-ins.
func NewRegistry() *transform.Registry {
	return transform.NewRegistry()
}

// Re-exported engine options.
var (
	WithLogger     = engine.WithLogger
	WithFailClosed = engine.WithFailClosed
	WithEvaluator  = engine.WithEvaluator
	WithExtras     = engine.WithExtras
	WithTransform  = engine.WithTransform
	WithRegistry   = engine.WithRegistry
)

// Evaluator decides string visibility rules outside the tree grammar.
type Evaluator = visibility.Evaluator

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc = visibility.EvaluatorFunc
