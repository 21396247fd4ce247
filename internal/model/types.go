package model

import "github.com/goliatone/go-formflow/pkg/condition"

// FieldType is the simplified enum for form-friendly field kinds.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeNumber   FieldType = "number"
	FieldTypeDate     FieldType = "date"
	FieldTypeCurrency FieldType = "currency"
	FieldTypeChoice   FieldType = "choice"
	FieldTypeBoolean  FieldType = "boolean"
	FieldTypePhone    FieldType = "phone"
)

const (
	ValidationRuleMin       = "min"
	ValidationRuleMax       = "max"
	ValidationRuleMinLength = "minLength"
	ValidationRuleMaxLength = "maxLength"
	ValidationRulePattern   = "pattern"
)

// ValidationRule represents a single validation constraint applied to a
// field. Numeric bounds and length limits encode their threshold in
// Params["value"]; pattern rules preserve the expression in
// Params["pattern"].
type ValidationRule struct {
	Kind   string            `json:"kind"`
	Params map[string]string `json:"params,omitempty"`
}

// FieldSpec models one input in a form configuration. Specs are immutable
// once loaded and safely shared across sessions; the engine never mutates
// them after validation.
type FieldSpec struct {
	ID          string            `json:"id"`
	Label       string            `json:"label,omitempty"`
	Type        FieldType         `json:"type"`
	Required    bool              `json:"required"`
	Description string            `json:"description,omitempty"`
	Options     []ChoiceOption    `json:"options,omitempty"`
	Validations []ValidationRule  `json:"validations,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`

	// VisibleWhen and RequiredWhen are optional condition trees evaluated
	// against the flat value map. Nil means always visible / requiredness
	// governed by the Required flag alone.
	VisibleWhen  condition.Node `json:"-"`
	RequiredWhen condition.Node `json:"-"`

	// VisibleRule is an optional string rule handed to the configured
	// visibility evaluator, for conditions outside the tree grammar.
	VisibleRule string `json:"visibleRule,omitempty"`
}

// ChoiceOption is one selectable value of a choice field.
type ChoiceOption struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

// StepSpec groups an ordered list of fields behind an optional visibility
// condition.
type StepSpec struct {
	ID     string      `json:"id"`
	Order  int         `json:"order"`
	Title  string      `json:"title,omitempty"`
	Fields []FieldSpec `json:"fields"`

	VisibleWhen condition.Node `json:"-"`
}

// ArrayTemplateSpec declares a reusable field set expanded N times based on a
// controlling form value. The classic use is borrower / co-borrower entity
// duplication without repeating the configuration.
type ArrayTemplateSpec struct {
	Name   string `json:"name"`
	StepID string `json:"step,omitempty"`

	// CountField names the form field whose value controls the instance
	// count. CountValues maps non-numeric controlling values (for example
	// "joint") to counts; a numeric controlling value is used directly.
	CountField   string         `json:"countField"`
	CountValues  map[string]int `json:"countValues,omitempty"`
	MinCount     int            `json:"minCount"`
	MaxCount     int            `json:"maxCount"`
	DefaultCount int            `json:"defaultCount"`

	// LabelPrefix decorates labels of instances past the first, e.g. "Co-".
	LabelPrefix string `json:"labelPrefix,omitempty"`

	Fields []FieldSpec `json:"fieldTemplate"`
}

// FormSchema is the static configuration a form session runs against:
// ordered steps plus array templates. Immutable after load.
type FormSchema struct {
	Metadata  map[string]string            `json:"metadata,omitempty"`
	Steps     []StepSpec                   `json:"steps"`
	Templates map[string]ArrayTemplateSpec `json:"arrayTemplates,omitempty"`
}

// FieldIDs returns every field identifier declared directly on steps, in
// configuration order.
func (s FormSchema) FieldIDs() []string {
	var ids []string
	for _, step := range s.Steps {
		for _, field := range step.Fields {
			ids = append(ids, field.ID)
		}
	}
	return ids
}

// Field looks up a step-declared field by id.
func (s FormSchema) Field(id string) (FieldSpec, bool) {
	for _, step := range s.Steps {
		for _, field := range step.Fields {
			if field.ID == id {
				return field, true
			}
		}
	}
	return FieldSpec{}, false
}
