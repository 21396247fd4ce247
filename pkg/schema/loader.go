package schema

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formflow/internal/model"
	"github.com/goliatone/go-formflow/pkg/condition"
	"github.com/goliatone/go-formflow/pkg/mapping"
	"github.com/goliatone/go-formflow/pkg/transform"
)

// Option customises a Load call.
type Option func(*loadOptions)

type loadOptions struct {
	reg *transform.Registry
	log zerolog.Logger
}

// WithRegistry validates transform names against a caller-assembled registry
// instead of the built-ins, so custom transforms pass validation.
func WithRegistry(reg *transform.Registry) Option {
	return func(o *loadOptions) { o.reg = reg }
}

// WithLogger routes load-time diagnostics (e.g. unreachable candidates).
func WithLogger(log zerolog.Logger) Option {
	return func(o *loadOptions) { o.log = log }
}

// Load parses a YAML or JSON configuration document, compiles every path and
// condition tree, and validates the cross-references the engine depends on.
// YAML is a superset of JSON, so both formats go through one parser.
func Load(data []byte, opts ...Option) (*Document, error) {
	options := loadOptions{reg: transform.NewRegistry(), log: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	if strings.TrimSpace(string(data)) == "" {
		return nil, configErr("document", "empty document", nil)
	}

	var file documentFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, configErr("document", "invalid YAML or JSON", err)
	}

	doc := &Document{Form: model.FormSchema{Metadata: file.Metadata}}

	for _, rawStep := range file.Steps {
		step, err := buildStep(rawStep)
		if err != nil {
			return nil, err
		}
		doc.Form.Steps = append(doc.Form.Steps, step)
	}
	sort.SliceStable(doc.Form.Steps, func(i, j int) bool {
		return doc.Form.Steps[i].Order < doc.Form.Steps[j].Order
	})

	if len(file.ArrayTemplates) > 0 {
		doc.Form.Templates = make(map[string]model.ArrayTemplateSpec, len(file.ArrayTemplates))
		for name, rawTmpl := range file.ArrayTemplates {
			tmpl, err := buildTemplate(name, rawTmpl)
			if err != nil {
				return nil, err
			}
			doc.Form.Templates[name] = tmpl
		}
	}

	spec, err := parseTransformation(file.Transformation)
	if err != nil {
		return nil, err
	}
	doc.Mapping = spec

	if err := doc.Mapping.Compile(options.reg, options.log); err != nil {
		return nil, configErr("transformation", "compile", err)
	}
	if err := validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadFile reads and loads a configuration document from disk.
func LoadFile(path string, opts ...Option) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configErr("document", fmt.Sprintf("read %s", path), err)
	}
	return Load(data, opts...)
}

type documentFile struct {
	Metadata       map[string]string       `yaml:"metadata" json:"metadata"`
	Steps          []stepFile              `yaml:"steps" json:"steps"`
	ArrayTemplates map[string]templateFile `yaml:"arrayTemplates" json:"arrayTemplates"`
	Transformation yaml.Node               `yaml:"transformation" json:"transformation"`
}

type stepFile struct {
	ID         string      `yaml:"id"`
	Order      int         `yaml:"order"`
	Title      string      `yaml:"title"`
	Conditions any         `yaml:"conditions"`
	Fields     []fieldFile `yaml:"fields"`
}

type fieldFile struct {
	ID           string                 `yaml:"id"`
	Label        string                 `yaml:"label"`
	Type         string                 `yaml:"type"`
	Required     bool                   `yaml:"required"`
	Description  string                 `yaml:"description"`
	Options      []optionFile           `yaml:"options"`
	Validations  []model.ValidationRule `yaml:"validations"`
	VisibleWhen  any                    `yaml:"visibleWhen"`
	RequiredWhen any                    `yaml:"requiredWhen"`
	VisibleRule  string                 `yaml:"visibleRule"`
}

type optionFile struct {
	Value string `yaml:"value"`
	Label string `yaml:"label"`
}

type templateFile struct {
	Step          string         `yaml:"step"`
	CountField    string         `yaml:"countField"`
	CountValues   map[string]int `yaml:"countValues"`
	MinCount      int            `yaml:"minCount"`
	MaxCount      int            `yaml:"maxCount"`
	DefaultCount  int            `yaml:"defaultCount"`
	LabelPrefix   string         `yaml:"labelPrefix"`
	FieldTemplate []fieldFile    `yaml:"fieldTemplate"`
}

func buildStep(raw stepFile) (model.StepSpec, error) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return model.StepSpec{}, configErr("step", "empty id", nil)
	}
	subject := fmt.Sprintf("step %q", id)

	step := model.StepSpec{
		ID:    id,
		Order: raw.Order,
		Title: sanitizeText(raw.Title),
	}

	if raw.Conditions != nil {
		node, err := condition.FromValue(raw.Conditions)
		if err != nil {
			return model.StepSpec{}, configErr(subject, "conditions", err)
		}
		step.VisibleWhen = node
	}

	for _, rawField := range raw.Fields {
		field, err := buildField(rawField, subject)
		if err != nil {
			return model.StepSpec{}, err
		}
		step.Fields = append(step.Fields, field)
	}
	return step, nil
}

func buildField(raw fieldFile, parent string) (model.FieldSpec, error) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return model.FieldSpec{}, configErr(parent, "field with empty id", nil)
	}
	subject := fmt.Sprintf("%s field %q", parent, id)

	fieldType, err := normalizeFieldType(raw.Type, subject)
	if err != nil {
		return model.FieldSpec{}, err
	}

	field := model.FieldSpec{
		ID:          id,
		Label:       sanitizeText(raw.Label),
		Type:        fieldType,
		Required:    raw.Required,
		Description: sanitizeText(raw.Description),
		Validations: raw.Validations,
		VisibleRule: strings.TrimSpace(raw.VisibleRule),
	}

	for _, opt := range raw.Options {
		field.Options = append(field.Options, model.ChoiceOption{
			Value: strings.TrimSpace(opt.Value),
			Label: sanitizeText(opt.Label),
		})
	}

	if raw.VisibleWhen != nil {
		node, err := condition.FromValue(raw.VisibleWhen)
		if err != nil {
			return model.FieldSpec{}, configErr(subject, "visibleWhen", err)
		}
		field.VisibleWhen = node
	}
	if raw.RequiredWhen != nil {
		node, err := condition.FromValue(raw.RequiredWhen)
		if err != nil {
			return model.FieldSpec{}, configErr(subject, "requiredWhen", err)
		}
		field.RequiredWhen = node
	}
	return field, nil
}

func buildTemplate(name string, raw templateFile) (model.ArrayTemplateSpec, error) {
	subject := fmt.Sprintf("arrayTemplate %q", name)
	// A template expands into its declaring step's field list; without a step
	// it would load cleanly and then never appear anywhere.
	if strings.TrimSpace(raw.Step) == "" {
		return model.ArrayTemplateSpec{}, configErr(subject, "missing step", nil)
	}
	if strings.TrimSpace(raw.CountField) == "" {
		return model.ArrayTemplateSpec{}, configErr(subject, "missing countField", nil)
	}
	if raw.MaxCount > 0 && raw.MinCount > raw.MaxCount {
		return model.ArrayTemplateSpec{}, configErr(subject, "minCount exceeds maxCount", nil)
	}

	tmpl := model.ArrayTemplateSpec{
		Name:         name,
		StepID:       strings.TrimSpace(raw.Step),
		CountField:   strings.TrimSpace(raw.CountField),
		CountValues:  raw.CountValues,
		MinCount:     raw.MinCount,
		MaxCount:     raw.MaxCount,
		DefaultCount: raw.DefaultCount,
		LabelPrefix:  raw.LabelPrefix,
	}
	if tmpl.DefaultCount == 0 {
		tmpl.DefaultCount = tmpl.MinCount
	}

	for _, rawField := range raw.FieldTemplate {
		field, err := buildField(rawField, subject)
		if err != nil {
			return model.ArrayTemplateSpec{}, err
		}
		tmpl.Fields = append(tmpl.Fields, field)
	}
	if len(tmpl.Fields) == 0 {
		return model.ArrayTemplateSpec{}, configErr(subject, "empty fieldTemplate", nil)
	}
	return tmpl, nil
}

// parseTransformation walks the raw YAML node instead of a decoded map so
// rule declaration order survives; resolution and build passes are specified
// to run in configuration order.
func parseTransformation(node yaml.Node) (mapping.Spec, error) {
	var spec mapping.Spec
	if node.Kind == 0 || node.IsZero() {
		return spec, nil
	}
	if node.Kind != yaml.MappingNode {
		return spec, configErr("transformation", "must be a mapping with inbound/outbound keys", nil)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		value := node.Content[i+1]
		switch key {
		case "inbound", "outbound":
			rules, err := parseRules(key, value)
			if err != nil {
				return spec, err
			}
			if key == "inbound" {
				spec.Inbound = rules
			} else {
				spec.Outbound = rules
			}
		default:
			return spec, configErr("transformation", fmt.Sprintf("unknown key %q", key), nil)
		}
	}
	return spec, nil
}

func parseRules(direction string, node *yaml.Node) ([]mapping.Rule, error) {
	if node.Kind != yaml.MappingNode {
		return nil, configErr("transformation "+direction, "must map target fields to candidate lists", nil)
	}

	rules := make([]mapping.Rule, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		target := node.Content[i].Value
		subject := fmt.Sprintf("%s target %q", direction, target)

		var rawCandidates []map[string]any
		if err := node.Content[i+1].Decode(&rawCandidates); err != nil {
			return nil, configErr(subject, "candidates must be a sequence", err)
		}

		rule := mapping.Rule{Target: target}
		for ci, raw := range rawCandidates {
			cand, err := buildCandidate(raw, subject, ci)
			if err != nil {
				return nil, err
			}
			rule.Candidates = append(rule.Candidates, cand)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func buildCandidate(raw map[string]any, subject string, index int) (mapping.SourceCandidate, error) {
	cand := mapping.SourceCandidate{}

	if value, ok := raw["default"]; ok {
		cand.Default = value
		cand.HasDefault = true
	}
	if path, ok := raw["path"].(string); ok {
		cand.Path = path
	}
	if from, ok := raw["from"].(string); ok {
		cand.From = mapping.CandidateFrom(from)
	}
	if cond, ok := raw["condition"].(string); ok {
		cand.Condition = cond
	}
	if tr, ok := raw["transform"].(string); ok {
		cand.Transform = tr
	}
	if args, ok := raw["transformArgs"].(map[string]any); ok {
		cand.TransformArgs = args
	}
	if required, ok := raw["required"].(bool); ok {
		cand.Required = required
	}

	if cand.HasDefault && cand.Path != "" {
		return cand, configErr(subject, fmt.Sprintf("candidate %d mixes path and default", index), nil)
	}
	if !cand.HasDefault && cand.Path == "" {
		return cand, configErr(subject, fmt.Sprintf("candidate %d has neither path nor default", index), nil)
	}
	return cand, nil
}
