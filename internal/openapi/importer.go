// Package openapi seeds form field specifications from an OpenAPI 3 document.
// It converts the JSON request body schema of one operation into FieldSpec
// values a configuration author can start from, so a form for an existing API
// does not have to be declared from scratch.
package openapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formflow/internal/model"
)

// ImportOperation extracts the JSON request body schema of the operation with
// the given operationId and converts its top-level properties into field
// specs, sorted by property name for a stable result.
func ImportOperation(data []byte, operationID string) ([]model.FieldSpec, error) {
	if len(data) == 0 {
		return nil, errors.New("openapi: empty document")
	}
	if operationID == "" {
		return nil, errors.New("openapi: empty operation id")
	}

	loader := &openapi3.Loader{Context: context.Background()}
	spec, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("openapi: load document: %w", err)
	}
	if spec.Paths == nil || spec.Paths.Len() == 0 {
		return nil, errors.New("openapi: document has no paths")
	}

	op := findOperation(spec, operationID)
	if op == nil {
		return nil, fmt.Errorf("openapi: operation %q not found", operationID)
	}

	schema := requestSchema(op)
	if schema == nil {
		return nil, fmt.Errorf("openapi: operation %q has no JSON request body schema", operationID)
	}
	if len(schema.Properties) == 0 {
		return nil, fmt.Errorf("openapi: operation %q request schema has no properties", operationID)
	}

	required := make(map[string]struct{}, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = struct{}{}
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]model.FieldSpec, 0, len(names))
	for _, name := range names {
		ref := schema.Properties[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		_, req := required[name]
		fields = append(fields, buildField(name, ref.Value, req))
	}
	return fields, nil
}

func findOperation(spec *openapi3.T, operationID string) *openapi3.Operation {
	for _, item := range spec.Paths.Map() {
		if item == nil {
			continue
		}
		for _, op := range item.Operations() {
			if op != nil && op.OperationID == operationID {
				return op
			}
		}
	}
	return nil
}

func requestSchema(op *openapi3.Operation) *openapi3.Schema {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	mt, ok := op.RequestBody.Value.Content["application/json"]
	if !ok || mt.Schema == nil {
		return nil
	}
	return mt.Schema.Value
}

func buildField(name string, src *openapi3.Schema, required bool) model.FieldSpec {
	field := model.FieldSpec{
		ID:          name,
		Label:       labelFromName(name),
		Type:        fieldType(src),
		Required:    required,
		Description: src.Description,
	}

	for _, raw := range src.Enum {
		value := fmt.Sprint(raw)
		field.Options = append(field.Options, model.ChoiceOption{
			Value: value,
			Label: labelFromName(value),
		})
	}

	field.Validations = validations(src)
	return field
}

func fieldType(src *openapi3.Schema) model.FieldType {
	if len(src.Enum) > 0 {
		return model.FieldTypeChoice
	}
	switch firstType(src.Type) {
	case "integer", "number":
		return model.FieldTypeNumber
	case "boolean":
		return model.FieldTypeBoolean
	case "string":
		switch src.Format {
		case "date", "date-time":
			return model.FieldTypeDate
		case "phone":
			return model.FieldTypePhone
		default:
			return model.FieldTypeText
		}
	default:
		return model.FieldTypeText
	}
}

func firstType(types *openapi3.Types) string {
	if types == nil {
		return ""
	}
	values := types.Slice()
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func validations(src *openapi3.Schema) []model.ValidationRule {
	var rules []model.ValidationRule
	add := func(kind, value string) {
		rules = append(rules, model.ValidationRule{
			Kind:   kind,
			Params: map[string]string{"value": value},
		})
	}

	if src.Min != nil {
		add(model.ValidationRuleMin, strconv.FormatFloat(*src.Min, 'f', -1, 64))
	}
	if src.Max != nil {
		add(model.ValidationRuleMax, strconv.FormatFloat(*src.Max, 'f', -1, 64))
	}
	if src.MinLength != 0 {
		add(model.ValidationRuleMinLength, strconv.FormatUint(src.MinLength, 10))
	}
	if src.MaxLength != nil {
		add(model.ValidationRuleMaxLength, strconv.FormatUint(*src.MaxLength, 10))
	}
	if src.Pattern != "" {
		rules = append(rules, model.ValidationRule{
			Kind:   model.ValidationRulePattern,
			Params: map[string]string{"pattern": src.Pattern},
		})
	}
	return rules
}

// labelFromName turns a camelCase or snake_case property name into a label:
// "firstName" becomes "First Name".
func labelFromName(name string) string {
	var words []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	for _, r := range name {
		switch {
		case r == '_' || r == '-' || r == ' ':
			flush()
		case r >= 'A' && r <= 'Z':
			flush()
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
	}
	flush()

	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
