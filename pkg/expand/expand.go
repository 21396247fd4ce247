// Package expand turns an array-template declaration into concrete field
// instances. A single template ("borrowers") plus a controlling count value
// yields borrower and co-borrower field sets without duplicating the
// configuration.
package expand

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formflow/internal/model"
	"github.com/goliatone/go-formflow/pkg/condition"
	"github.com/goliatone/go-formflow/pkg/docpath"
)

// Count resolves the instance count for a template against the current
// values. Resolution order: the template's CountValues mapping for the
// controlling value, then numeric coercion of the controlling value, then
// DefaultCount. The result is always clamped to [MinCount, MaxCount].
func Count(tmpl model.ArrayTemplateSpec, values map[string]any) int {
	count := tmpl.DefaultCount

	if raw, ok := values[tmpl.CountField]; ok && raw != nil {
		if mapped, ok := countFromMapping(tmpl, raw); ok {
			count = mapped
		} else if coerced, ok := coerceCount(raw); ok {
			count = coerced
		}
	}

	if count < tmpl.MinCount {
		count = tmpl.MinCount
	}
	if tmpl.MaxCount > 0 && count > tmpl.MaxCount {
		count = tmpl.MaxCount
	}
	return count
}

func countFromMapping(tmpl model.ArrayTemplateSpec, raw any) (int, bool) {
	if len(tmpl.CountValues) == 0 {
		return 0, false
	}
	key, ok := raw.(string)
	if !ok {
		return 0, false
	}
	count, ok := tmpl.CountValues[key]
	return count, ok
}

func coerceCount(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
		return 0, false
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Expand emits one FieldSpec per template field per instance. Identifiers are
// index-qualified as "<templateName>[<i>].<fieldID>"; labels past the first
// instance carry the template's LabelPrefix. Condition trees referencing
// other template-local fields are rewritten to the same instance's qualified
// names, so each instance gates on its own values.
func Expand(tmpl model.ArrayTemplateSpec, values map[string]any) []model.FieldSpec {
	count := Count(tmpl, values)

	local := make(map[string]struct{}, len(tmpl.Fields))
	for _, field := range tmpl.Fields {
		local[field.ID] = struct{}{}
	}

	out := make([]model.FieldSpec, 0, count*len(tmpl.Fields))
	for i := 0; i < count; i++ {
		qualify := func(name string) string {
			if _, ok := local[name]; ok {
				return instanceID(tmpl.Name, i, name)
			}
			return name
		}
		for _, field := range tmpl.Fields {
			instance := field
			instance.ID = instanceID(tmpl.Name, i, field.ID)
			if i > 0 && tmpl.LabelPrefix != "" && instance.Label != "" {
				instance.Label = tmpl.LabelPrefix + instance.Label
			}
			if field.VisibleWhen != nil {
				instance.VisibleWhen = condition.Rewrite(field.VisibleWhen, qualify)
			}
			if field.RequiredWhen != nil {
				instance.RequiredWhen = condition.Rewrite(field.RequiredWhen, qualify)
			}
			out = append(out, instance)
		}
	}
	return out
}

func instanceID(template string, index int, fieldID string) string {
	return fmt.Sprintf("%s[%d].%s", template, index, fieldID)
}

// ExtractIndexed pulls one named field out of a single element of a source
// sequence, e.g. the second borrower's first name from a loan record. Absent
// elements or fields report false, never an error.
func ExtractIndexed(doc map[string]any, sequencePath docpath.Path, index int, fieldID string) (any, bool) {
	raw, ok := sequencePath.Get(doc)
	if !ok {
		return nil, false
	}
	seq, ok := raw.([]any)
	if !ok || index < 0 || index >= len(seq) {
		return nil, false
	}
	elem, ok := seq[index].(map[string]any)
	if !ok {
		return nil, false
	}
	value, ok := elem[fieldID]
	return value, ok
}
