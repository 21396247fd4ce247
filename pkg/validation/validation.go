// Package validation checks submitted field values against the validation
// rules a configuration declares: numeric bounds, length limits, and
// patterns. Hidden fields are the caller's concern; the validator only sees
// the fields it is handed.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/goliatone/go-formflow/internal/model"
)

// Issue is one failed rule with field location metadata.
type Issue struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Result captures a validation pass. Valid is false when any issue exists.
type Result struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues,omitempty"`
}

// Validator checks values against field specs, caching compiled patterns
// across passes. Safe for concurrent use.
type Validator struct {
	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

// New returns an empty Validator.
func New() *Validator {
	return &Validator{patterns: make(map[string]*regexp.Regexp)}
}

// Validate runs every declared rule of every given field against the value
// map. Absent or empty values pass: requiredness is enforced by the
// visibility resolver, not here.
func (v *Validator) Validate(fields []model.FieldSpec, values map[string]any) Result {
	result := Result{Valid: true}
	for _, field := range fields {
		raw, ok := values[field.ID]
		if !ok || raw == nil {
			continue
		}
		if s, isStr := raw.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		for _, rule := range field.Validations {
			if issue, ok := v.check(field, rule, raw); ok {
				result.Valid = false
				result.Issues = append(result.Issues, issue)
			}
		}
	}
	return result
}

func (v *Validator) check(field model.FieldSpec, rule model.ValidationRule, raw any) (Issue, bool) {
	fail := func(msg string) (Issue, bool) {
		return Issue{Field: field.ID, Rule: rule.Kind, Message: msg}, true
	}

	switch rule.Kind {
	case model.ValidationRuleMin, model.ValidationRuleMax:
		bound, ok := paramFloat(rule)
		if !ok {
			return Issue{}, false
		}
		value, ok := toFloat(raw)
		if !ok {
			return fail("value is not numeric")
		}
		if rule.Kind == model.ValidationRuleMin && value < bound {
			return fail(fmt.Sprintf("must be at least %v", formatBound(bound)))
		}
		if rule.Kind == model.ValidationRuleMax && value > bound {
			return fail(fmt.Sprintf("must be at most %v", formatBound(bound)))
		}

	case model.ValidationRuleMinLength, model.ValidationRuleMaxLength:
		bound, ok := paramFloat(rule)
		if !ok {
			return Issue{}, false
		}
		s, ok := raw.(string)
		if !ok {
			return Issue{}, false
		}
		length := len([]rune(s))
		if rule.Kind == model.ValidationRuleMinLength && float64(length) < bound {
			return fail(fmt.Sprintf("must be at least %v characters", formatBound(bound)))
		}
		if rule.Kind == model.ValidationRuleMaxLength && float64(length) > bound {
			return fail(fmt.Sprintf("must be at most %v characters", formatBound(bound)))
		}

	case model.ValidationRulePattern:
		expr := rule.Params["pattern"]
		if expr == "" {
			return Issue{}, false
		}
		re, err := v.compile(expr)
		if err != nil {
			return fail("invalid pattern in configuration")
		}
		s, ok := raw.(string)
		if !ok {
			s = fmt.Sprint(raw)
		}
		if !re.MatchString(s) {
			return fail("does not match the expected format")
		}
	}
	return Issue{}, false
}

func (v *Validator) compile(expr string) (*regexp.Regexp, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if re, ok := v.patterns[expr]; ok {
		return re, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	v.patterns[expr] = re
	return re, nil
}

func paramFloat(rule model.ValidationRule) (float64, bool) {
	raw, ok := rule.Params["value"]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
