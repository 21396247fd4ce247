// Package transform holds the named value transformations applied while
// mapping between source documents and flat form values. Transforms are pure:
// they never mutate their input and never perform I/O. Each configuration
// owns its own Registry so caller extensions cannot leak across sessions.
package transform

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Built-in transform names.
const (
	SingleToSequence = "singleToSequence"
	SequenceField    = "sequenceField"
	FormatPhone      = "formatPhone"
	FormatDate       = "formatDate"
	FormatCurrency   = "formatCurrency"
	Trim             = "trim"
)

// Func is a named transformation. Args carries per-use parameters from the
// mapping configuration (for example the projected field of sequenceField).
// Transforms are lenient by contract: input they cannot interpret passes
// through unchanged rather than erroring, so a half-filled source document
// never aborts a resolution pass.
type Func func(value any, args map[string]any) any

// Registry resolves transform names to functions. The zero value is not
// usable; construct with NewRegistry.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry returns a registry seeded with the built-in transforms.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func, 8)}
	r.funcs[SingleToSequence] = singleToSequence
	r.funcs[SequenceField] = sequenceField
	r.funcs[FormatPhone] = formatPhone
	r.funcs[FormatDate] = formatDate
	r.funcs[FormatCurrency] = formatCurrency
	r.funcs[Trim] = trim
	return r
}

// Register adds a caller-supplied transform. Registration happens at engine
// construction time only; overriding a built-in is allowed so callers can
// adjust formatting conventions.
func (r *Registry) Register(name string, fn Func) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("transform: name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("transform: %q: nil func", trimmed)
	}
	r.funcs[trimmed] = fn
	return nil
}

// Has reports whether name is registered. Used by configuration validation so
// an unknown transform fails at load time, not mid-resolution.
func (r *Registry) Has(name string) bool {
	_, ok := r.funcs[name]
	return ok
}

// Names returns the registered transform names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply runs the named transform. An unknown name is a configuration bug; the
// loader validates names up front, so Apply returns an error rather than
// guessing.
func (r *Registry) Apply(name string, value any, args map[string]any) (any, error) {
	fn, ok := r.funcs[name]
	if !ok {
		return nil, fmt.Errorf("transform: unknown transform %q", name)
	}
	return fn(value, args), nil
}

func trim(value any, _ map[string]any) any {
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return value
}

// singleToSequence wraps a scalar or object into a one-element sequence.
// Sequences pass through and nil stays nil so absence is preserved.
func singleToSequence(value any, _ map[string]any) any {
	if value == nil {
		return nil
	}
	if seq, ok := value.([]any); ok {
		return seq
	}
	return []any{value}
}

// sequenceField projects one named field (args["field"]) out of every element
// of a sequence. Elements that are not maps or lack the field project to nil
// so indices stay aligned with the source sequence.
func sequenceField(value any, args map[string]any) any {
	field, _ := args["field"].(string)
	seq, ok := value.([]any)
	if !ok || field == "" {
		return value
	}
	out := make([]any, len(seq))
	for i, elem := range seq {
		if m, ok := elem.(map[string]any); ok {
			out[i] = m[field]
		}
	}
	return out
}

// formatPhone normalises 10-digit North American numbers (optionally with a
// leading country code 1) to "(NNN) NNN-NNNN". Anything else passes through.
func formatPhone(value any, _ map[string]any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) != 10 {
		return value
	}
	return fmt.Sprintf("(%s) %s-%s", d[0:3], d[3:6], d[6:10])
}

// formatDate truncates timestamp strings to the ISO date portion. Input that
// does not parse as a known timestamp layout passes through unchanged.
func formatDate(value any, _ map[string]any) any {
	switch v := value.(type) {
	case time.Time:
		return v.Format("2006-01-02")
	case string:
		trimmed := strings.TrimSpace(v)
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, trimmed); err == nil {
				return ts.Format("2006-01-02")
			}
		}
		return value
	default:
		return value
	}
}

// formatCurrency renders a numeric value with thousands separators and two
// decimal places. Non-numeric input yields the original value unchanged;
// that is the documented contract, not an error.
func formatCurrency(value any, _ map[string]any) any {
	d, ok := toDecimal(value)
	if !ok {
		return value
	}
	return groupThousands(d.StringFixed(2))
}

func toDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int32:
		return decimal.NewFromInt32(v), true
	case int64:
		return decimal.NewFromInt(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	case float64:
		return decimal.NewFromFloat(v), true
	case string:
		trimmed := strings.TrimSpace(v)
		trimmed = strings.TrimPrefix(trimmed, "$")
		trimmed = strings.ReplaceAll(trimmed, ",", "")
		if trimmed == "" {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(trimmed)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	default:
		return decimal.Decimal{}, false
	}
}

func groupThousands(fixed string) string {
	neg := strings.HasPrefix(fixed, "-")
	if neg {
		fixed = fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}
