// Package schema loads and validates the static configuration document a
// form engine serves: steps, fields, array templates, condition trees, and
// the inbound/outbound transformation rules. Everything is parsed, compiled,
// and validated exactly once here; a document that loads without error never
// faults at load-detectable points later.
package schema

import (
	"fmt"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formflow/internal/model"
	"github.com/goliatone/go-formflow/pkg/mapping"
)

// Document is one validated configuration: the form schema plus its
// transformation spec. Immutable after Load; safe to share across sessions.
type Document struct {
	Form    model.FormSchema
	Mapping mapping.Spec
}

// ConfigError reports a malformed configuration document. It is fatal to the
// document: the engine refuses to serve a configuration that failed to load.
type ConfigError struct {
	// Subject names the offending element, e.g. `step "loanDetails"` or
	// `inbound target "loanAmount"`.
	Subject string
	Reason  string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := "schema: " + e.Subject
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErr(subject, reason string, err error) *ConfigError {
	return &ConfigError{Subject: subject, Reason: reason, Err: err}
}

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// sanitizeText strips markup from user-facing configuration text (labels,
// titles, descriptions) so a hostile configuration cannot smuggle HTML to
// whatever renders the form.
func sanitizeText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return strings.TrimSpace(textPolicy.Sanitize(trimmed))
}

var knownFieldTypes = map[model.FieldType]struct{}{
	model.FieldTypeText:     {},
	model.FieldTypeNumber:   {},
	model.FieldTypeDate:     {},
	model.FieldTypeCurrency: {},
	model.FieldTypeChoice:   {},
	model.FieldTypeBoolean:  {},
	model.FieldTypePhone:    {},
}

func normalizeFieldType(raw string, subject string) (model.FieldType, error) {
	if strings.TrimSpace(raw) == "" {
		return model.FieldTypeText, nil
	}
	ft := model.FieldType(strings.TrimSpace(raw))
	if _, ok := knownFieldTypes[ft]; !ok {
		return "", configErr(subject, fmt.Sprintf("unknown field type %q", raw), nil)
	}
	return ft, nil
}
