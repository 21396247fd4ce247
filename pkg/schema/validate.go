package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/goliatone/go-formflow/internal/model"
	"github.com/goliatone/go-formflow/pkg/condition"
)

// instancePattern matches an index-qualified template field reference such as
// "borrowers[1].employmentStatus".
var instancePattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\[(\d+)\]\.(.+)$`)

// validate enforces the cross-reference invariants a served configuration
// relies on: unique identifiers, resolvable countField references, and
// condition variables that name declared fields. Doing this once at load
// keeps every per-keystroke path free of existence checks.
func validate(doc *Document) error {
	stepIDs := make(map[string]struct{}, len(doc.Form.Steps))
	fieldIDs := make(map[string]struct{})

	for _, step := range doc.Form.Steps {
		if _, dup := stepIDs[step.ID]; dup {
			return configErr(fmt.Sprintf("step %q", step.ID), "duplicate step id", nil)
		}
		stepIDs[step.ID] = struct{}{}

		for _, field := range step.Fields {
			if _, dup := fieldIDs[field.ID]; dup {
				return configErr(fmt.Sprintf("field %q", field.ID), "duplicate field id", nil)
			}
			fieldIDs[field.ID] = struct{}{}
		}
	}

	templateFields := make(map[string]map[string]struct{}, len(doc.Form.Templates))
	for name, tmpl := range doc.Form.Templates {
		subject := fmt.Sprintf("arrayTemplate %q", name)

		locals := make(map[string]struct{}, len(tmpl.Fields))
		for _, field := range tmpl.Fields {
			if _, dup := locals[field.ID]; dup {
				return configErr(subject, fmt.Sprintf("duplicate template field %q", field.ID), nil)
			}
			locals[field.ID] = struct{}{}
		}
		templateFields[name] = locals

		if _, ok := fieldIDs[tmpl.CountField]; !ok {
			return configErr(subject, fmt.Sprintf("countField %q is not declared in any step", tmpl.CountField), nil)
		}
		if tmpl.StepID != "" {
			if _, ok := stepIDs[tmpl.StepID]; !ok {
				return configErr(subject, fmt.Sprintf("step %q does not exist", tmpl.StepID), nil)
			}
		}
	}

	legal := func(name string) bool {
		return legalVar(name, fieldIDs, templateFields)
	}

	for _, step := range doc.Form.Steps {
		if err := checkVars(step.VisibleWhen, fmt.Sprintf("step %q conditions", step.ID), legal); err != nil {
			return err
		}
		for _, field := range step.Fields {
			if err := checkFieldVars(field, fmt.Sprintf("field %q", field.ID), legal); err != nil {
				return err
			}
		}
	}
	for name, tmpl := range doc.Form.Templates {
		for _, field := range tmpl.Fields {
			subject := fmt.Sprintf("arrayTemplate %q field %q", name, field.ID)
			if err := checkFieldVars(field, subject, legal); err != nil {
				return err
			}
		}
	}

	return nil
}

func checkFieldVars(field model.FieldSpec, subject string, legal func(string) bool) error {
	if err := checkVars(field.VisibleWhen, subject+" visibleWhen", legal); err != nil {
		return err
	}
	return checkVars(field.RequiredWhen, subject+" requiredWhen", legal)
}

func checkVars(node condition.Node, subject string, legal func(string) bool) error {
	if node == nil {
		return nil
	}
	for _, name := range condition.Vars(node) {
		if !legal(name) {
			return configErr(subject, fmt.Sprintf("references undeclared field %q", name), nil)
		}
	}
	return nil
}

// legalVar accepts step-declared field ids, template-local field ids (they
// are qualified at expansion time), and explicit index-qualified references
// into a declared template.
func legalVar(name string, fieldIDs map[string]struct{}, templates map[string]map[string]struct{}) bool {
	if _, ok := fieldIDs[name]; ok {
		return true
	}
	for _, locals := range templates {
		if _, ok := locals[name]; ok {
			return true
		}
	}
	if m := instancePattern.FindStringSubmatch(name); m != nil {
		locals, ok := templates[m[1]]
		if !ok {
			return false
		}
		_, ok = locals[strings.TrimSpace(m[3])]
		return ok
	}
	return false
}
