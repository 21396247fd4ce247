package expand_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/goliatone/go-formflow/internal/model"
	"github.com/goliatone/go-formflow/pkg/condition"
	"github.com/goliatone/go-formflow/pkg/docpath"
	"github.com/goliatone/go-formflow/pkg/expand"
)

func borrowersTemplate() model.ArrayTemplateSpec {
	return model.ArrayTemplateSpec{
		Name:         "borrowers",
		CountField:   "applicationType",
		CountValues:  map[string]int{"individual": 1, "joint": 2},
		MinCount:     1,
		MaxCount:     2,
		DefaultCount: 1,
		LabelPrefix:  "Co-",
		Fields: []model.FieldSpec{
			{ID: "firstName", Label: "First Name", Type: model.FieldTypeText, Required: true},
			{ID: "employmentStatus", Label: "Employment Status", Type: model.FieldTypeChoice},
		},
	}
}

func TestCountResolution(t *testing.T) {
	t.Parallel()

	tmpl := borrowersTemplate()
	cases := []struct {
		name   string
		values map[string]any
		want   int
	}{
		{"mapped joint", map[string]any{"applicationType": "joint"}, 2},
		{"mapped individual", map[string]any{"applicationType": "individual"}, 1},
		{"missing falls back to default", map[string]any{}, 1},
		{"unmapped non-numeric falls back to default", map[string]any{"applicationType": "consortium"}, 1},
		{"numeric value used directly", map[string]any{"applicationType": 2}, 2},
		{"numeric string coerces", map[string]any{"applicationType": "2"}, 2},
		{"clamped to max", map[string]any{"applicationType": 9}, 2},
		{"clamped to min", map[string]any{"applicationType": 0}, 1},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, expand.Count(tmpl, tc.values))
		})
	}
}

func TestExpandJointApplication(t *testing.T) {
	t.Parallel()

	fields := expand.Expand(borrowersTemplate(), map[string]any{"applicationType": "joint"})
	if len(fields) != 4 {
		t.Fatalf("emitted %d fields, want 4 (2 instances x 2 template fields)", len(fields))
	}

	ids := make([]string, len(fields))
	for i, f := range fields {
		ids[i] = f.ID
	}
	want := []string{
		"borrowers[0].firstName",
		"borrowers[0].employmentStatus",
		"borrowers[1].firstName",
		"borrowers[1].employmentStatus",
	}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatalf("instance ids mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "First Name", fields[0].Label)
	assert.Equal(t, "Co-First Name", fields[2].Label)
	assert.True(t, fields[2].Required, "template flags carry into every instance")
}

func TestExpandRewritesTemplateLocalConditions(t *testing.T) {
	t.Parallel()

	tmpl := borrowersTemplate()
	visible, err := condition.Parse([]byte(`{"and": [
		{"===": [{"var":"employmentStatus"}, "employed"]},
		{"===": [{"var":"applicationType"}, "joint"]}
	]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tmpl.Fields = append(tmpl.Fields, model.FieldSpec{
		ID:          "employerName",
		Label:       "Employer",
		Type:        model.FieldTypeText,
		VisibleWhen: visible,
	})

	fields := expand.Expand(tmpl, map[string]any{"applicationType": "joint"})

	var second model.FieldSpec
	for _, f := range fields {
		if f.ID == "borrowers[1].employerName" {
			second = f
		}
	}
	if second.VisibleWhen == nil {
		t.Fatalf("expanded field lost its visibility condition")
	}

	got := condition.Vars(second.VisibleWhen)
	// template-local var qualified to the instance; schema-level var untouched
	want := []string{"applicationType", "borrowers[1].employmentStatus"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("rewritten vars mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractIndexed(t *testing.T) {
	t.Parallel()

	doc := map[string]any{"loan": map[string]any{"borrowers": []any{
		map[string]any{"firstName": "Ada"},
		map[string]any{"firstName": "Grace"},
	}}}
	path := docpath.MustParse("loan.borrowers")

	value, ok := expand.ExtractIndexed(doc, path, 1, "firstName")
	if !ok || value != "Grace" {
		t.Fatalf("ExtractIndexed = %v (%v), want Grace", value, ok)
	}

	if _, ok := expand.ExtractIndexed(doc, path, 5, "firstName"); ok {
		t.Fatalf("out of range index should be absent")
	}
	if _, ok := expand.ExtractIndexed(doc, path, 0, "ssn"); ok {
		t.Fatalf("missing field should be absent")
	}
}
