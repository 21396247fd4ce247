package visibility_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/condition"
	"github.com/goliatone/go-formflow/pkg/visibility"
)

func mustCondition(t *testing.T, doc string) condition.Node {
	t.Helper()
	node, err := condition.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse(%s): %v", doc, err)
	}
	return node
}

func loanRules(t *testing.T) visibility.RuleSet {
	t.Helper()
	return visibility.RuleSet{
		Steps: []visibility.StepRule{
			{ID: "loanDetails"},
			{ID: "coBorrower", When: mustCondition(t, `{"===": [{"var":"applicationType"}, "joint"]}`)},
		},
		Fields: []visibility.FieldRule{
			{ID: "loanAmount", StepID: "loanDetails", AlwaysRequired: true},
			{
				ID:     "jumboJustification",
				StepID: "loanDetails",
				When:   mustCondition(t, `{">": [{"var":"loanAmount"}, 750000]}`),
			},
			{ID: "coFirstName", StepID: "coBorrower"},
			{
				ID:           "downPaymentSource",
				StepID:       "loanDetails",
				RequiredWhen: mustCondition(t, `{"<": [{"var":"downPaymentPct"}, 20]}`),
			},
		},
	}
}

func TestRecomputeVisibleAndRequiredSets(t *testing.T) {
	t.Parallel()

	r := visibility.NewResolver(loanRules(t))
	result := r.Recompute(map[string]any{
		"applicationType": "individual",
		"loanAmount":      500000,
		"downPaymentPct":  10,
	})

	wantSteps := map[string]bool{"loanDetails": true}
	if diff := cmp.Diff(wantSteps, result.VisibleSteps); diff != "" {
		t.Fatalf("VisibleSteps mismatch (-want +got):\n%s", diff)
	}

	wantFields := map[string]bool{"loanAmount": true, "downPaymentSource": true}
	if diff := cmp.Diff(wantFields, result.VisibleFields); diff != "" {
		t.Fatalf("VisibleFields mismatch (-want +got):\n%s", diff)
	}

	wantRequired := map[string]bool{"loanAmount": true, "downPaymentSource": true}
	if diff := cmp.Diff(wantRequired, result.RequiredFields); diff != "" {
		t.Fatalf("RequiredFields mismatch (-want +got):\n%s", diff)
	}
}

func TestSignatureSeparatorInValuesDoesNotCollide(t *testing.T) {
	t.Parallel()

	rules := visibility.RuleSet{
		Steps: []visibility.StepRule{{ID: "s"}},
		Fields: []visibility.FieldRule{
			{ID: "gate", StepID: "s", When: mustCondition(t, `{"===": [{"var":"a"}, "x"]}`)},
			{ID: "target", StepID: "s", When: mustCondition(t, `{"===": [{"var":"b"}, "2;b=<nil>"]}`)},
		},
	}
	r := visibility.NewResolver(rules)

	// Under naive pair serialization these two states produce the same
	// signature even though they differ on b.
	first := r.Recompute(map[string]any{"a": "1;b=2"})
	if first.VisibleFields["target"] {
		t.Fatal("target visible with b absent")
	}

	second := r.Recompute(map[string]any{"a": "1", "b": "2;b=<nil>"})
	if !second.VisibleFields["target"] {
		t.Fatal("stale cached result served for a distinct state")
	}
	if r.Recomputes() != 2 {
		t.Fatalf("Recomputes() = %d, want 2", r.Recomputes())
	}
}

func TestFieldInHiddenStepIsHidden(t *testing.T) {
	t.Parallel()

	r := visibility.NewResolver(loanRules(t))
	result := r.Recompute(map[string]any{"applicationType": "individual"})
	if result.VisibleFields["coFirstName"] {
		t.Fatalf("coFirstName should be hidden with its step")
	}

	result = r.Recompute(map[string]any{"applicationType": "joint"})
	if !result.VisibleSteps["coBorrower"] || !result.VisibleFields["coFirstName"] {
		t.Fatalf("joint application should reveal the co-borrower step and field")
	}
}

func TestMemoizationSkipsUntrackedChanges(t *testing.T) {
	t.Parallel()

	r := visibility.NewResolver(loanRules(t))
	values := map[string]any{"applicationType": "joint", "loanAmount": 800000}

	r.Recompute(values)
	if r.Recomputes() != 1 {
		t.Fatalf("Recomputes = %d, want 1", r.Recomputes())
	}

	// untracked keystroke: no new pass
	values["notes"] = "typed a comment"
	r.Recompute(values)
	if r.Recomputes() != 1 {
		t.Fatalf("untracked change triggered a pass, Recomputes = %d", r.Recomputes())
	}

	// tracked change: exactly one new pass
	values["loanAmount"] = 100000
	result := r.Recompute(values)
	if r.Recomputes() != 2 {
		t.Fatalf("tracked change did not trigger a pass, Recomputes = %d", r.Recomputes())
	}
	if result.VisibleFields["jumboJustification"] {
		t.Fatalf("jumboJustification should hide below the threshold")
	}

	// unchanged call: cached
	r.Recompute(values)
	if r.Recomputes() != 2 {
		t.Fatalf("identical values triggered a pass, Recomputes = %d", r.Recomputes())
	}
}

func TestTrackedVars(t *testing.T) {
	t.Parallel()

	r := visibility.NewResolver(loanRules(t))
	want := []string{"applicationType", "downPaymentPct", "loanAmount"}
	if diff := cmp.Diff(want, r.TrackedVars()); diff != "" {
		t.Fatalf("TrackedVars mismatch (-want +got):\n%s", diff)
	}
}

func TestFailOpenAndFailClosed(t *testing.T) {
	t.Parallel()

	rules := visibility.RuleSet{
		Steps: []visibility.StepRule{{ID: "s"}},
		Fields: []visibility.FieldRule{{
			ID:     "incomeDetails",
			StepID: "s",
			// ordering against a non-numeric value faults
			When: mustCondition(t, `{">": [{"var":"income"}, 1000]}`),
		}},
	}
	values := map[string]any{"income": "prefer not to say"}

	open := visibility.NewResolver(rules)
	if !open.Recompute(values).VisibleFields["incomeDetails"] {
		t.Fatalf("fail-open policy should keep the field visible")
	}

	closed := visibility.NewResolver(rules, visibility.WithFailClosed())
	if closed.Recompute(values).VisibleFields["incomeDetails"] {
		t.Fatalf("fail-closed policy should hide the field")
	}
}

func TestSetRulesInvalidatesCache(t *testing.T) {
	t.Parallel()

	r := visibility.NewResolver(loanRules(t))
	values := map[string]any{"applicationType": "joint"}
	r.Recompute(values)

	rules := loanRules(t)
	rules.Fields = append(rules.Fields, visibility.FieldRule{ID: "coSSN", StepID: "coBorrower"})
	r.SetRules(rules)

	result := r.Recompute(values)
	if !result.VisibleFields["coSSN"] {
		t.Fatalf("new rule set should surface the added field")
	}
}

func TestStringRuleEvaluator(t *testing.T) {
	t.Parallel()

	rules := visibility.RuleSet{
		Steps: []visibility.StepRule{{ID: "s"}},
		Fields: []visibility.FieldRule{{
			ID:       "adminOnly",
			StepID:   "s",
			RuleExpr: `role == "admin"`,
		}},
	}

	eval := visibility.EvaluatorFunc(func(fieldPath, rule string, ctx visibility.Context) (bool, error) {
		role, _ := ctx.Extras["role"].(string)
		return rule == `role == "admin"` && role == "admin", nil
	})

	r := visibility.NewResolver(rules,
		visibility.WithEvaluator(eval),
		visibility.WithExtras(map[string]any{"role": "admin"}),
	)
	if !r.Recompute(map[string]any{}).VisibleFields["adminOnly"] {
		t.Fatalf("string rule should grant visibility")
	}

	denied := visibility.NewResolver(rules,
		visibility.WithEvaluator(eval),
		visibility.WithExtras(map[string]any{"role": "guest"}),
	)
	if denied.Recompute(map[string]any{}).VisibleFields["adminOnly"] {
		t.Fatalf("string rule should deny visibility")
	}
}
