package condition_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/condition"
)

func mustParse(t *testing.T, doc string) condition.Node {
	t.Helper()
	node, err := condition.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse(%s): %v", doc, err)
	}
	return node
}

func evaluate(t *testing.T, node condition.Node, values map[string]any) bool {
	t.Helper()
	ok, err := condition.Evaluate(node, values)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	return ok
}

func TestParseRejectsMalformedTrees(t *testing.T) {
	t.Parallel()

	cases := []string{
		`{"var": ""}`,
		`{"var": 7}`,
		`{"between": [1, 2]}`,
		`{"===": [1]}`,
		`{"===": "not-a-pair"}`,
		`{"and": {"var": "x"}}`,
		`{"in": [1]}`,
		`{"in": [{"var": "x"}, "not-a-set"]}`,
		`{"var": "a", "and": []}`,
	}
	for _, doc := range cases {
		if _, err := condition.Parse([]byte(doc)); err == nil {
			t.Fatalf("Parse(%s) succeeded, want error", doc)
		}
	}
}

func TestParseDepthGuard(t *testing.T) {
	t.Parallel()

	doc := `{"var":"x"}`
	for i := 0; i < condition.MaxDepth+2; i++ {
		doc = `{"and":[` + doc + `]}`
	}
	if _, err := condition.Parse([]byte(doc)); err == nil {
		t.Fatalf("expected depth guard error")
	}
}

func TestLoanAmountGate(t *testing.T) {
	t.Parallel()

	node := mustParse(t, `{"and": [{"!==": [{"var":"loanAmount"}, ""]}, {">": [{"var":"loanAmount"}, 100000]}]}`)

	if !evaluate(t, node, map[string]any{"loanAmount": 150000}) {
		t.Fatalf("150000 should pass the gate")
	}
	if evaluate(t, node, map[string]any{"loanAmount": 50000}) {
		t.Fatalf("50000 should not pass the gate")
	}
	if evaluate(t, node, map[string]any{}) {
		t.Fatalf("absent loanAmount should not pass the gate")
	}
}

func TestEqualityAgainstNil(t *testing.T) {
	t.Parallel()

	isUnset := mustParse(t, `{"===": [{"var":"coSigner"}, null]}`)
	if !evaluate(t, isUnset, map[string]any{}) {
		t.Fatalf("missing var should equal null")
	}
	if evaluate(t, isUnset, map[string]any{"coSigner": "yes"}) {
		t.Fatalf("set var should not equal null")
	}

	ordering := mustParse(t, `{">": [{"var":"income"}, 1000]}`)
	if evaluate(t, ordering, map[string]any{}) {
		t.Fatalf("ordering against missing var must be false")
	}
}

func TestOrderingFaultOnNonNumericOperand(t *testing.T) {
	t.Parallel()

	node := mustParse(t, `{">": [{"var":"income"}, 1000]}`)
	_, err := condition.Evaluate(node, map[string]any{"income": "undisclosed"})
	if err == nil {
		t.Fatalf("expected evaluation fault")
	}
	if !strings.Contains(err.Error(), "non-numeric") {
		t.Fatalf("unexpected fault message: %v", err)
	}
}

func TestNestedOperandFaultPropagates(t *testing.T) {
	t.Parallel()

	// The left operand is itself an ordering comparison that faults on
	// non-numeric values; the fault must surface from the outer tree so the
	// caller's fail policy can apply.
	node := mustParse(t, `{"===": [{">": [{"var": "status"}, 10]}, true]}`)
	_, err := condition.Evaluate(node, map[string]any{"status": "active"})
	if err == nil {
		t.Fatalf("Evaluate() error = nil, want nested ordering fault")
	}
	if !strings.Contains(err.Error(), "non-numeric operand") {
		t.Fatalf("Evaluate() error = %v, want non-numeric operand fault", err)
	}

	inNode := mustParse(t, `{"in": [{">": [{"var": "status"}, 10]}, [true]]}`)
	if _, err := condition.Evaluate(inNode, map[string]any{"status": "active"}); err == nil {
		t.Fatalf("Evaluate() in-set error = nil, want nested ordering fault")
	}
}

func TestInMembership(t *testing.T) {
	t.Parallel()

	node := mustParse(t, `{"in": [{"var":"propertyType"}, ["condo", "townhouse"]]}`)
	if !evaluate(t, node, map[string]any{"propertyType": "condo"}) {
		t.Fatalf("condo should be a member")
	}
	if evaluate(t, node, map[string]any{"propertyType": "houseboat"}) {
		t.Fatalf("houseboat should not be a member")
	}
	if evaluate(t, node, map[string]any{}) {
		t.Fatalf("missing var should not be a member")
	}
}

func TestShortCircuitSkipsFaultingTerms(t *testing.T) {
	t.Parallel()

	// The first Or term is already true, so the faulting ordering term on the
	// right must never run.
	node := mustParse(t, `{"or": [{"===": [{"var":"type"}, "cash"]}, {">": [{"var":"income"}, 10]}]}`)
	ok, err := condition.Evaluate(node, map[string]any{"type": "cash", "income": "n/a"})
	if err != nil {
		t.Fatalf("short-circuit should have skipped the fault: %v", err)
	}
	if !ok {
		t.Fatalf("expected true")
	}
}

func TestNumericStringCoercion(t *testing.T) {
	t.Parallel()

	node := mustParse(t, `{">=": [{"var":"loanAmount"}, "100000"]}`)
	if !evaluate(t, node, map[string]any{"loanAmount": "250000"}) {
		t.Fatalf("numeric strings should compare numerically")
	}

	eq := mustParse(t, `{"===": [{"var":"count"}, 2]}`)
	if !evaluate(t, eq, map[string]any{"count": "2"}) {
		t.Fatalf("\"2\" should equal 2")
	}
}

func TestIdempotentEvaluation(t *testing.T) {
	t.Parallel()

	node := mustParse(t, `{"and": [{"var":"a"}, {"or": [{"var":"b"}, {"var":"c"}]}]}`)
	values := map[string]any{"a": true, "b": false, "c": "yes"}

	first := evaluate(t, node, values)
	second := evaluate(t, node, values)
	if first != second {
		t.Fatalf("evaluation is not idempotent: %v then %v", first, second)
	}
}

func TestVarsCollectsEveryReference(t *testing.T) {
	t.Parallel()

	node := mustParse(t, `{"or": [
		{"and": [{"!==": [{"var":"loanAmount"}, ""]}, {">": [{"var":"loanAmount"}, 100000]}]},
		{"in": [{"var":"propertyType"}, ["condo"]]},
		{"===": [{"var":"applicationType"}, "joint"]}
	]}`)

	got := condition.Vars(node)
	want := []string{"applicationType", "loanAmount", "propertyType"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Vars mismatch (-want +got):\n%s", diff)
	}
}

func TestDependencySoundness(t *testing.T) {
	t.Parallel()

	node := mustParse(t, `{"and": [{"var":"a"}, {">": [{"var":"b"}, 10]}]}`)
	tracked := condition.Vars(node)

	values := map[string]any{"a": true, "b": 20, "unrelated": 1}
	before := evaluate(t, node, values)

	// Mutating a variable outside the tracked set must never change the
	// result.
	values["unrelated"] = "something else entirely"
	after := evaluate(t, node, values)
	if before != after {
		t.Fatalf("untracked variable changed the result")
	}
	for _, name := range tracked {
		if name == "unrelated" {
			t.Fatalf("unrelated leaked into the tracked set")
		}
	}
}

func TestRewriteQualifiesVarNames(t *testing.T) {
	t.Parallel()

	node := mustParse(t, `{"and": [{"===": [{"var":"employmentStatus"}, "employed"]}, {"var":"hasIncome"}]}`)
	rewritten := condition.Rewrite(node, func(name string) string {
		return "borrowers[1]." + name
	})

	got := condition.Vars(rewritten)
	want := []string{"borrowers[1].employmentStatus", "borrowers[1].hasIncome"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("rewritten vars mismatch (-want +got):\n%s", diff)
	}

	// the original tree is untouched
	if diff := cmp.Diff([]string{"employmentStatus", "hasIncome"}, condition.Vars(node)); diff != "" {
		t.Fatalf("original tree mutated (-want +got):\n%s", diff)
	}
}
