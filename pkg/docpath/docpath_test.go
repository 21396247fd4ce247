package docpath_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/docpath"
)

func TestParseRejectsMalformedExpressions(t *testing.T) {
	t.Parallel()

	cases := []string{
		"",
		"   ",
		".",
		"a.",
		".a",
		"a..b",
		"a[",
		"a[1",
		"a[-1]",
		"a[x]",
		"a['k",
		"a['k']x[", // trailing unterminated bracket
		"a['']",
	}
	for _, expr := range cases {
		if _, err := docpath.Parse(expr); err == nil {
			t.Fatalf("Parse(%q) succeeded, want error", expr)
		}
	}
}

func TestGetNestedKeys(t *testing.T) {
	t.Parallel()

	doc := map[string]any{
		"a": map[string]any{"b": "x"},
	}

	value, ok := docpath.MustParse("a.b").Get(doc)
	if !ok {
		t.Fatalf("expected a.b to resolve")
	}
	if value != "x" {
		t.Fatalf("a.b = %v, want x", value)
	}
}

func TestGetAbsentIntermediateIsNotAnError(t *testing.T) {
	t.Parallel()

	doc := map[string]any{"a": map[string]any{}}

	for _, expr := range []string{"a.b.c", "missing.x", "a.b[0]", "a[0]"} {
		if _, ok := docpath.MustParse(expr).Get(doc); ok {
			t.Fatalf("expected %q to be absent", expr)
		}
	}
}

func TestGetSequenceIndexAndQuotedKey(t *testing.T) {
	t.Parallel()

	doc := map[string]any{
		"borrowers": []any{
			map[string]any{"firstName": "Ada"},
			map[string]any{"firstName": "Grace"},
		},
		"meta": map[string]any{"loan:id": "L-77"},
	}

	value, ok := docpath.MustParse("borrowers[1].firstName").Get(doc)
	if !ok || value != "Grace" {
		t.Fatalf("borrowers[1].firstName = %v (%v), want Grace", value, ok)
	}

	value, ok = docpath.MustParse(`meta['loan:id']`).Get(doc)
	if !ok || value != "L-77" {
		t.Fatalf("meta['loan:id'] = %v (%v), want L-77", value, ok)
	}

	value, ok = docpath.MustParse(`meta["loan:id"]`).Get(doc)
	if !ok || value != "L-77" {
		t.Fatalf(`meta["loan:id"] = %v (%v), want L-77`, value, ok)
	}

	if _, ok := docpath.MustParse("borrowers[2].firstName").Get(doc); ok {
		t.Fatalf("out of range index should be absent")
	}
}

func TestSetCreatesIntermediateMaps(t *testing.T) {
	t.Parallel()

	doc := map[string]any{}
	if err := docpath.MustParse("borrower.address.city").Set(doc, "Lisbon"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	want := map[string]any{
		"borrower": map[string]any{
			"address": map[string]any{"city": "Lisbon"},
		},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestSetCreatesAndGrowsSequences(t *testing.T) {
	t.Parallel()

	doc := map[string]any{}
	if err := docpath.MustParse("borrowers[1].firstName").Set(doc, "Grace"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := docpath.MustParse("borrowers[0].firstName").Set(doc, "Ada"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	want := map[string]any{
		"borrowers": []any{
			map[string]any{"firstName": "Ada"},
			map[string]any{"firstName": "Grace"},
		},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestSetPreservesSiblings(t *testing.T) {
	t.Parallel()

	doc := map[string]any{
		"loan": map[string]any{"amount": 1000},
	}
	if err := docpath.MustParse("loan.term").Set(doc, 30); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	want := map[string]any{
		"loan": map[string]any{"amount": 1000, "term": 30},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestSetRejectsIncompatibleShapes(t *testing.T) {
	t.Parallel()

	doc := map[string]any{"loan": "not-a-map"}
	if err := docpath.MustParse("loan.amount").Set(doc, 1); err == nil {
		t.Fatalf("expected error keying into a scalar")
	}

	doc = map[string]any{"loan": map[string]any{}}
	if err := docpath.MustParse("loan[0]").Set(doc, 1); err == nil {
		t.Fatalf("expected error indexing into a map")
	}
}

func TestRoundTripGetAfterSet(t *testing.T) {
	t.Parallel()

	doc := map[string]any{}
	path := docpath.MustParse(`applicants[0].contact['home-phone']`)
	if err := path.Set(doc, "555-0100"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	value, ok := path.Get(doc)
	if !ok || value != "555-0100" {
		t.Fatalf("Get = %v (%v), want 555-0100", value, ok)
	}
}
