// Package testsupport carries shared fixtures for the engine's test suites:
// a realistic loan-application configuration plus sample source documents
// that exercise candidate chains, array templates, and conditional fields.
package testsupport

import (
	_ "embed"
	"testing"

	"github.com/goliatone/go-formflow/pkg/schema"
)

//go:embed testdata/loan_application.yaml
var loanApplicationYAML []byte

// LoanApplicationSchema returns a copy of the loan-application configuration
// document in YAML form.
func LoanApplicationSchema() []byte {
	out := make([]byte, len(loanApplicationYAML))
	copy(out, loanApplicationYAML)
	return out
}

// MustLoadDocument loads the loan-application fixture and fails the test if
// the document does not validate.
func MustLoadDocument(t *testing.T) *schema.Document {
	t.Helper()
	doc, err := schema.Load(loanApplicationYAML)
	if err != nil {
		t.Fatalf("load loan application fixture: %v", err)
	}
	return doc
}

// SampleLoanRecord is a source-system document shaped the way the fixture's
// inbound rules expect: nested maps with a borrower sequence.
func SampleLoanRecord() map[string]any {
	return map[string]any{
		"loan": map[string]any{
			"applicationType":    "joint",
			"amount":             250000,
			"downPaymentPercent": 15,
			"contact": map[string]any{
				"phone": "5551234567",
			},
			"borrowers": []any{
				map[string]any{"firstName": "Ada", "employmentStatus": "employed"},
				map[string]any{"firstName": "Grace", "employmentStatus": "retired"},
			},
		},
	}
}

// SampleContext is the request-scoped context document used by candidates
// declared with `from: context`.
func SampleContext() map[string]any {
	return map[string]any{
		"application": map[string]any{
			"type": "individual",
		},
	}
}
