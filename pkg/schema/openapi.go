package schema

import (
	"github.com/goliatone/go-formflow/internal/model"
	"github.com/goliatone/go-formflow/internal/openapi"
)

// ImportFields seeds field specifications from the JSON request body of one
// OpenAPI operation. The result is a starting point for a configuration
// author, not a loaded document: steps, conditions, and transformation rules
// still have to be declared around the imported fields.
func ImportFields(openapiDoc []byte, operationID string) ([]model.FieldSpec, error) {
	return openapi.ImportOperation(openapiDoc, operationID)
}
