package model

import internalmodel "github.com/goliatone/go-formflow/internal/model"

// FieldType re-exports the internal FieldType enumeration.
type FieldType = internalmodel.FieldType

const (
	FieldTypeText     = internalmodel.FieldTypeText
	FieldTypeNumber   = internalmodel.FieldTypeNumber
	FieldTypeDate     = internalmodel.FieldTypeDate
	FieldTypeCurrency = internalmodel.FieldTypeCurrency
	FieldTypeChoice   = internalmodel.FieldTypeChoice
	FieldTypeBoolean  = internalmodel.FieldTypeBoolean
	FieldTypePhone    = internalmodel.FieldTypePhone
)

const (
	ValidationRuleMin       = internalmodel.ValidationRuleMin
	ValidationRuleMax       = internalmodel.ValidationRuleMax
	ValidationRuleMinLength = internalmodel.ValidationRuleMinLength
	ValidationRuleMaxLength = internalmodel.ValidationRuleMaxLength
	ValidationRulePattern   = internalmodel.ValidationRulePattern
)

type ValidationRule = internalmodel.ValidationRule
type FieldSpec = internalmodel.FieldSpec
type ChoiceOption = internalmodel.ChoiceOption
type StepSpec = internalmodel.StepSpec
type ArrayTemplateSpec = internalmodel.ArrayTemplateSpec
type FormSchema = internalmodel.FormSchema
