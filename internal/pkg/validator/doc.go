// Package validator checks usecase input structs against their `validate`
// tags and reports failures as a field to message map.
package validator

// Validator validates a struct.
type Validator interface {
	Validate(data any) error
}
