package shared

import "github.com/go-playground/validator/v10"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags on request DTOs.
func Validate(v any) error {
	return validate.Struct(v)
}
