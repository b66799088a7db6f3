package ingest

import (
	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance for ingested data.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
}

// ValidateStruct checks the `validate` tags of v.
func ValidateStruct(v any) error {
	return validate.Struct(v)
}
