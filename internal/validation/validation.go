// ===============================
// FILE: internal/validation/validation.go
// ===============================

package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs the struct's `validate` tags and flattens the
// failures into one readable error.
func ValidateStruct(s interface{}) error {
	if s == nil {
		return nil
	}

	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		msgs := make([]string, 0, len(ve))
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field %q failed %q", fe.Field(), fe.Tag()))
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	return fmt.Errorf("validation failed: %w", err)
}

// ValidateVar validates a single value against a tag expression.
func ValidateVar(value interface{}, tag string) error {
	return validate.Var(value, tag)
}
