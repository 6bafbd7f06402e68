package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ha1tch/minired/pkg/models"
)

// MaxFieldLength bounds name, city and hobby (in runes)
const MaxFieldLength = 256

// ValidationError reports a rejected input field. Err carries the backend
// error when a storage constraint violation was rewrapped.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a ValidationError for a field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err is or wraps a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validator checks inputs before they reach a store
type Validator interface {
	ValidatePerson(p models.Person) error
	ValidateName(field, name string) error
}

// Rules are built from MaxFieldLength so the limit lives in one place
var (
	nameRule      = fmt.Sprintf("notblank,max=%d", MaxFieldLength)
	attributeRule = fmt.Sprintf("max=%d", MaxFieldLength)
)

// PersonValidator implements Validator with go-playground/validator
type PersonValidator struct {
	validate *validator.Validate
}

// NewPersonValidator creates a validator with the notblank rule registered
func NewPersonValidator() *PersonValidator {
	v := validator.New()
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return &PersonValidator{validate: v}
}

// ValidatePerson rejects blank names and overlong attributes
func (v *PersonValidator) ValidatePerson(p models.Person) error {
	fields := []struct {
		name, value, rule string
	}{
		{"name", p.Name, nameRule},
		{"city", p.City, attributeRule},
		{"hobby", p.Hobby, attributeRule},
	}
	for _, f := range fields {
		if err := v.check(f.name, f.value, f.rule); err != nil {
			return err
		}
	}
	return nil
}

// ValidateName checks a single name argument
func (v *PersonValidator) ValidateName(field, name string) error {
	return v.check(field, name, nameRule)
}

// check converts the first rule violation to a ValidationError
func (v *PersonValidator) check(field, value, rule string) error {
	err := v.validate.Var(value, rule)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return NewValidationError(field, describeTag(fieldErrs[0]))
	}
	return &ValidationError{Field: field, Message: err.Error(), Err: err}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return "is invalid"
	}
}
