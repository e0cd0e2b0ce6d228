package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// caseIdentifierPattern matches agency case/evidence numbers: alphanumeric
// with dashes, e.g. "2026-CF-0412" or "E-17"
var caseIdentifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{0,63}$`)

// CustomValidator implements echo.Validator using go-playground/validator
type CustomValidator struct {
	v *validator.Validate
}

// New creates a new CustomValidator instance
func New() *CustomValidator {
	v := validator.New()
	_ = v.RegisterValidation("case_identifier", func(fl validator.FieldLevel) bool {
		return caseIdentifierPattern.MatchString(fl.Field().String())
	})
	return &CustomValidator{v: v}
}

// Validate performs struct validation
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.v.Struct(i)
}
