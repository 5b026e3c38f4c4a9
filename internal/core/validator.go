package core

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"eventline/internal/types"
)

// Validator wraps go-playground/validator so handlers get consistent
// AppError-shaped validation failures.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		validate: validator.New(),
		logger:   logger,
	}
}

// ValidateStruct validates a request payload against its struct tags. On
// failure it returns a *types.AppError whose Details map each failing field to
// a short description of the violated rule.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		// InvalidValidationError: the value was not a struct. Programming
		// error rather than client error.
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed", err)
	}

	details := make(map[string]any, len(valErrs))
	missingOnly := true
	for _, fe := range valErrs {
		if fe.Tag() == "required" {
			details[fe.Field()] = "required field is missing"
		} else {
			missingOnly = false
			desc := "failed validation rule: " + fe.Tag()
			if fe.Param() != "" {
				desc += "=" + fe.Param()
			}
			details[fe.Field()] = desc
		}
	}

	code := types.ErrCodeValidationInvalidPayload
	if missingOnly {
		code = types.ErrCodeValidationMissingField
	}
	return types.NewAppErrorWithDetails(code, "request validation failed", err, details)
}
