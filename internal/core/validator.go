package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"climatestats/internal/types"
)

// ValidationError describes a single field failure in a struct validation.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult aggregates the field failures found in one struct.
type ValidationResult struct {
	Errors []ValidationError
}

// IsValid reports whether the result contains no errors.
func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator wraps go-playground/validator with the domain-specific tags
// used by request DTOs: metric_type and stat.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator with the custom tags registered. Field
// names in reported errors use the json tag, matching the wire contract.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// metric_type: the field must name a member of the closed metric enum.
	// Empty strings pass so `required` stays the sole missing-value check.
	_ = v.RegisterValidation("metric_type", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return true
		}
		_, err := types.ParseMetricType(s)
		return err == nil
	})

	// stat: the field must name a supported aggregation.
	_ = v.RegisterValidation("stat", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return true
		}
		_, err := types.ParseStat(s)
		return err == nil
	})

	return &Validator{validate: v, logger: logger}
}

// ValidateStruct validates a request DTO. On failure it returns a single
// AppError whose code is the first field failure's code and whose details
// carry every field failure under "validation_errors".
func (v *Validator) ValidateStruct(s any) error {
	result := v.validateToResult(s)
	if result.IsValid() {
		return nil
	}

	first := result.Errors[0]
	return types.NewAppErrorWithDetails(
		types.ErrorCode(first.Code),
		first.Message,
		nil,
		map[string]any{"validation_errors": result.Errors},
	)
}

// validateToResult runs the underlying validator and converts its failures
// into a ValidationResult.
func (v *Validator) validateToResult(s any) ValidationResult {
	err := v.validate.Struct(s)
	if err == nil {
		return ValidationResult{}
	}

	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		// Non-field failure (e.g. passing a non-struct). Surface it as a
		// single generic error rather than panicking in the request path.
		v.logger.Error("struct validation failed without field errors", "error", err)
		return ValidationResult{Errors: []ValidationError{{
			Field:   "",
			Code:    string(types.ErrCodeInternalUnexpected),
			Message: "request could not be validated",
		}}}
	}

	fieldErrors := make([]ValidationError, 0, len(valErrs))
	for _, fe := range valErrs {
		fieldErrors = append(fieldErrors, ValidationError{
			Field:   fe.Field(),
			Code:    tagToErrorCode(fe.Tag()),
			Message: validationMessage(fe),
		})
	}
	return ValidationResult{Errors: fieldErrors}
}

// tagToErrorCode maps a validation tag to the error code surfaced to clients.
func tagToErrorCode(tag string) string {
	switch tag {
	case "required":
		return string(types.ErrCodeValidationMissingField)
	case "metric_type":
		return string(types.ErrCodeValidationInvalidMetricType)
	case "stat":
		return string(types.ErrCodeValidationInvalidStat)
	case "min", "max", "gt", "gte", "lt", "lte":
		return string(types.ErrCodeValidationOutOfRange)
	default:
		return string(types.ErrCodeValidationInvalidField)
	}
}

// validationMessage renders a human-readable message for one field failure.
func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "metric_type":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), joinMetricTypes())
	case "stat":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), joinStats())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func joinMetricTypes() string {
	parts := make([]string, len(types.AllMetricTypes))
	for i, mt := range types.AllMetricTypes {
		parts[i] = string(mt)
	}
	return strings.Join(parts, ", ")
}

func joinStats() string {
	parts := make([]string, len(types.AllStats))
	for i, s := range types.AllStats {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
