package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fleettrack/telematics-be/internal/core/workflow"
)

var ErrValidation = errors.New("validation failed")

// IsValidationError reports whether err came from request validation
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// NewValidator returns a validator with the fleet enum tags registered:
// event_type, operator, action_type, logical_operator, severity.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})

	enums := map[string]func(string) bool{
		"event_type":  func(s string) bool { return workflow.EventType(s).Valid() },
		"operator":    func(s string) bool { return workflow.Operator(s).Valid() },
		"action_type": func(s string) bool { return workflow.ActionType(s).Valid() },
		"severity":    func(s string) bool { return workflow.Severity(s).Valid() },
		"logical_operator": func(s string) bool {
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "and", "or":
				return true
			}
			return false
		},
	}
	for tag, valid := range enums {
		check := valid
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return check(fl.Field().String())
		})
	}
	return v
}

// validationError flattens validator output into one ErrValidation
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := strings.TrimPrefix(fe.Namespace(), "WorkflowRequest.")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s needs at least %s item(s)", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s exceeds %s characters", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s has invalid %s %q", field, fe.Tag(), fmt.Sprint(fe.Value())))
		}
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}
