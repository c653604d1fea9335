package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/distribution/reference"
	"github.com/go-playground/validator/v10"
)

// ErrValidationFailed is returned when settings validation fails.
var ErrValidationFailed = errors.New("validation failed")

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every invalid field of one validation run.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	messages := make([]string, 0, len(e))
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("%s:\n  %s", ErrValidationFailed, strings.Join(messages, "\n  "))
}

// Is makes ValidationErrors match ErrValidationFailed.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrValidationFailed
}

var settingsValidator *validator.Validate

func init() {
	settingsValidator = validator.New()
	_ = settingsValidator.RegisterValidation("dockerimage", validateDockerImage)
	_ = settingsValidator.RegisterValidation("duration_gte", validateDurationGTE)
}

// Validate checks s against its struct tags. Disabled services are skipped.
func (s *Settings) Validate() error {
	var errs ValidationErrors

	sections := []struct {
		name    string
		enabled bool
		value   any
	}{
		{"docker", true, &s.Docker},
		{"network", true, &s.Network},
		{"postgres", s.Postgres.Enabled, &s.Postgres},
		{"keycloak", s.Keycloak.Enabled, &s.Keycloak},
		{"redis", s.Redis.Enabled, &s.Redis},
		{"log", true, &s.Log},
	}

	for _, section := range sections {
		if !section.enabled {
			continue
		}
		err := settingsValidator.Struct(section.value)
		if err == nil {
			continue
		}
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("%w: %w", ErrValidationFailed, err)
		}
		for _, fe := range fieldErrs {
			errs = append(errs, ValidationError{
				Field:   section.name + "." + fe.Field(),
				Value:   fe.Value(),
				Message: validationMessage(fe),
			})
		}
	}

	if s.Keycloak.Enabled && s.Keycloak.Username != "" && s.Keycloak.ClientID == "" {
		errs = append(errs, ValidationError{
			Field:   "keycloak.ClientID",
			Value:   "",
			Message: "required when a token user is configured",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "required field is empty"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", e.Param())
	case "dockerimage":
		return "must be a valid Docker image reference"
	case "duration_gte":
		return fmt.Sprintf("duration must be >= %s", e.Param())
	default:
		return fmt.Sprintf("validation '%s' failed", e.Tag())
	}
}

// validateDockerImage accepts repository names without tag, as the tag is a
// separate setting.
func validateDockerImage(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // required handles emptiness
	}
	_, err := reference.ParseNormalizedNamed(value)
	return err == nil
}

func validateDurationGTE(fl validator.FieldLevel) bool {
	minDur, err := time.ParseDuration(fl.Param())
	if err != nil {
		return false
	}
	return time.Duration(fl.Field().Int()) >= minDur
}
