package validation

import (
	"errors"
	"fmt"
	"time"
)

// ConfigValidator checks the numeric and cross-field rules of a
// configuration that struct tags cannot express. Every failure is kept,
// so one run reports everything wrong with a file.
//
//	err := validation.NewConfigValidator("SessionConfig").
//		Positive("window_size", c.WindowSize).
//		RangeDuration("heartbeat_interval", c.HeartbeatInterval, time.Second, time.Hour).
//		Validate()
type ConfigValidator struct {
	name   string
	errors []error
}

// NewConfigValidator starts a validation whose errors are prefixed
// with name.
func NewConfigValidator(name string) *ConfigValidator {
	return &ConfigValidator{name: name}
}

func (cv *ConfigValidator) failf(field, format string, args ...any) *ConfigValidator {
	cv.errors = append(cv.errors, fmt.Errorf("%s.%s: %s", cv.name, field, fmt.Sprintf(format, args...)))
	return cv
}

func (cv *ConfigValidator) wrap(field string, err error) *ConfigValidator {
	if err != nil {
		cv.errors = append(cv.errors, fmt.Errorf("%s.%s: %w", cv.name, field, err))
	}
	return cv
}

// MinInt requires value >= min.
func (cv *ConfigValidator) MinInt(field string, value, min int) *ConfigValidator {
	if value < min {
		return cv.failf(field, "value %d is below minimum %d", value, min)
	}
	return cv
}

// Positive requires value > 0.
func (cv *ConfigValidator) Positive(field string, value int) *ConfigValidator {
	if value <= 0 {
		return cv.failf(field, "value %d must be positive", value)
	}
	return cv
}

// NonNegative requires value >= 0.
func (cv *ConfigValidator) NonNegative(field string, value int) *ConfigValidator {
	if value < 0 {
		return cv.failf(field, "value %d must be non-negative", value)
	}
	return cv
}

// MinDuration requires value >= min.
func (cv *ConfigValidator) MinDuration(field string, value, min time.Duration) *ConfigValidator {
	if value < min {
		return cv.failf(field, "duration %v is below minimum %v", value, min)
	}
	return cv
}

// RangeDuration requires min <= value <= max.
func (cv *ConfigValidator) RangeDuration(field string, value, min, max time.Duration) *ConfigValidator {
	if value < min || value > max {
		return cv.failf(field, "duration %v is outside range [%v, %v]", value, min, max)
	}
	return cv
}

// Nested records the result of a child validation, such as Struct,
// under field.
func (cv *ConfigValidator) Nested(field string, err error) *ConfigValidator {
	return cv.wrap(field, err)
}

// Custom runs fn and records its error under field.
func (cv *ConfigValidator) Custom(field string, fn func() error) *ConfigValidator {
	return cv.wrap(field, fn())
}

// When runs validations only if condition holds.
func (cv *ConfigValidator) When(condition bool, validations func(*ConfigValidator)) *ConfigValidator {
	if condition {
		validations(cv)
	}
	return cv
}

// HasErrors reports whether any rule failed.
func (cv *ConfigValidator) HasErrors() bool {
	return len(cv.errors) > 0
}

// Errors returns the individual failures in the order they were found.
func (cv *ConfigValidator) Errors() []error {
	return cv.errors
}

// Validate returns every failure joined, or nil.
func (cv *ConfigValidator) Validate() error {
	return errors.Join(cv.errors...)
}

// DefaultOr returns value unless it is the zero value of T.
func DefaultOr[T comparable](value, fallback T) T {
	var zero T
	if value == zero {
		return fallback
	}
	return value
}

// DefaultOrInt treats zero and negative values as unset.
func DefaultOrInt(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

// DefaultOrDuration treats zero and negative durations as unset.
func DefaultOrDuration(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}

// ClampInt limits value to [lo, hi].
func ClampInt(value, lo, hi int) int {
	return min(max(value, lo), hi)
}
