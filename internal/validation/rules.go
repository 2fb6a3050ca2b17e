// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"
	"strings"
	"time"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/rotator/internal/errors"
)

var (
	// slugRegex matches project and environment identifiers.
	slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

	// pathSegmentRegex matches one folder name inside a secret path.
	pathSegmentRegex = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// Slug validates lowercase identifiers such as project and environment ids.
var Slug = validation.NewStringRuleWithError(
	slugRegex.MatchString,
	validation.NewError("validation_slug", "must be lowercase letters, digits, '-' or '_'"),
)

// SecretPath validates an absolute folder path such as "/" or "/ci/deploy".
var SecretPath = validation.NewStringRuleWithError(
	func(s string) bool {
		if s == "/" {
			return true
		}
		if !strings.HasPrefix(s, "/") || strings.HasSuffix(s, "/") {
			return false
		}
		for _, segment := range strings.Split(s[1:], "/") {
			if !pathSegmentRegex.MatchString(segment) {
				return false
			}
		}
		return true
	},
	validation.NewError("validation_secret_path", "must be an absolute path without a trailing slash"),
)

// PositiveDuration validates a Go duration string ("24h", "90m") greater than zero.
// Empty strings pass so that Required can decide.
var PositiveDuration = validation.By(func(value interface{}) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case *string:
		if v == nil {
			return nil
		}
		s = *v
	default:
		return validation.NewError("validation_duration_type", "must be a string")
	}
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return validation.NewError("validation_duration", "must be a positive duration such as 24h")
	}
	return nil
})
