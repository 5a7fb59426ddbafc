// Package validation checks user supplied values from flags, config and
// query strings.
package validation

import (
	"fmt"
	"net/url"
	"strconv"

	"tgblog/internal/errors"
)

// ValidateNumericRange validates that min <= value <= max.
func ValidateNumericRange(value int, fieldName string, min, max int) error {
	if value < min || value > max {
		return errors.NewValidationError(fieldName, strconv.Itoa(value),
			fmt.Sprintf("%s must be between %d and %d", fieldName, min, max))
	}
	return nil
}

// ValidatePositive validates that value is greater than zero.
func ValidatePositive(value int, fieldName string) error {
	if value <= 0 {
		return errors.NewValidationError(fieldName, strconv.Itoa(value),
			fmt.Sprintf("%s must be positive", fieldName))
	}
	return nil
}

// ValidateNonNegative validates that value is zero or greater.
func ValidateNonNegative(value int, fieldName string) error {
	if value < 0 {
		return errors.NewValidationError(fieldName, strconv.Itoa(value),
			fmt.Sprintf("%s must not be negative", fieldName))
	}
	return nil
}

// ValidatePort validates a TCP port number.
func ValidatePort(port int, fieldName string) error {
	return ValidateNumericRange(port, fieldName, 1, 65535)
}

// ValidateAbsoluteURL validates that raw is an absolute http or https URL.
func ValidateAbsoluteURL(raw, fieldName string) error {
	if raw == "" {
		return errors.NewValidationError(fieldName, raw, fmt.Sprintf("%s is required", fieldName))
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.NewValidationError(fieldName, raw,
			fmt.Sprintf("%s must be an absolute http(s) URL", fieldName))
	}
	return nil
}

// ParseQueryInt parses an optional integer query parameter, returning def
// when raw is empty.
func ParseQueryInt(raw, fieldName string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewValidationError(fieldName, raw,
			fmt.Sprintf("%s must be an integer", fieldName))
	}
	return v, nil
}
