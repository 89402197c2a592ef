package common

import (
	"fmt"
	"slices"

	"aligncv/internal/errors"
)

// ValidateOutputFormat validates format against configured supported formats
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 {
		return nil // No restrictions configured
	}

	if slices.Contains(supportedFormats, format) {
		return nil
	}

	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v",
		format, supportedFormats)
}

// ResolveFormat returns format, or fallback when format is empty.
func ResolveFormat(format, fallback string) string {
	if format == "" {
		return fallback
	}
	return format
}

// ValidateFraction checks that a threshold flag or form value lies in [0,1].
func ValidateFraction(name string, value float64) error {
	if value < 0 || value > 1 {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("%s must be between 0 and 1, got %g", name, value), nil)
	}
	return nil
}
