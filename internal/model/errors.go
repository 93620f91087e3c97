// internal/model/errors.go
package model

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches every ConfigurationError with errors.Is
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound matches every NotFoundError with errors.Is
	ErrNotFound = errors.New("not found")
)

// ConfigurationError reports an invalid profile or unsupported command set
type ConfigurationError struct {
	Field   string
	Message string
}

// NewConfigurationError creates a configuration error for a field
func NewConfigurationError(field, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
	return fmt.Sprintf("configuration error (%s): %s", e.Field, e.Message)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NotFoundError reports an operation addressed to an unregistered printer
type NotFoundError struct {
	PrinterID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("printer not found: %s", e.PrinterID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
