package domain

import (
	"errors"
	"fmt"
)

// ErrSkipItem may be returned by presave hooks and policy events to drop an
// item silently: nothing is saved and no counter changes.
var ErrSkipItem = errors.New("skip item")

// ValidationError reports a record that failed domain validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// AccessError reports a save rejected by the access policy.
type AccessError struct {
	EntityType string
	Reason     string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("access denied for %s: %s", e.EntityType, e.Reason)
}

// StorageError wraps a persistence failure. Fatal errors halt the batch step.
type StorageError struct {
	Op    string
	Fatal bool
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports an invalid mapping or processor setup.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Message
}

// Configurationf builds a ConfigurationError from a format string.
func Configurationf(format string, args ...any) error {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// IsFatal reports whether err must stop the whole batch step rather than a single item.
func IsFatal(err error) bool {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return true
	}
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return storageErr.Fatal
	}
	return false
}
