package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Error kinds surfaced at the connector boundary
var (
	ErrConfiguration = errors.New("configuration error")
	ErrStructural    = errors.New("structural error")
	ErrIO            = errors.New("connectivity error")
)

// Common error types used across filesystem packages
var (
	ErrPathEmpty      = errors.New("path cannot be empty")
	ErrPathTooLong    = errors.New("path too long (max 4096 characters)")
	ErrPathInvalid    = errors.New("path contains invalid characters")
	ErrSourceNotExist = errors.New("source does not exist")
	ErrDestNotExist   = errors.New("destination does not exist")
)

// ConnectorError carries the kind of a failure together with the operation,
// the file involved and, for structural errors, the offending record number.
type ConnectorError struct {
	Kind   error
	Op     string
	Path   string
	Record int64
	Err    error
}

func (e *ConnectorError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Path != "" {
		fmt.Fprintf(&b, " [%s]", e.Path)
	}
	if e.Record > 0 {
		fmt.Fprintf(&b, " at record %d", e.Record)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *ConnectorError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewConfigurationError builds a configuration error from a message
func NewConfigurationError(op, format string, args ...interface{}) error {
	return &ConnectorError{Kind: ErrConfiguration, Op: op, Err: fmt.Errorf(format, args...)}
}

// NewStructuralError builds a structural error pointing at a record
func NewStructuralError(op, path string, record int64, format string, args ...interface{}) error {
	return &ConnectorError{Kind: ErrStructural, Op: op, Path: path, Record: record, Err: fmt.Errorf(format, args...)}
}

// NewIOError wraps a low-level failure as a connectivity error
func NewIOError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &ConnectorError{Kind: ErrIO, Op: op, Path: path, Err: err}
}

// Normalize turns any error into a ConnectorError. Errors that already carry
// a kind are returned unchanged, everything else becomes an I/O error.
func Normalize(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var ce *ConnectorError
	if errors.As(err, &ce) {
		return err
	}
	return NewIOError(op, path, err)
}

// IsConfiguration reports whether err is a configuration error
func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }

// IsStructural reports whether err is a structural error
func IsStructural(err error) bool { return errors.Is(err, ErrStructural) }

// IsIO reports whether err is a connectivity error
func IsIO(err error) bool { return errors.Is(err, ErrIO) }

// ValidationUtils provides common validation utilities used across packages
type ValidationUtils struct{}

// NewValidationUtils creates a new ValidationUtils instance
func NewValidationUtils() *ValidationUtils {
	return &ValidationUtils{}
}

// ValidateContextCancellation checks if context is cancelled and returns appropriate error
func (vu *ValidationUtils) ValidateContextCancellation(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// ValidateFileExists validates that a regular file exists
func (vu *ValidationUtils) ValidateFileExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSourceNotExist, path)
		}
		return fmt.Errorf("failed to access file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory: %s", path)
	}
	return nil
}

// ValidateDirectoryExists validates that a directory exists
func (vu *ValidationUtils) ValidateDirectoryExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrDestNotExist, path)
		}
		return fmt.Errorf("failed to access directory %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}
	return nil
}
