package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/openstandia/connector-csv/csvconn/filesystem/common"

	"golang.org/x/text/encoding/htmlindex"
)

// Validation error codes
const (
	CodeRequired     = "required"
	CodeInvalidChar  = "invalid_char"
	CodeInvalidValue = "invalid_value"
	CodeDuplicate    = "duplicate"
	CodeConflict     = "conflict"
)

// QuoteModes lists the accepted quoteMode values
var QuoteModes = []string{"ALL", "ALL_NON_NULL", "MINIMAL", "NON_NUMERIC", "NONE"}

// ValidationError is a single problem found in the configuration.
type ValidationError struct {
	// Code identifies the kind of problem.
	Code string
	// Field is the dotted path of the offending setting.
	Field string
	// Message is the human-readable description.
	Message string
}

func (e ValidationError) String() string {
	return fmt.Sprintf("%s: %s (%s)", e.Field, e.Message, e.Code)
}

// ValidationErrors collects every problem found by Validate.
type ValidationErrors struct {
	Items []ValidationError
}

// Add records a validation error
func (v *ValidationErrors) Add(code, field, format string, args ...interface{}) {
	v.Items = append(v.Items, ValidationError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)})
}

// HasErrors returns true if any error was recorded
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Items) > 0
}

func (v *ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v.Items))
	for _, item := range v.Items {
		msgs = append(msgs, item.String())
	}
	return strings.Join(msgs, "; ")
}

// Err returns nil when there is nothing to report, otherwise a
// configuration error describing all problems.
func (v *ValidationErrors) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return common.NewConfigurationError("validate configuration", "%s", v.Error())
}

// Validate checks every object class and returns the collected problems.
func (c *Config) Validate() *ValidationErrors {
	errs := &ValidationErrors{}
	seen := make(map[string]string)

	offset := 0
	if c.Connector.FilePath != "" || len(c.ObjectClasses) == 0 {
		offset = 1
	}

	for i, oc := range c.All() {
		field := "connector"
		if i >= offset {
			field = fmt.Sprintf("objectClasses[%d]", i-offset)
		}

		if prev, ok := seen[oc.ObjectClass]; ok {
			errs.Add(CodeDuplicate, field+".objectClass", "object class %q already defined by %s", oc.ObjectClass, prev)
		} else {
			seen[oc.ObjectClass] = field
		}
		oc.validate(field, errs)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console":
	default:
		errs.Add(CodeInvalidValue, "logging.format", "unknown log format %q", c.Logging.Format)
	}

	return errs
}

// Validate checks a single object class configuration.
func (oc *ObjectClassConfig) Validate() *ValidationErrors {
	errs := &ValidationErrors{}
	oc.validate("connector", errs)
	return errs
}

func (oc *ObjectClassConfig) validate(field string, errs *ValidationErrors) {
	if strings.TrimSpace(oc.FilePath) == "" {
		errs.Add(CodeRequired, field+".filePath", "csv file path is not defined")
	}
	if strings.TrimSpace(oc.UniqueAttribute) == "" {
		errs.Add(CodeRequired, field+".uniqueAttribute", "unique attribute is not defined")
	}
	if oc.PasswordAttribute != "" {
		if oc.PasswordAttribute == oc.UniqueAttribute {
			errs.Add(CodeConflict, field+".passwordAttribute", "password attribute can't be the unique attribute")
		}
		if oc.PasswordAttribute == oc.NameAttribute {
			errs.Add(CodeConflict, field+".passwordAttribute", "password attribute can't be the name attribute")
		}
	}

	// empty falls back to UTF-8 when the file is opened
	if _, err := htmlindex.Get(oc.Encoding); oc.Encoding != "" && err != nil {
		errs.Add(CodeInvalidValue, field+".encoding", "unsupported encoding %q", oc.Encoding)
	}

	if utf8.RuneCountInString(oc.FieldDelimiter) != 1 {
		errs.Add(CodeInvalidChar, field+".fieldDelimiter", "can't cast %q to a single character", oc.FieldDelimiter)
	}
	for name, value := range map[string]string{
		"escape":        oc.Escape,
		"commentMarker": oc.CommentMarker,
		"quote":         oc.Quote,
	} {
		if value != "" && utf8.RuneCountInString(value) != 1 {
			errs.Add(CodeInvalidChar, field+"."+name, "can't cast %q to a single character", value)
		}
	}
	if oc.Quote != "" && oc.Quote == oc.FieldDelimiter {
		errs.Add(CodeConflict, field+".quote", "quote character and field delimiter are the same")
	}
	if oc.Escape != "" && oc.Escape == oc.FieldDelimiter {
		errs.Add(CodeConflict, field+".escape", "escape character and field delimiter are the same")
	}

	if !isQuoteMode(oc.QuoteMode) {
		errs.Add(CodeInvalidValue, field+".quoteMode", "unknown quote mode %q, expected one of %s", oc.QuoteMode, strings.Join(QuoteModes, ", "))
	}
	if oc.RecordSeparator == "" {
		errs.Add(CodeRequired, field+".recordSeparator", "record separator is not defined")
	}
	if oc.PreserveOldSyncFiles < 0 {
		errs.Add(CodeInvalidValue, field+".preserveOldSyncFiles", "must not be negative")
	}
	if oc.LockStaleAfterMinutes < 0 {
		errs.Add(CodeInvalidValue, field+".lockStaleAfterMinutes", "must not be negative")
	}
	for i, attr := range oc.CompositeUniqueAttributes {
		if attr == oc.UniqueAttribute {
			errs.Add(CodeConflict, fmt.Sprintf("%s.compositeUniqueAttributes[%d]", field, i), "unique attribute can't be part of its own composite")
		}
	}
}

func isQuoteMode(mode string) bool {
	for _, m := range QuoteModes {
		if strings.EqualFold(m, mode) {
			return true
		}
	}
	return false
}
