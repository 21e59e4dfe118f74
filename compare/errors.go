package compare

import (
	"fmt"

	"github.com/cockroachdb/datadiff/compare/keyedcmp"
	"github.com/cockroachdb/datadiff/keyspec"
	"github.com/cockroachdb/errors"
)

// ConfigurationError is returned when a request is invalid or refers to a
// relation which cannot be resolved.
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("invalid %s", e.Field)
	if e.Value != "" {
		msg += fmt.Sprintf(" %q", e.Value)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// InvalidColumnError is returned when a selected column does not exist.
type InvalidColumnError struct {
	Relation string
	Column   string
}

func (e *InvalidColumnError) Error() string {
	return fmt.Sprintf("column %q does not exist in relation %s", e.Column, e.Relation)
}

// SourceAccessError is returned when reading from a relation source fails.
type SourceAccessError struct {
	Relation string
	Op       string
	Err      error
}

func (e *SourceAccessError) Error() string {
	return fmt.Sprintf("error reading %s of %s: %v", e.Op, e.Relation, e.Err)
}

func (e *SourceAccessError) Unwrap() error {
	return e.Err
}

type (
	InvalidKeyError   = keyspec.InvalidKeyError
	DuplicateKeyError = keyedcmp.DuplicateKeyError
	DuplicatePolicy   = keyedcmp.DuplicatePolicy
)

const (
	DuplicatesReject    = keyedcmp.DuplicatesReject
	DuplicatesFirstSeen = keyedcmp.DuplicatesFirstSeen
)

// IsConfigurationError reports whether err is caused by an invalid request
// rather than by a failure while reading data.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	var colErr *InvalidColumnError
	var keyErr *InvalidKeyError
	return errors.As(err, &cfgErr) || errors.As(err, &colErr) || errors.As(err, &keyErr)
}

// ParseDuplicatePolicy parses "reject" or "first-seen".
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	return keyedcmp.ParseDuplicatePolicy(s)
}
