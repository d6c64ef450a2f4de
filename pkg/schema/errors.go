package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDocument indicates that a parser received no bytes.
	ErrEmptyDocument = errors.New("schema: empty document")
	// ErrNilNoticeType indicates Link received no notice type.
	ErrNilNoticeType = errors.New("schema: notice type is nil")
	// ErrDocumentNotFound indicates a loader found nothing at a location.
	ErrDocumentNotFound = errors.New("schema: document not found")
)

// ConfigurationError reports a schema that references something the loaded
// metadata does not define, or a property that cannot be resolved. It is fatal
// at load time.
type ConfigurationError struct {
	// Subject names what was being resolved ("field", "codelist", "node",
	// "property").
	Subject string
	// ID is the offending identifier.
	ID     string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("schema: %s %q: %s", e.Subject, e.ID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsConfigurationError reports whether err wraps a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}
