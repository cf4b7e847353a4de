package composer

import (
	"errors"
	"sort"
	"strings"
)

// ErrSubmitting is returned when a submission is started while another one
// is still waiting for the service.
var ErrSubmitting = errors.New("composer: a submission is already in progress")

// Field names used in ValidationError.
const (
	FieldTitle = "title"
	FieldBody  = "body"
	FieldFile  = "file"
)

// ValidationError lists per-field problems found before anything was sent.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "invalid submission: " + strings.Join(parts, "; ")
}

// Field returns the message for name, or "".
func (e *ValidationError) Field(name string) string {
	return e.Fields[name]
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ServiceError wraps a failure reported by, or while reaching, the service.
type ServiceError struct {
	Err error
}

func (e *ServiceError) Error() string { return e.Err.Error() }

func (e *ServiceError) Unwrap() error { return e.Err }
