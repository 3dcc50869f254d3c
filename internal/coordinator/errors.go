package coordinator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Tiliavir/ttr/internal/api"
	"github.com/Tiliavir/ttr/internal/cache"
)

// ErrNoActiveRecord is returned by Stop when no record is running.
var ErrNoActiveRecord = errors.New("no active record")

// PreconditionError means a mutation could not start because the view has
// no snapshot to mutate (nothing loaded yet, or the view was closed).
type PreconditionError struct {
	Key    cache.Key
	Reason string
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Reason
}

// ValidationError is returned before any optimistic change when a row fails
// local validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msg := "invalid record:"
	for _, k := range keys {
		msg += fmt.Sprintf(" %s: %s;", k, e.Fields[k])
	}
	return msg
}

// Reason is one line of a surfaced error, optionally tied to a form field.
type Reason struct {
	Key     string
	Message string
}

// SurfacedError is the error shown to the user after a failed mutation.
type SurfacedError struct {
	Message string
	Reasons []Reason
	Err     error
}

// FieldErrors returns the validation reasons keyed by field.
func (s *SurfacedError) FieldErrors() map[string]string {
	out := map[string]string{}
	if s == nil {
		return out
	}
	for _, r := range s.Reasons {
		if r.Key == generalReasonKey {
			continue
		}
		out[r.Key] = r.Message
	}
	return out
}

const generalReasonKey = "Update failed"

// surface classifies err. Transport errors carry no response and yield
// only the generic message.
func surface(err error) *SurfacedError {
	s := &SurfacedError{
		Message: fmt.Sprintf("Update failed with error: %v", err),
		Err:     err,
	}
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr == nil {
		return s
	}
	if apiErr.Message != "" {
		s.Reasons = append(s.Reasons, Reason{Key: generalReasonKey, Message: apiErr.Message})
	}
	for _, v := range apiErr.Validation {
		s.Reasons = append(s.Reasons, Reason{Key: v.Key, Message: v.Message})
	}
	return s
}
