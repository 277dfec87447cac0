// Package validation defines the blocking/warning items attached to quote
// calculations and the typed calculation error with its retry table.
package validation

import (
	"errors"
	"fmt"
)

// Severity classifies a validation item.
type Severity string

const (
	// SeverityBlocking aborts the calculation.
	SeverityBlocking Severity = "BLOCKING"
	// SeverityWarning is informational and never aborts.
	SeverityWarning Severity = "WARNING"
)

// Item is one warning or blocking error.
type Item struct {
	Code     Code              `json:"code"`
	Severity Severity          `json:"severity"`
	Message  string            `json:"message"`
	LegIndex *int              `json:"leg_index,omitempty"`
	Context  map[string]string `json:"context,omitempty"`
}

// NewBlocking builds a blocking item.
func NewBlocking(code Code, format string, args ...any) Item {
	return Item{Code: code, Severity: SeverityBlocking, Message: fmt.Sprintf(format, args...)}
}

// NewWarning builds a warning item.
func NewWarning(code Code, format string, args ...any) Item {
	return Item{Code: code, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)}
}

// IsBlocking reports whether the item aborts the calculation.
func (i Item) IsBlocking() bool { return i.Severity == SeverityBlocking }

// ForLeg returns a copy attributed to the 0-based leg index.
func (i Item) ForLeg(index int) Item {
	idx := index
	i.LegIndex = &idx
	return i
}

// With returns a copy carrying an extra context entry.
func (i Item) With(key, value string) Item {
	ctx := make(map[string]string, len(i.Context)+1)
	for k, v := range i.Context {
		ctx[k] = v
	}
	ctx[key] = value
	i.Context = ctx
	return i
}

// HasBlocking reports whether any item is blocking.
func HasBlocking(items []Item) bool {
	for _, it := range items {
		if it.IsBlocking() {
			return true
		}
	}
	return false
}

// BlockingOnly filters items down to the blocking ones.
func BlockingOnly(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.IsBlocking() {
			out = append(out, it)
		}
	}
	return out
}

// AttachLeg attributes every item without a leg to index.
func AttachLeg(items []Item, index int) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		if it.LegIndex == nil {
			it = it.ForLeg(index)
		}
		out[i] = it
	}
	return out
}

// CalcError is a typed calculation failure. Unlike Items it signals an engine or
// configuration defect rather than a problem with client input.
type CalcError struct {
	Code    Code
	Message string
	Err     error
}

// NewCalcError builds a CalcError.
func NewCalcError(code Code, message string, err error) *CalcError {
	return &CalcError{Code: code, Message: message, Err: err}
}

// Error implements the error interface.
func (e *CalcError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap allows errors.Is/As to inspect the cause.
func (e *CalcError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable reports whether the calculation may be retried with the same context.
func (e *CalcError) Retryable() bool {
	if e == nil {
		return false
	}
	return Retryable(e.Code)
}

// IsRetryable inspects err for a CalcError and reports its retry flag.
func IsRetryable(err error) bool {
	var calcErr *CalcError
	if errors.As(err, &calcErr) {
		return calcErr.Retryable()
	}
	return false
}

// CodeOf returns the CalcError code carried by err, if any.
func CodeOf(err error) (Code, bool) {
	var calcErr *CalcError
	if errors.As(err, &calcErr) {
		return calcErr.Code, true
	}
	return "", false
}
