package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks an unknown fee type or settlement rule, or a
	// calendar that cannot produce a business day.
	ErrConfiguration = errors.New("configuration error")
	// ErrValidation marks a malformed input entry: bad row id, bad date.
	ErrValidation = errors.New("validation error")
	// ErrDataGap marks a period with neither inputs nor a carry-forward seed.
	ErrDataGap = errors.New("data gap")
	// ErrCalendarExhausted is returned when no business day is found within
	// the settlement roll cap. It is a ConfigurationError.
	ErrCalendarExhausted = fmt.Errorf("%w: no business day within roll cap", ErrConfiguration)
)

type FaultKind string

const (
	FaultConfiguration FaultKind = "CONFIGURATION"
	FaultValidation    FaultKind = "VALIDATION"
	FaultDataGap       FaultKind = "DATA_GAP"
	FaultWarning       FaultKind = "WARNING"
)

type Scope string

const (
	// ScopeRow faults exclude a single row or entry; the batch continues.
	ScopeRow Scope = "ROW"
	// ScopeBatch faults abort the batch; nothing is persisted.
	ScopeBatch Scope = "BATCH"
)

// Fault is one itemized problem found while computing a batch.
type Fault struct {
	Kind    FaultKind `json:"kind"`
	Scope   Scope     `json:"scope"`
	RowKey  string    `json:"row_key,omitempty"`
	Field   string    `json:"field,omitempty"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (f Fault) Error() string {
	if f.RowKey != "" {
		return fmt.Sprintf("%s [%s]: %s", f.Kind, f.RowKey, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Unwrap exposes the sentinel for the fault kind, or the underlying error
// when one was recorded.
func (f Fault) Unwrap() error {
	if f.Err != nil {
		return f.Err
	}
	switch f.Kind {
	case FaultConfiguration:
		return ErrConfiguration
	case FaultValidation:
		return ErrValidation
	case FaultDataGap:
		return ErrDataGap
	}
	return nil
}

// ConfigurationFault builds a row-scoped configuration fault.
func ConfigurationFault(rowKey, field string, err error) Fault {
	return Fault{Kind: FaultConfiguration, Scope: ScopeRow, RowKey: rowKey, Field: field, Message: err.Error(), Err: err}
}

// ValidationFault builds a row-scoped validation fault.
func ValidationFault(rowKey, field, msg string) Fault {
	return Fault{Kind: FaultValidation, Scope: ScopeRow, RowKey: rowKey, Field: field, Message: msg}
}

// WarningFault records an ignored input that does not affect output.
func WarningFault(rowKey, field, msg string) Fault {
	return Fault{Kind: FaultWarning, Scope: ScopeRow, RowKey: rowKey, Field: field, Message: msg}
}

// BatchFault builds a fault that aborts the whole batch.
func BatchFault(kind FaultKind, err error) Fault {
	return Fault{Kind: kind, Scope: ScopeBatch, Message: err.Error(), Err: err}
}

// Report collects the faults of one computation step or one whole sync.
type Report struct {
	Faults []Fault `json:"faults"`
}

func (r *Report) Add(f Fault) {
	r.Faults = append(r.Faults, f)
}

// Merge appends every fault of other.
func (r *Report) Merge(other Report) {
	r.Faults = append(r.Faults, other.Faults...)
}

// Aborted reports whether any batch-level fault was recorded.
func (r Report) Aborted() bool {
	for _, f := range r.Faults {
		if f.Scope == ScopeBatch {
			return true
		}
	}
	return false
}

// Err returns the first batch-level fault, or nil.
func (r Report) Err() error {
	for _, f := range r.Faults {
		if f.Scope == ScopeBatch {
			return f
		}
	}
	return nil
}

// Count returns the number of faults of the given kind.
func (r Report) Count(kind FaultKind) int {
	n := 0
	for _, f := range r.Faults {
		if f.Kind == kind {
			n++
		}
	}
	return n
}
