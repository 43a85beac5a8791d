package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaUnavailable is returned when the comparison table's columns cannot be listed.
	ErrSchemaUnavailable = errors.New("schema unavailable")
	// ErrMalformedRow is returned when a loaded row violates the fixed-column contract.
	ErrMalformedRow = errors.New("malformed row")
	// ErrNotEligible is returned when a field without a difference is resolved.
	ErrNotEligible = errors.New("field has no difference to resolve")
	// ErrPersistenceFailed is returned when the save transaction could not commit.
	ErrPersistenceFailed = errors.New("persistence failed")
	// ErrRecordNotFound is returned when a record id is not part of the loaded set.
	ErrRecordNotFound = errors.New("record not found")
	// ErrFieldNotFound is returned when a field name is not part of a record.
	ErrFieldNotFound = errors.New("field not found")
	// ErrUnknownDecision is returned for a decision other than accept or reject.
	ErrUnknownDecision = errors.New("unknown decision")
)

// SchemaError reports why the field list of a table could not be discovered.
type SchemaError struct {
	Table string
	Err   error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema unavailable for table %s: %v", e.Table, e.Err)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchemaUnavailable }

func (e *SchemaError) Unwrap() error { return e.Err }

// MalformedRowError identifies the offending row by record id when it could be
// read, otherwise by its 1-based position in the result set.
type MalformedRowError struct {
	RecordID *int64
	Ordinal  int
	Column   string
	Reason   string
}

func (e *MalformedRowError) Error() string {
	if e.RecordID != nil {
		return fmt.Sprintf("malformed row (record %d): column %s %s", *e.RecordID, e.Column, e.Reason)
	}
	return fmt.Sprintf("malformed row at position %d: column %s %s", e.Ordinal, e.Column, e.Reason)
}

func (e *MalformedRowError) Is(target error) bool { return target == ErrMalformedRow }

// ResolutionError names the record and field an Accept or Reject was aimed at.
type ResolutionError struct {
	RecordID int64
	Field    string
	Err      error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("record %d field %s: %v", e.RecordID, e.Field, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// PersistenceError carries the cause of a rolled back save.
// RecordID is zero when the failure was not tied to one record (begin, scope, commit).
type PersistenceError struct {
	RecordID int64
	Err      error
}

func (e *PersistenceError) Error() string {
	if e.RecordID != 0 {
		return fmt.Sprintf("persistence failed for record %d: %v", e.RecordID, e.Err)
	}
	return fmt.Sprintf("persistence failed: %v", e.Err)
}

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistenceFailed }

func (e *PersistenceError) Unwrap() error { return e.Err }
