package version

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates a requested version record does not exist.
var ErrNotFound = errors.New("version: not found")

// NotFoundError names the missing record. It matches ErrNotFound.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("version %s not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ProtectedRecordError is returned when the initial record of a history is
// targeted by a normal deletion.
type ProtectedRecordError struct {
	ID string
}

func (e *ProtectedRecordError) Error() string {
	return fmt.Sprintf("version %s is the initial record and cannot be deleted", e.ID)
}

// MismatchedEntityError is returned when two records, or a record and an
// entity, belong to different entities.
type MismatchedEntityError struct {
	Expected EntityRef
	Actual   EntityRef
}

func (e *MismatchedEntityError) Error() string {
	return fmt.Sprintf("version belongs to %s, not %s", e.Actual, e.Expected)
}

// InvalidConfigurationError reports a missing or malformed per-type setting.
type InvalidConfigurationError struct {
	EntityType string
	Property   string
	Reason     string
}

func (e *InvalidConfigurationError) Error() string {
	msg := fmt.Sprintf("invalid versioning configuration for %q", e.EntityType)
	if e.Property != "" {
		msg += fmt.Sprintf(": %s", e.Property)
	}
	if e.Reason != "" {
		msg += fmt.Sprintf(" (%s)", e.Reason)
	}
	return msg
}

// PrecedesInitialError is returned when a record would be dated before the
// initial record of its entity.
type PrecedesInitialError struct {
	Entity    EntityRef
	At        time.Time
	InitialAt time.Time
}

func (e *PrecedesInitialError) Error() string {
	return fmt.Sprintf("version of %s at %s precedes the initial record at %s",
		e.Entity, e.At.Format(time.RFC3339Nano), e.InitialAt.Format(time.RFC3339Nano))
}
