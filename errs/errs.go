// Package errs defines the error taxonomy and process exit codes shared by all mutation workflows.
//
// Every failure carries the operation, the target it acted on and the underlying cause, so a
// human or automation has enough context to decide the next action without log archaeology.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for propagation policy and exit-code mapping.
type Kind int

const (
	// Generic covers failures outside the specialized kinds below.
	Generic Kind = iota
	// Validation marks bad identifiers, malformed flags and failed pre/post-condition checks.
	// Must be raised before any destructive mutation.
	Validation
	// IO marks copy, extract and write failures.
	IO
	// Integrity marks archives that fail tar listing or are otherwise unreadable.
	// Must be raised before any destructive mutation.
	Integrity
	// Conflict marks a non-fast-forward update or a dirty working tree without override.
	Conflict
	// BackupNotFound marks an identifier that resolves to no known backup.
	BackupNotFound
	// UserCancelled marks an interactive decline. It is an exit signal, not a failure.
	UserCancelled
	// HealthCheck marks a failed post-operation validation gate. Never blocks completion.
	HealthCheck
)

// Process exit codes for the CLI surface.
const (
	ExitOK             = 0
	ExitGeneric        = 1
	ExitBackupNotFound = 2
	ExitIntegrity      = 3
	ExitExecution      = 4
	ExitHealthCheck    = 5
	ExitUserCancelled  = 6
)

// Error is the taxonomy-aware error type used across the backup, update and rollback workflows.
type Error struct {
	Kind   Kind
	Op     string
	Target string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Target != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Target, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Err)
	case e.Target != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Target)
	default:
		return e.Op
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs a taxonomy error of the given kind.
func New(kind Kind, op, target string, err error) *Error {
	return &Error{Kind: kind, Op: op, Target: target, Err: err}
}

// Kind-specific constructors.

func NewValidation(op, target string, err error) *Error {
	return New(Validation, op, target, err)
}

func NewIO(op, target string, err error) *Error {
	return New(IO, op, target, err)
}

func NewIntegrity(op, target string, err error) *Error {
	return New(Integrity, op, target, err)
}

func NewConflict(op, target string, err error) *Error {
	return New(Conflict, op, target, err)
}

func NewBackupNotFound(op, target string, err error) *Error {
	return New(BackupNotFound, op, target, err)
}

func NewUserCancelled(op string) *Error {
	return New(UserCancelled, op, "", nil)
}

func NewHealthCheck(op string, err error) *Error {
	return New(HealthCheck, op, "", err)
}

// KindOf extracts the taxonomy kind from an error chain; unclassified errors are Generic.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Generic
}

// Is reports whether the error chain carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ExitCode maps an error chain to the process exit code contract.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	switch KindOf(err) {
	case BackupNotFound:
		return ExitBackupNotFound
	case Integrity:
		return ExitIntegrity
	case IO, Conflict:
		return ExitExecution
	case HealthCheck:
		return ExitHealthCheck
	case UserCancelled:
		return ExitUserCancelled
	default:
		return ExitGeneric
	}
}
