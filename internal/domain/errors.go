package domain

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable identifier callers switch on.
type ErrorCode string

const (
	CodeEntityNotFound         ErrorCode = "ENTITY_NOT_FOUND"
	CodeInvalidTransition      ErrorCode = "INVALID_TRANSITION"
	CodeGuardFailed            ErrorCode = "GUARD_FAILED"
	CodeConcurrentModification ErrorCode = "CONCURRENT_MODIFICATION"
	CodeVerificationFailed     ErrorCode = "VERIFICATION_FAILED"
	CodeDatabaseError          ErrorCode = "DATABASE_ERROR"
	CodeSecondaryWriteFailed   ErrorCode = "SECONDARY_WRITE_FAILED"
)

// Sentinels for errors.Is; matching is by code only.
var (
	ErrEntityNotFound         = &TransitionError{Code: CodeEntityNotFound}
	ErrInvalidTransition      = &TransitionError{Code: CodeInvalidTransition}
	ErrGuardFailed            = &TransitionError{Code: CodeGuardFailed}
	ErrConcurrentModification = &TransitionError{Code: CodeConcurrentModification}
	ErrVerificationFailed     = &TransitionError{Code: CodeVerificationFailed}
	ErrDatabase               = &TransitionError{Code: CodeDatabaseError}
)

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

// TransitionError is the typed failure of a lifecycle operation.
type TransitionError struct {
	Code     ErrorCode
	Kind     EntityKind
	EntityID string
	From     Status
	To       Status
	Reason   string
	Err      error
}

func (e *TransitionError) Error() string {
	msg := string(e.Code)
	if e.Kind != "" || e.EntityID != "" {
		msg += fmt.Sprintf(" %s %s", e.Kind, e.EntityID)
	}
	if e.From != "" || e.To != "" {
		msg += fmt.Sprintf(" %s -> %s", e.From, e.To)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// Is matches any TransitionError with the same code.
func (e *TransitionError) Is(target error) bool {
	var other *TransitionError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// Retryable reports whether the caller may resubmit with fresh state.
func (e *TransitionError) Retryable() bool {
	return e.Code == CodeConcurrentModification || e.Code == CodeVerificationFailed
}

// IsRetryable reports whether err is a retryable TransitionError.
func IsRetryable(err error) bool {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Retryable()
	}
	return false
}

// NewEntityNotFound builds an ENTITY_NOT_FOUND error.
func NewEntityNotFound(kind EntityKind, id string) *TransitionError {
	return &TransitionError{Code: CodeEntityNotFound, Kind: kind, EntityID: id}
}

// NewInvalidTransition builds an INVALID_TRANSITION error.
func NewInvalidTransition(kind EntityKind, id string, from, to Status, reason string) *TransitionError {
	return &TransitionError{Code: CodeInvalidTransition, Kind: kind, EntityID: id, From: from, To: to, Reason: reason}
}

// NewGuardFailed builds a GUARD_FAILED error carrying the guard's reason.
func NewGuardFailed(kind EntityKind, id string, from, to Status, reason string) *TransitionError {
	return &TransitionError{Code: CodeGuardFailed, Kind: kind, EntityID: id, From: from, To: to, Reason: reason}
}

// NewConcurrentModification builds a CONCURRENT_MODIFICATION error.
func NewConcurrentModification(kind EntityKind, id string, from, to Status, attempts int) *TransitionError {
	return &TransitionError{
		Code:     CodeConcurrentModification,
		Kind:     kind,
		EntityID: id,
		From:     from,
		To:       to,
		Reason:   fmt.Sprintf("status changed concurrently; gave up after %d attempts", attempts),
	}
}

// NewVerificationFailed builds a VERIFICATION_FAILED error.
func NewVerificationFailed(id, reason string) *TransitionError {
	return &TransitionError{Code: CodeVerificationFailed, Kind: EntityKindTicket, EntityID: id, To: TicketStatusStaked, Reason: reason}
}

// NewDatabaseError wraps a persistence failure.
func NewDatabaseError(kind EntityKind, id string, err error) *TransitionError {
	return &TransitionError{Code: CodeDatabaseError, Kind: kind, EntityID: id, Err: err}
}

// SecondaryWriteError reports a failed best-effort mirror write. The
// authoritative write has already succeeded when this is produced.
type SecondaryWriteError struct {
	Channel  string
	Kind     EntityKind
	EntityID string
	Err      error
}

func (e *SecondaryWriteError) Error() string {
	return fmt.Sprintf("%s: %s write for %s %s: %v", CodeSecondaryWriteFailed, e.Channel, e.Kind, e.EntityID, e.Err)
}

func (e *SecondaryWriteError) Unwrap() error {
	return e.Err
}

// Code returns SECONDARY_WRITE_FAILED.
func (e *SecondaryWriteError) Code() ErrorCode {
	return CodeSecondaryWriteFailed
}
