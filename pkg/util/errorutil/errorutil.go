package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/eventgate/ticket-lifecycle/internal/domain"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

var transitionStatus = map[domain.ErrorCode]int{
	domain.CodeEntityNotFound:         http.StatusNotFound,
	domain.CodeInvalidTransition:      http.StatusConflict,
	domain.CodeGuardFailed:            http.StatusUnprocessableEntity,
	domain.CodeConcurrentModification: http.StatusConflict,
	domain.CodeVerificationFailed:     http.StatusUnprocessableEntity,
	domain.CodeDatabaseError:          http.StatusInternalServerError,
}

var transitionMessage = map[domain.ErrorCode]string{
	domain.CodeEntityNotFound:         "entity not found",
	domain.CodeInvalidTransition:      "transition not allowed",
	domain.CodeGuardFailed:            "transition precondition failed",
	domain.CodeConcurrentModification: "entity was modified concurrently; retry with fresh state",
	domain.CodeVerificationFailed:     "settlement could not be verified",
	domain.CodeDatabaseError:          "internal server error",
}

// ToDomainError converts lifecycle and generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var te *domain.TransitionError
	if errors.As(err, &te) {
		return fromTransitionError(te)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

func fromTransitionError(te *domain.TransitionError) *DomainError {
	status, ok := transitionStatus[te.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	de := &DomainError{
		Code:       string(te.Code),
		Message:    transitionMessage[te.Code],
		HTTPStatus: status,
		Err:        te,
	}
	// Persistence faults are the only errors collapsed into a generic body.
	if te.Code == domain.CodeDatabaseError {
		return de
	}
	details := map[string]any{"retryable": te.Retryable()}
	if te.Kind != "" {
		details["entity_kind"] = te.Kind
	}
	if te.EntityID != "" {
		details["entity_id"] = te.EntityID
	}
	if te.From != "" {
		details["from_status"] = te.From
	}
	if te.To != "" {
		details["to_status"] = te.To
	}
	if te.Reason != "" {
		details["reason"] = te.Reason
		de.Message = te.Reason
	}
	de.Details = details
	return de
}
