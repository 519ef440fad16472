package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/eventgate/ticket-lifecycle/internal/domain"
)

func TestToDomainErrorTransitionCodes(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", domain.NewEntityNotFound(domain.EntityKindEvent, "e"), http.StatusNotFound, "ENTITY_NOT_FOUND"},
		{"invalid", domain.NewInvalidTransition(domain.EntityKindEvent, "e", domain.EventStatusArchived, domain.EventStatusDraft, ""), http.StatusConflict, "INVALID_TRANSITION"},
		{"guard", domain.NewGuardFailed(domain.EntityKindEvent, "e", domain.EventStatusDraft, domain.EventStatusPublished, "title is required"), http.StatusUnprocessableEntity, "GUARD_FAILED"},
		{"race", domain.NewConcurrentModification(domain.EntityKindTicket, "t", domain.TicketStatusApproved, domain.TicketStatusStaked, 3), http.StatusConflict, "CONCURRENT_MODIFICATION"},
		{"verify", domain.NewVerificationFailed("t", "not found on chain"), http.StatusUnprocessableEntity, "VERIFICATION_FAILED"},
		{"db", domain.NewDatabaseError(domain.EntityKindTicket, "t", errors.New("conn reset")), http.StatusInternalServerError, "DATABASE_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de := ToDomainError(fmt.Errorf("ctx: %w", tt.err))
			if de.HTTPStatus != tt.status || de.Code != tt.code {
				t.Fatalf("got %d %s, want %d %s", de.HTTPStatus, de.Code, tt.status, tt.code)
			}
		})
	}
}

func TestGuardFailureDetailsCarryReason(t *testing.T) {
	de := ToDomainError(domain.NewGuardFailed(domain.EntityKindEvent, "e", domain.EventStatusDraft, domain.EventStatusPublished, "title is required"))
	if de.Message != "title is required" {
		t.Errorf("message = %q", de.Message)
	}
	if de.Details["from_status"] != domain.EventStatusDraft || de.Details["to_status"] != domain.EventStatusPublished {
		t.Errorf("details = %v", de.Details)
	}
	if de.Details["retryable"] != false {
		t.Errorf("retryable = %v", de.Details["retryable"])
	}
}

func TestDatabaseErrorHidesDetails(t *testing.T) {
	de := ToDomainError(domain.NewDatabaseError(domain.EntityKindTicket, "t", errors.New("password=secret")))
	if de.Details != nil {
		t.Fatalf("database error leaked details: %v", de.Details)
	}
	if de.Message != "internal server error" {
		t.Fatalf("message = %q", de.Message)
	}
}

func TestToDomainErrorFallbacks(t *testing.T) {
	if de := ToDomainError(domain.ErrNotFound); de.HTTPStatus != http.StatusNotFound {
		t.Errorf("ErrNotFound -> %d", de.HTTPStatus)
	}
	if de := ToDomainError(errors.New("boom")); de.Code != "INTERNAL_ERROR" {
		t.Errorf("plain error -> %s", de.Code)
	}
	if ToDomainError(nil) != nil {
		t.Error("nil error should map to nil")
	}
	v := NewValidationError("bad", nil)
	if de := ToDomainError(v); de.HTTPStatus != http.StatusBadRequest {
		t.Errorf("validation -> %d", de.HTTPStatus)
	}
}
