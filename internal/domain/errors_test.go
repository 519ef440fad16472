package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestTransitionErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewGuardFailed(EntityKindEvent, "ev-1", EventStatusDraft, EventStatusPublished, "title required"))
	if !errors.Is(err, ErrGuardFailed) {
		t.Fatal("expected errors.Is to match GUARD_FAILED")
	}
	if errors.Is(err, ErrInvalidTransition) {
		t.Fatal("GUARD_FAILED matched INVALID_TRANSITION")
	}
	var te *TransitionError
	if !errors.As(err, &te) || te.Reason != "title required" {
		t.Fatalf("reason not preserved: %+v", te)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{NewConcurrentModification(EntityKindTicket, "t", TicketStatusApproved, TicketStatusStaked, 3), true},
		{NewVerificationFailed("t", "not indexed"), true},
		{NewInvalidTransition(EntityKindTicket, "t", TicketStatusRevoked, TicketStatusStaked, ""), false},
		{NewDatabaseError(EntityKindTicket, "t", errors.New("boom")), false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestDatabaseErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewDatabaseError(EntityKindEvent, "ev-1", cause)
	if !errors.Is(err, cause) {
		t.Fatal("database error does not unwrap to cause")
	}
}

func TestSecondaryWriteErrorUnwraps(t *testing.T) {
	cause := errors.New("redis down")
	err := &SecondaryWriteError{Channel: "redis", Kind: EntityKindTicket, EntityID: "t-1", Err: cause}
	if !errors.Is(err, cause) {
		t.Fatal("secondary write error does not unwrap")
	}
	if err.Code() != CodeSecondaryWriteFailed {
		t.Fatalf("code = %s", err.Code())
	}
}
