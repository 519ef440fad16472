package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/eventgate/ticket-lifecycle/internal/api/dto"
	"github.com/eventgate/ticket-lifecycle/internal/domain"
	"github.com/eventgate/ticket-lifecycle/internal/service"
	apperrors "github.com/eventgate/ticket-lifecycle/pkg/util/errorutil"
)

// AuditHandler exposes ledger-wide reads.
type AuditHandler struct {
	ledger   *service.AuditLedger
	timeline *service.TimelineService
}

// NewAuditHandler constructs handler.
func NewAuditHandler(ledger *service.AuditLedger, timeline *service.TimelineService) *AuditHandler {
	return &AuditHandler{ledger: ledger, timeline: timeline}
}

// Correlation GET /v1/audit/correlations/:id.
func (h *AuditHandler) Correlation(c *fiber.Ctx) error {
	envelopes, err := h.timeline.TransactionTimeline(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.Envelopes(envelopes)})
}

// Recent GET /v1/audit/recent?limit=&event_type=A,B.
func (h *AuditHandler) Recent(c *fiber.Ctx) error {
	limit, err := parseLimit(c)
	if err != nil {
		return err
	}
	var types []domain.EventType
	for _, raw := range strings.Split(c.Query("event_type"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			types = append(types, domain.EventType(strings.ToUpper(raw)))
		}
	}
	envelopes, err := h.ledger.Recent(c.UserContext(), limit, types...)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.Envelopes(envelopes)})
}

// Incomplete GET /v1/audit/incomplete?since=RFC3339. Defaults to the last 24 hours.
func (h *AuditHandler) Incomplete(c *fiber.Ctx) error {
	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return apperrors.NewValidationError("since must be RFC3339", map[string]any{"since": raw})
		}
		cutoff = parsed
	}
	items, err := h.timeline.IncompleteSince(c.UserContext(), cutoff)
	if err != nil {
		return err
	}
	out := make([]fiber.Map, 0, len(items))
	for _, item := range items {
		out = append(out, fiber.Map{
			"correlation_id":    item.CorrelationID,
			"started_at":        item.StartedAt,
			"last_event_type":   item.LastEventType,
			"entity_id":         item.EntityID,
			"start_envelope_id": item.StartEnvelopeID,
			"timeline":          dto.Envelopes(item.Timeline),
		})
	}
	return c.JSON(fiber.Map{"data": out})
}
