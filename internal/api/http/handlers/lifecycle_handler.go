package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/eventgate/ticket-lifecycle/internal/api/dto"
	"github.com/eventgate/ticket-lifecycle/internal/repository"
	"github.com/eventgate/ticket-lifecycle/internal/service"
	apperrors "github.com/eventgate/ticket-lifecycle/pkg/util/errorutil"
)

// LifecycleHandler exposes transitions and per-entity reads.
type LifecycleHandler struct {
	lifecycle *service.LifecycleService
	timeline  *service.TimelineService
}

// NewLifecycleHandler constructs handler.
func NewLifecycleHandler(lifecycle *service.LifecycleService, timeline *service.TimelineService) *LifecycleHandler {
	return &LifecycleHandler{lifecycle: lifecycle, timeline: timeline}
}

// Transition POST /v1/lifecycle/:kind/:id/transitions.
func (h *LifecycleHandler) Transition(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	kind, err := entityKindParam(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Target == "" {
		return apperrors.NewValidationError("target required", nil)
	}

	result, err := h.lifecycle.Transition(c.UserContext(), service.TransitionInput{
		Kind:          kind,
		EntityID:      c.Params("id"),
		Target:        req.Target,
		Actor:         identity.Actor(),
		Reason:        req.Reason,
		Payload:       req.Payload,
		Metadata:      req.Metadata,
		CorrelationID: req.CorrelationID,
		CausationID:   req.CausationID,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}

// Status GET /v1/lifecycle/:kind/:id/status.
func (h *LifecycleHandler) Status(c *fiber.Ctx) error {
	kind, err := entityKindParam(c)
	if err != nil {
		return err
	}
	view, err := h.lifecycle.CurrentStatus(c.UserContext(), kind, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": view})
}

// Audit GET /v1/lifecycle/:kind/:id/audit.
func (h *LifecycleHandler) Audit(c *fiber.Ctx) error {
	kind, err := entityKindParam(c)
	if err != nil {
		return err
	}
	limit, err := parseLimit(c)
	if err != nil {
		return err
	}
	order, err := parseOrder(c, repository.NewestFirst)
	if err != nil {
		return err
	}
	envelopes, err := h.lifecycle.AuditTrail(c.UserContext(), kind, c.Params("id"), limit, order)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.Envelopes(envelopes)})
}

// Timeline GET /v1/lifecycle/:kind/:id/timeline.
func (h *LifecycleHandler) Timeline(c *fiber.Ctx) error {
	kind, err := entityKindParam(c)
	if err != nil {
		return err
	}
	if _, err := h.lifecycle.CurrentStatus(c.UserContext(), kind, c.Params("id")); err != nil {
		return err
	}
	tl, err := h.timeline.EntityTimeline(c.UserContext(), kind, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"entity_kind": tl.Kind,
		"entity_id":   tl.EntityID,
		"first_at":    tl.FirstAt,
		"last_at":     tl.LastAt,
		"count":       tl.Count,
		"envelopes":   dto.Envelopes(tl.Envelopes),
	}})
}
