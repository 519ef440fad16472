package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/eventgate/ticket-lifecycle/internal/api/dto"
	"github.com/eventgate/ticket-lifecycle/internal/service"
	apperrors "github.com/eventgate/ticket-lifecycle/pkg/util/errorutil"
)

// RegistrationHandler creates events and tickets.
type RegistrationHandler struct {
	lifecycle *service.LifecycleService
}

// NewRegistrationHandler constructs handler.
func NewRegistrationHandler(lifecycle *service.LifecycleService) *RegistrationHandler {
	return &RegistrationHandler{lifecycle: lifecycle}
}

// CreateEvent POST /v1/events.
func (h *RegistrationHandler) CreateEvent(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	var req dto.CreateEventRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	event, err := h.lifecycle.RegisterEvent(c.UserContext(), service.RegisterEventInput{
		OrganizerID: identity.ID,
		Title:       req.Title,
		StartsAt:    req.StartsAt,
		Actor:       identity.Actor(),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.Event(event)})
}

// CreateTicket POST /v1/events/:id/tickets.
func (h *RegistrationHandler) CreateTicket(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	holder := req.HolderID
	if holder == "" {
		holder = identity.ID
	}
	ticket, err := h.lifecycle.RegisterTicket(c.UserContext(), service.RegisterTicketInput{
		EventID:  c.Params("id"),
		HolderID: holder,
		Status:   req.Status,
		Actor:    identity.Actor(),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.Ticket(ticket)})
}
