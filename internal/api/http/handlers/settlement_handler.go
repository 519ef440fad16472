package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/eventgate/ticket-lifecycle/internal/api/dto"
	"github.com/eventgate/ticket-lifecycle/internal/service"
	apperrors "github.com/eventgate/ticket-lifecycle/pkg/util/errorutil"
)

// SettlementHandler exposes stake verification and manual settlement.
type SettlementHandler struct {
	lifecycle  *service.LifecycleService
	settlement *service.SettlementService
}

// NewSettlementHandler constructs handler.
func NewSettlementHandler(lifecycle *service.LifecycleService, settlement *service.SettlementService) *SettlementHandler {
	return &SettlementHandler{lifecycle: lifecycle, settlement: settlement}
}

// VerifyStake POST /v1/tickets/:id/stake/verify[?apply=true].
func (h *SettlementHandler) VerifyStake(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	var req dto.VerifyStakeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TxHash == "" {
		return apperrors.NewValidationError("tx_hash required", nil)
	}

	if c.QueryBool("apply", false) {
		result, err := h.lifecycle.VerifyAndStake(c.UserContext(), service.StakeInput{
			TicketID:      c.Params("id"),
			Wallet:        req.WalletAddress,
			Reference:     req.TxHash,
			Actor:         identity.Actor(),
			CorrelationID: req.CorrelationID,
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": result})
	}

	res, err := h.lifecycle.VerifyStake(c.UserContext(), c.Params("id"), req.WalletAddress, req.TxHash)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": res})
}

// Release POST /v1/tickets/:id/settlement/release.
func (h *SettlementHandler) Release(c *fiber.Ctx) error {
	var req dto.SettlementRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	result, err := h.settlement.Release(c.UserContext(), c.Params("id"), req.HolderAddress)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}

// Forfeit POST /v1/tickets/:id/settlement/forfeit.
func (h *SettlementHandler) Forfeit(c *fiber.Ctx) error {
	var req dto.SettlementRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	result, err := h.settlement.Forfeit(c.UserContext(), c.Params("id"), req.HolderAddress)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}
