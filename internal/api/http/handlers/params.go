package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/eventgate/ticket-lifecycle/internal/auth"
	"github.com/eventgate/ticket-lifecycle/internal/domain"
	"github.com/eventgate/ticket-lifecycle/internal/repository"
	"github.com/eventgate/ticket-lifecycle/internal/service"
	apperrors "github.com/eventgate/ticket-lifecycle/pkg/util/errorutil"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

func callerIdentity(c *fiber.Ctx) (*auth.Identity, error) {
	identity, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return identity, nil
}

func entityKindParam(c *fiber.Ctx) (domain.EntityKind, error) {
	kind, ok := service.ParseEntityKind(c.Params("kind"))
	if !ok {
		return "", apperrors.NewValidationError("kind must be event or ticket", map[string]any{"kind": c.Params("kind")})
	}
	return kind, nil
}

func parseLimit(c *fiber.Ctx) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, apperrors.NewValidationError("limit must be a positive integer", nil)
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, nil
}

// parseOrder reads ?order=asc|desc; fallback applies when absent.
func parseOrder(c *fiber.Ctx, fallback repository.SortOrder) (repository.SortOrder, error) {
	switch strings.ToLower(c.Query("order")) {
	case "":
		return fallback, nil
	case "asc", "oldest":
		return repository.OldestFirst, nil
	case "desc", "newest":
		return repository.NewestFirst, nil
	default:
		return 0, apperrors.NewValidationError("order must be asc or desc", nil)
	}
}
