package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/eventgate/ticket-lifecycle/internal/domain"
	apperrors "github.com/eventgate/ticket-lifecycle/pkg/util/errorutil"
)

// RequireActorType ensures the caller is one of the allowed actor types.
func RequireActorType(allowed ...domain.ActorType) fiber.Handler {
	allowedSet := make(map[domain.ActorType]struct{}, len(allowed))
	for _, t := range allowed {
		allowedSet[t] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		identity, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if _, exists := allowedSet[identity.ActorType]; !exists {
			return apperrors.NewForbidden("actor type not permitted")
		}
		return c.Next()
	}
}

// RequireService admits system, cron and webhook callers only.
func RequireService() fiber.Handler {
	return RequireActorType(domain.ActorTypeSystem, domain.ActorTypeCron, domain.ActorTypeWebhook)
}
