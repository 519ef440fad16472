package auth

import (
	"context"
	"strings"

	"github.com/eventgate/ticket-lifecycle/internal/domain"
	apperrors "github.com/eventgate/ticket-lifecycle/pkg/util/errorutil"
)

// serviceKeyPrefix marks a bearer credential as a service key of the form
// svc.<name>.<secret>.
const serviceKeyPrefix = "svc."

// Identity is a resolved caller.
type Identity struct {
	ID        string           `json:"id"`
	Email     string           `json:"email,omitempty"`
	ActorType domain.ActorType `json:"actor_type"`
}

// Actor converts the identity for audit envelopes.
func (i *Identity) Actor() domain.Actor {
	return domain.Actor{Type: i.ActorType, ID: i.ID}
}

// IdentityResolver turns bearer credentials into identities: JWTs for
// users and bcrypt-checked service keys for automated callers.
type IdentityResolver struct {
	tokens      *TokenManager
	serviceKeys map[string]string
}

// NewIdentityResolver builds a resolver. serviceKeys maps service name to
// the bcrypt hash of its secret.
func NewIdentityResolver(tokens *TokenManager, serviceKeys map[string]string) *IdentityResolver {
	return &IdentityResolver{tokens: tokens, serviceKeys: serviceKeys}
}

// Resolve validates bearer and returns who it belongs to.
func (r *IdentityResolver) Resolve(ctx context.Context, bearer string) (*Identity, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return nil, apperrors.NewUnauthorized("missing credential")
	}
	if strings.HasPrefix(bearer, serviceKeyPrefix) {
		return r.resolveServiceKey(bearer)
	}
	claims, err := r.tokens.ParseToken(bearer)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}
	return &Identity{ID: claims.Subject, Email: claims.Email, ActorType: domain.ActorTypeUser}, nil
}

func (r *IdentityResolver) resolveServiceKey(bearer string) (*Identity, error) {
	name, secret, ok := strings.Cut(strings.TrimPrefix(bearer, serviceKeyPrefix), ".")
	if !ok || name == "" || secret == "" {
		return nil, apperrors.NewUnauthorized("malformed service key")
	}
	hash, known := r.serviceKeys[name]
	if !known || CompareSecret(hash, secret) != nil {
		return nil, apperrors.NewUnauthorized("invalid service key")
	}
	return &Identity{ID: name, ActorType: serviceActorType(name)}, nil
}

// serviceActorType derives the actor type from the service name prefix.
func serviceActorType(name string) domain.ActorType {
	switch {
	case name == "cron" || strings.HasPrefix(name, "cron-"):
		return domain.ActorTypeCron
	case name == "webhook" || strings.HasPrefix(name, "webhook-"):
		return domain.ActorTypeWebhook
	default:
		return domain.ActorTypeSystem
	}
}
