package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eventgate/ticket-lifecycle/internal/config"
	"github.com/eventgate/ticket-lifecycle/internal/domain"
)

// Redis wraps the go-redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration. An
// unreachable server is logged, not fatal: Redis only backs the status
// mirror.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// StatusMirror copies committed lifecycle statuses into Redis hashes for
// read-heavy consumers. Postgres stays authoritative.
type StatusMirror struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatusMirror builds a mirror; ttl <= 0 keeps keys indefinitely.
func NewStatusMirror(r *Redis, ttl time.Duration) *StatusMirror {
	if r == nil {
		return &StatusMirror{ttl: ttl}
	}
	return &StatusMirror{client: r.Client, ttl: ttl}
}

// Name identifies the side channel in logs and errors.
func (m *StatusMirror) Name() string {
	return "redis"
}

// MirrorStatus writes the entity's current lifecycle fields.
func (m *StatusMirror) MirrorStatus(ctx context.Context, entity domain.LifecycleEntity) error {
	if m == nil || m.client == nil {
		return errors.New("redis client not configured")
	}
	key := StatusMirrorKey(entity.Kind, entity.ID)
	fields := map[string]any{
		"status":   string(entity.Status),
		"owner_id": entity.OwnerID,
	}
	if entity.PreviousStatus != nil {
		fields["previous_status"] = string(*entity.PreviousStatus)
	}
	if entity.TransitionedAt != nil {
		fields["transitioned_at"] = entity.TransitionedAt.UTC().Format(time.RFC3339Nano)
	}
	if entity.EventID != "" {
		fields["event_id"] = entity.EventID
	}
	_, err := m.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, fields)
		if m.ttl > 0 {
			p.Expire(ctx, key, m.ttl)
		}
		return nil
	})
	return err
}

// StatusMirrorKey is the Redis hash key for an entity.
func StatusMirrorKey(kind domain.EntityKind, id string) string {
	return "lifecycle:" + string(kind) + ":" + id
}
