package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agrovest/backend/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	userInvestmentsKeyPrefix = "user:investments:"
	webhookEventKeyPrefix    = "webhook:event:"
)

var ErrCacheMiss = fmt.Errorf("cache miss")

// RedisCacheRepository caches read-heavy investment lists and records
// webhook replay markers.
type RedisCacheRepository struct {
	client *redis.Client
}

// NewRedisCacheRepository creates a new Redis cache repository
func NewRedisCacheRepository(client *redis.Client) *RedisCacheRepository {
	return &RedisCacheRepository{
		client: client,
	}
}

// SetUserInvestments caches a user's investment list with TTL
func (r *RedisCacheRepository) SetUserInvestments(ctx context.Context, userID string, investments []*domain.Investment, ttl time.Duration) error {
	return r.Set(ctx, userInvestmentsKeyPrefix+userID, investments, ttl)
}

// GetUserInvestments retrieves the cached investment list for a user.
// Returns (nil, nil) when absent or expired.
func (r *RedisCacheRepository) GetUserInvestments(ctx context.Context, userID string) ([]*domain.Investment, error) {
	var investments []*domain.Investment
	if err := r.Get(ctx, userInvestmentsKeyPrefix+userID, &investments); err != nil {
		if err == ErrCacheMiss {
			return nil, nil
		}
		return nil, err
	}
	return investments, nil
}

// InvalidateUserInvestments removes the cached list after any write to a
// user's investments.
func (r *RedisCacheRepository) InvalidateUserInvestments(ctx context.Context, userID string) error {
	return r.Delete(ctx, userInvestmentsKeyPrefix+userID)
}

// MarkWebhookEvent records that a webhook delivery for txRef was handled.
// Returns true when this call set the marker (first delivery), false when
// the marker already existed (replay).
func (r *RedisCacheRepository) MarkWebhookEvent(ctx context.Context, txRef string, ttl time.Duration) (bool, error) {
	key := webhookEventKeyPrefix + txRef
	set, err := r.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark webhook event: %w", err)
	}
	return set, nil
}

// =============================================================================
// Generic Cache Operations with OpenTelemetry Tracing
// =============================================================================

// Get retrieves a value from cache by key with OTel tracing
func (r *RedisCacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Get",
		trace.WithAttributes(attribute.String("cache.key", key)),
	)
	defer span.End()

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			span.SetAttributes(attribute.String("cache.result", "miss"))
			return ErrCacheMiss
		}
		span.RecordError(err)
		return fmt.Errorf("redis get error: %w", err)
	}

	span.SetAttributes(attribute.String("cache.result", "hit"))
	if err := json.Unmarshal(data, dest); err != nil {
		span.RecordError(err)
		return fmt.Errorf("unmarshal error: %w", err)
	}

	return nil
}

// Set stores a value in cache with TTL and OTel tracing
func (r *RedisCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Set",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_seconds", int64(ttl.Seconds())),
		),
	)
	defer span.End()

	data, err := json.Marshal(value)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("marshal error: %w", err)
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis set error: %w", err)
	}

	return nil
}

// Delete removes keys from cache with OTel tracing
func (r *RedisCacheRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Delete",
		trace.WithAttributes(attribute.Int("cache.key_count", len(keys))),
	)
	defer span.End()

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis delete error: %w", err)
	}

	return nil
}
