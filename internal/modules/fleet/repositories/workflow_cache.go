package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fleettrack/telematics-be/internal/core/workflow"
)

// cacheClient is the subset of redis commands the cache uses
type cacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// WorkflowCache is a read-through cache of active workflows per tenant and
// event type. Every authoring write bumps the tenant generation, so stale
// entries are never read again and expire on their own.
type WorkflowCache struct {
	client cacheClient
	source workflow.WorkflowSource
	ttl    time.Duration
	logger zerolog.Logger
}

const cachePrefix = "fleet:workflows"

func NewWorkflowCache(client redis.UniversalClient, source workflow.WorkflowSource, ttl time.Duration, logger zerolog.Logger) *WorkflowCache {
	return newWorkflowCache(client, source, ttl, logger)
}

func newWorkflowCache(client cacheClient, source workflow.WorkflowSource, ttl time.Duration, logger zerolog.Logger) *WorkflowCache {
	return &WorkflowCache{client: client, source: source, ttl: ttl, logger: logger}
}

func (c *WorkflowCache) FindActiveForEvent(ctx context.Context, tenantID uuid.UUID, eventType workflow.EventType) ([]workflow.Workflow, error) {
	gen, err := c.generation(ctx, tenantID)
	if err != nil {
		c.logger.Warn().Err(err).Str("tenant_id", tenantID.String()).Msg("workflow cache unavailable, reading source")
		return c.source.FindActiveForEvent(ctx, tenantID, eventType)
	}

	key := fmt.Sprintf("%s:%s:%d:%s", cachePrefix, tenantID, gen, eventType)
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var workflows []workflow.Workflow
		if jsonErr := json.Unmarshal(data, &workflows); jsonErr == nil {
			return workflows, nil
		}
		c.logger.Warn().Str("key", key).Msg("discarding undecodable workflow cache entry")
	case !errors.Is(err, redis.Nil):
		c.logger.Warn().Err(err).Str("key", key).Msg("workflow cache read failed")
	}

	workflows, err := c.source.FindActiveForEvent(ctx, tenantID, eventType)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(workflows)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to encode workflows for cache")
		return workflows, nil
	}
	if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("workflow cache write failed")
	}
	return workflows, nil
}

// Invalidate drops every cached entry of the tenant
func (c *WorkflowCache) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	if err := c.client.Incr(ctx, generationKey(tenantID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate workflow cache for tenant %s: %w", tenantID, err)
	}
	return nil
}

func (c *WorkflowCache) generation(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	raw, err := c.client.Get(ctx, generationKey(tenantID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

func generationKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:gen", cachePrefix, tenantID)
}
