package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ramiqadoumi/leadflow/internal/domain"
)

const defaultEnrichmentTTL = 7 * 24 * time.Hour

func enrichmentKey(provider, lookup string) string {
	return "enrich:" + provider + ":" + strings.ToLower(strings.TrimSpace(lookup))
}

// EnrichmentCache remembers successful enrichment payloads per provider and
// lookup key (an email or a domain).
type EnrichmentCache interface {
	Get(ctx context.Context, provider, lookup string) (*domain.EnrichmentPayload, bool, error)
	Set(ctx context.Context, provider, lookup string, payload *domain.EnrichmentPayload) error
}

type enrichmentCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEnrichmentCache creates a Redis-backed EnrichmentCache. A zero ttl
// means seven days.
func NewEnrichmentCache(client *redis.Client, ttl time.Duration) EnrichmentCache {
	if ttl <= 0 {
		ttl = defaultEnrichmentTTL
	}
	return &enrichmentCache{client: client, ttl: ttl}
}

func (c *enrichmentCache) Get(ctx context.Context, provider, lookup string) (*domain.EnrichmentPayload, bool, error) {
	data, err := c.client.Get(ctx, enrichmentKey(provider, lookup)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get enrichment %s/%s: %w", provider, lookup, err)
	}
	var payload domain.EnrichmentPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, false, fmt.Errorf("unmarshal enrichment %s/%s: %w", provider, lookup, err)
	}
	return &payload, true, nil
}

func (c *enrichmentCache) Set(ctx context.Context, provider, lookup string, payload *domain.EnrichmentPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal enrichment: %w", err)
	}
	if err := c.client.Set(ctx, enrichmentKey(provider, lookup), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set enrichment %s/%s: %w", provider, lookup, err)
	}
	return nil
}
