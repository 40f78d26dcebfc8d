package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/shopledger/internal/domain"
	"github.com/iho/shopledger/internal/infrastructure/metrics"
)

// PartyCache is a version-guarded cache of parties. Committed mutations
// write the party back, deletions included, so a reader holding an older
// snapshot can never overwrite a newer one. A nil *PartyCache is valid and
// caches nothing.
type PartyCache struct {
	cache   Cache
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewPartyCache creates a PartyCache backed by cache.
func NewPartyCache(cache Cache, ttl time.Duration, m *metrics.Metrics) *PartyCache {
	if ttl <= 0 {
		ttl = DefaultPartyCacheTTL
	}
	return &PartyCache{cache: cache, ttl: ttl, metrics: m}
}

func partyCacheKey(kind domain.PartyKind, id string) string {
	return fmt.Sprintf("party:%s:%s", kind, id)
}

// get returns the cached party, which may be a deletion marker.
func (c *PartyCache) get(ctx context.Context, kind domain.PartyKind, id string) (*domain.Party, bool) {
	if c == nil {
		return nil, false
	}

	data, err := c.cache.Get(ctx, partyCacheKey(kind, id))
	if err != nil || data == nil {
		if c.metrics != nil {
			c.metrics.CacheMisses.Inc()
		}
		return nil, false
	}

	var party domain.Party
	if err := json.Unmarshal(data, &party); err != nil {
		return nil, false
	}

	if c.metrics != nil {
		c.metrics.CacheHits.Inc()
	}

	return &party, true
}

// put stores party unless the cache already holds the same or a newer
// version. A failed write drops the key so the next read goes to the store.
func (c *PartyCache) put(ctx context.Context, party *domain.Party) {
	if c == nil || party == nil {
		return
	}

	data, err := json.Marshal(party)
	if err != nil {
		c.invalidate(ctx, party.Kind, party.ID)
		return
	}

	key := partyCacheKey(party.Kind, party.ID)
	if _, err := c.cache.SetIfNewer(ctx, key, data, party.Version, c.ttl); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("party_id", party.ID).Msg("party cache write failed")
		if c.metrics != nil {
			c.metrics.RedisErrors.WithLabelValues("set").Inc()
		}
		c.invalidate(ctx, party.Kind, party.ID)
	}
}

func (c *PartyCache) invalidate(ctx context.Context, kind domain.PartyKind, id string) {
	if c == nil {
		return
	}

	if err := c.cache.Delete(ctx, partyCacheKey(kind, id)); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("party_id", id).Msg("party cache invalidation failed")
		if c.metrics != nil {
			c.metrics.RedisErrors.WithLabelValues("delete").Inc()
		}
	}
}
