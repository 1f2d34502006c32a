package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"roadassist/internal/models"
	"roadassist/pkg/cache"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CachedTripState is the locally persisted phase/route view used for recovery
// when the backend read is unavailable or lagging a reload.
type CachedTripState struct {
	Phase     models.NavigationPhase `json:"phase"`
	Route     *models.RouteSnapshot  `json:"route,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// TripStateCache is the local persistent cache contract: a key→string store
// keyed by trip identifier. It is never more authoritative than a successfully
// synced backend read except through the reconciler's monotonic-index
// tie-break.
type TripStateCache interface {
	Save(ctx context.Context, tripID primitive.ObjectID, state *CachedTripState) error
	Load(ctx context.Context, tripID primitive.ObjectID) (*CachedTripState, error)
	Clear(ctx context.Context, tripID primitive.ObjectID) error
}

type redisTripStateCache struct {
	cache *cache.RedisCache
	ttl   time.Duration
}

func NewTripStateCache(redisCache *cache.RedisCache, ttl time.Duration) TripStateCache {
	return &redisTripStateCache{
		cache: redisCache,
		ttl:   ttl,
	}
}

func tripStateKey(tripID primitive.ObjectID) string {
	return "trip_state:" + tripID.Hex()
}

func (c *redisTripStateCache) Save(ctx context.Context, tripID primitive.ObjectID, state *CachedTripState) error {
	state.UpdatedAt = time.Now()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal trip state: %w", err)
	}

	return c.cache.SetString(ctx, tripStateKey(tripID), string(data), c.ttl)
}

func (c *redisTripStateCache) Load(ctx context.Context, tripID primitive.ObjectID) (*CachedTripState, error) {
	data, err := c.cache.GetString(ctx, tripStateKey(tripID))
	if err != nil {
		if cache.IsMiss(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read trip state: %w", err)
	}

	var state CachedTripState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		// A corrupt cache entry is treated as a miss, not a failure.
		return nil, nil
	}

	state.Phase = models.NormalizePhase(state.Phase)

	return &state, nil
}

func (c *redisTripStateCache) Clear(ctx context.Context, tripID primitive.ObjectID) error {
	return c.cache.Delete(ctx, tripStateKey(tripID))
}
