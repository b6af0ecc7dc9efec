package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pscheid92/plantpulse/internal/domain"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// CacheObserver receives cache outcomes, usually for metrics.
type CacheObserver interface {
	ObserveLookup(hit bool)
	ObserveInvalidation()
}

type noopObserver struct{}

func (noopObserver) ObserveLookup(bool)   {}
func (noopObserver) ObserveInvalidation() {}

// ActorCache is a read-through Redis cache in front of an ActorDirectory.
// It caches account attributes only: every cache hit still asks the store
// for the active flag, so a deactivation takes effect on the next session.
// A Redis failure degrades to a direct lookup. Concurrent misses for the
// same actor share one store query.
type ActorCache struct {
	rdb      goredis.Cmdable
	source   domain.ActorDirectory
	ttl      time.Duration
	group    singleflight.Group
	observer CacheObserver
}

var _ domain.ActorDirectory = (*ActorCache)(nil)

func NewActorCache(rdb goredis.Cmdable, source domain.ActorDirectory, ttl time.Duration, observer CacheObserver) *ActorCache {
	if observer == nil {
		observer = noopObserver{}
	}
	return &ActorCache{rdb: rdb, source: source, ttl: ttl, observer: observer}
}

func (c *ActorCache) ResolveActiveActor(ctx context.Context, actorID string) (domain.Actor, error) {
	if actor, ok := c.getCached(ctx, actorID); ok {
		c.observer.ObserveLookup(true)
		active, err := c.source.ActorActive(ctx, actorID)
		if err != nil {
			return domain.Actor{}, err
		}
		if !active {
			c.drop(ctx, actorID)
			return domain.Actor{}, fmt.Errorf("%w: %q", domain.ErrInactiveActor, actorID)
		}
		return actor, nil
	}
	c.observer.ObserveLookup(false)

	v, err, _ := c.group.Do(actorID, func() (any, error) {
		actor, err := c.source.ResolveActiveActor(ctx, actorID)
		if err != nil {
			return domain.Actor{}, err
		}
		c.writeCache(ctx, actor)
		return actor, nil
	})
	if err != nil {
		return domain.Actor{}, err
	}
	return v.(domain.Actor), nil
}

func (c *ActorCache) ActorActive(ctx context.Context, actorID string) (bool, error) {
	return c.source.ActorActive(ctx, actorID)
}

// SetActive updates the store and then drops the cached entry.
func (c *ActorCache) SetActive(ctx context.Context, actorID string, active bool) error {
	if err := c.source.SetActive(ctx, actorID, active); err != nil {
		return err
	}
	c.drop(ctx, actorID)
	return nil
}

// Invalidate drops the cached account so the next session resolves it
// from the store.
func (c *ActorCache) Invalidate(ctx context.Context, actorID string) error {
	c.observer.ObserveInvalidation()
	if err := c.rdb.Del(ctx, actorCacheKey(actorID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate actor cache: %w", err)
	}
	return nil
}

func (c *ActorCache) drop(ctx context.Context, actorID string) {
	if err := c.Invalidate(ctx, actorID); err != nil {
		slog.Warn("Failed to drop cached actor", "actor_id", actorID, "error", err)
	}
}

func (c *ActorCache) getCached(ctx context.Context, actorID string) (domain.Actor, bool) {
	data, err := c.rdb.Get(ctx, actorCacheKey(actorID)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			slog.Warn("Redis actor cache GET failed", "actor_id", actorID, "error", err)
		}
		return domain.Actor{}, false
	}

	var actor domain.Actor
	if err := json.Unmarshal(data, &actor); err != nil {
		slog.Warn("Failed to unmarshal cached actor", "actor_id", actorID, "error", err)
		return domain.Actor{}, false
	}
	return actor, true
}

func (c *ActorCache) writeCache(ctx context.Context, actor domain.Actor) {
	encoded, err := json.Marshal(actor)
	if err != nil {
		slog.Warn("Failed to marshal actor for Redis cache", "actor_id", actor.ID, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, actorCacheKey(actor.ID), encoded, c.ttl).Err(); err != nil {
		slog.Warn("Failed to populate Redis actor cache", "actor_id", actor.ID, "error", err)
	}
}

func actorCacheKey(actorID string) string {
	return "actor_cache:" + actorID
}
