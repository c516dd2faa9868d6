package creature

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache answers creature lookups from the playback runner. On a miss the
// runner loads the creature through its CreatureLoader and puts it here; if
// that load fails, the runner ends the session.
type Cache interface {
	Get(ctx context.Context, id string) (Creature, bool)
	Put(ctx context.Context, c Creature)
	Delete(ctx context.Context, id string)
}

// MemoryCache is an in-process map guarded by a RWMutex, sufficient for a
// single-instance deployment and the default backing for RedisCache.
type MemoryCache struct {
	mu   sync.RWMutex
	byID map[string]Creature
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{byID: make(map[string]Creature)}
}

func (c *MemoryCache) Get(_ context.Context, id string) (Creature, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cr, ok := c.byID[id]
	return cr, ok
}

func (c *MemoryCache) Put(_ context.Context, cr Creature) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[cr.ID] = cr
}

func (c *MemoryCache) Delete(_ context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byID, id)
}

// RedisCache fronts a MemoryCache with a shared Redis layer so that multiple
// creature-server instances (e.g. behind a load balancer, or a blue/green
// deploy pair) observe creature-roster edits without restarting, the same
// role Redis plays for the teacher's distributed RTP port allocator. A Redis
// error on Get degrades to the local layer rather than failing the lookup.
type RedisCache struct {
	rdb   *redis.Client
	local *MemoryCache
	ttl   time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, local: NewMemoryCache(), ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, id string) (Creature, bool) {
	if cr, ok := c.local.Get(ctx, id); ok {
		return cr, true
	}

	raw, err := c.rdb.Get(ctx, redisKey(id)).Bytes()
	if err != nil {
		return Creature{}, false
	}

	var cr Creature
	if err := json.Unmarshal(raw, &cr); err != nil {
		return Creature{}, false
	}

	c.local.Put(ctx, cr)
	return cr, true
}

func (c *RedisCache) Put(ctx context.Context, cr Creature) {
	c.local.Put(ctx, cr)

	raw, err := json.Marshal(cr)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, redisKey(cr.ID), raw, c.ttl)
}

func (c *RedisCache) Delete(ctx context.Context, id string) {
	c.local.Delete(ctx, id)
	c.rdb.Del(ctx, redisKey(id))
}

func redisKey(id string) string {
	return "creature-server:creature:" + id
}
