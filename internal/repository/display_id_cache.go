package repository

import (
	"context"
	"edu_platform_backend/internal/model"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DisplayIDCache maps (kind, referenced id) to a lesson's display id.
// A nil cache or a nil client turns every call into a miss.
type DisplayIDCache struct {
	Redis *redis.Client
	TTL   time.Duration
}

func NewDisplayIDCache(rdb *redis.Client, ttl time.Duration) *DisplayIDCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &DisplayIDCache{Redis: rdb, TTL: ttl}
}

func displayIDKey(kind model.LessonKind, id string) string {
	return fmt.Sprintf("lesson:display:%s:%s", kind, id)
}

func (c *DisplayIDCache) Get(ctx context.Context, kind model.LessonKind, id string) (string, bool) {
	if c == nil || c.Redis == nil {
		return "", false
	}
	val, err := c.Redis.Get(ctx, displayIDKey(kind, id)).Result()
	if err != nil || val == "" {
		return "", false
	}
	return val, true
}

func (c *DisplayIDCache) Set(ctx context.Context, kind model.LessonKind, id, display string) {
	if c == nil || c.Redis == nil {
		return
	}
	c.Redis.Set(ctx, displayIDKey(kind, id), display, c.TTL)
}

// Invalidate drops the cached display id, used when content ids change.
func (c *DisplayIDCache) Invalidate(ctx context.Context, kind model.LessonKind, ids ...string) {
	if c == nil || c.Redis == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, displayIDKey(kind, id))
	}
	c.Redis.Del(ctx, keys...)
}
