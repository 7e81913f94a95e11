package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CompanyLocks hands out one mutex per company. PostEntry, ReverseEntry and
// RecomputeAll all serialize on the same lock, which is what gives the
// at-most-one-in-flight-post-per-company contract; reads never take it.
type CompanyLocks struct {
	locks sync.Map // companyID -> *sync.Mutex
}

func NewCompanyLocks() *CompanyLocks {
	return &CompanyLocks{}
}

func (c *CompanyLocks) Get(companyID string) *sync.Mutex {
	mu, _ := c.locks.LoadOrStore(companyID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// cacheGetJSON reads a JSON blob from redis into v. A nil client or any
// cache error reads as a miss.
func cacheGetJSON(ctx context.Context, rdb *redis.Client, key string, v interface{}) bool {
	if rdb == nil {
		return false
	}
	val, err := rdb.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), v) == nil
}

// cacheSetJSON stores v as a JSON blob with a TTL, best effort
func cacheSetJSON(ctx context.Context, rdb *redis.Client, key string, v interface{}, ttl time.Duration) {
	if rdb == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = rdb.Set(ctx, key, data, ttl).Err()
	}
}

// cacheDel drops individual keys, best effort
func cacheDel(ctx context.Context, rdb *redis.Client, keys ...string) {
	if rdb == nil || len(keys) == 0 {
		return
	}
	_ = rdb.Del(ctx, keys...).Err()
}

// cacheDelPattern drops every key matching a pattern, best effort
func cacheDelPattern(ctx context.Context, rdb *redis.Client, pattern string) {
	if rdb == nil {
		return
	}
	iter := rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		_ = rdb.Del(ctx, iter.Val()).Err()
	}
}

func nullableStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strOrDefault(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
