package seen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the SET holding the fingerprints.
const DefaultRedisKey = "historybrief:seen"

// ErrEmptyAddress is returned when no Redis address is configured.
var ErrEmptyAddress = errors.New("redis address is required")

const redisConnectTimeout = 5 * time.Second

// RedisStore keeps fingerprints in one Redis SET.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to addr, either host:port or a redis:// URL. An
// empty key uses DefaultRedisKey.
func NewRedisStore(addr, key string) (*RedisStore, error) {
	if addr == "" {
		return nil, ErrEmptyAddress
	}
	if key == "" {
		key = DefaultRedisKey
	}

	opts := &redis.Options{Addr: addr}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		opts = parsed
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{client: client, key: key}, nil
}

// Load reads the SET members. A missing key is an empty set.
func (r *RedisStore) Load(ctx context.Context) (Set, error) {
	members, err := r.client.SMembers(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.key, err)
	}
	return NewSet(members...), nil
}

// Save adds every fingerprint with a single SADD.
func (r *RedisStore) Save(ctx context.Context, set Set) error {
	if set.Len() == 0 {
		return nil
	}

	fps := set.Sorted()
	members := make([]any, len(fps))
	for i, fp := range fps {
		members[i] = fp
	}

	if err := r.client.SAdd(ctx, r.key, members...).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", r.key, err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
