package repository

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const suppressedPrefix = "push:token:suppressed:"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRepository caches pruned tokens and guards scheduled runs.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	return &RedisRepository{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// SuppressedTokens checks every token in one pipelined round trip and returns
// the suppressed ones.
func (r *RedisRepository) SuppressedTokens(ctx context.Context, tokens []string) (map[string]bool, error) {
	if len(tokens) == 0 {
		return map[string]bool{}, nil
	}
	cmds := make([]*redis.IntCmd, len(tokens))
	_, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, token := range tokens {
			cmds[i] = p.Exists(ctx, suppressedPrefix+token)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	suppressed := make(map[string]bool)
	for i, cmd := range cmds {
		if cmd.Val() == 1 {
			suppressed[tokens[i]] = true
		}
	}
	return suppressed, nil
}

// SuppressToken stores a token in Redis with a TTL.
func (r *RedisRepository) SuppressToken(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.ttl
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return r.client.SetEX(ctx, suppressedPrefix+token, "1", ttl).Err()
}

// AcquireLock takes key for owner unless someone else holds it.
func (r *RedisRepository) AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, "lock:"+key, owner, ttl).Result()
}

// ReleaseLock drops key only if owner still holds it.
func (r *RedisRepository) ReleaseLock(ctx context.Context, key, owner string) error {
	return releaseScript.Run(ctx, r.client, []string{"lock:" + key}, owner).Err()
}
