package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"teambilling/internal/domain"
	"teambilling/internal/logger"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisClient parses url, applies password and db overrides and verifies the connection.
func NewRedisClient(ctx context.Context, url, password string, db int) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	if db != 0 {
		opts.DB = db
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func NewRedis(client *redis.Client, ttl time.Duration, prefix string) *Redis {
	if prefix == "" {
		prefix = "teambilling:lock"
	}
	return &Redis{client: client, ttl: ttl, prefix: prefix}
}

func (r *Redis) Acquire(ctx context.Context, key string) (Release, error) {
	redisKey := r.prefix + ":" + key
	token := uuid.NewString()

	logger.ExternalServiceCall("redis", "SETNX", "key", redisKey)
	ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
	logger.ExternalServiceResult("redis", "SETNX", err, "key", redisKey, "acquired", ok)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, domain.ErrLockNotAcquired)
	}

	return func(ctx context.Context) error {
		err := releaseScript.Run(ctx, r.client, []string{redisKey}, token).Err()
		if err != nil && err != redis.Nil {
			return fmt.Errorf("release %s: %w", key, err)
		}
		return nil
	}, nil
}
