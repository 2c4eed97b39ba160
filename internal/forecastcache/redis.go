package forecastcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "wastecast:forecast:"

// Redis shares cached forecasts between server replicas. Values are MessagePack.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisOptions configures the Redis backend
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedis connects to Redis and verifies the connection with PING
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	return &Redis{client: client, ttl: opts.TTL}, nil
}

func (c *Redis) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return decodeEntry(data)
}

func (c *Redis) Set(ctx context.Context, key string, entry *Entry) error {
	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *Redis) Backend() string {
	return "redis"
}

func (c *Redis) Close() error {
	return c.client.Close()
}
