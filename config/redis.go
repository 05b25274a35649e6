package config

// Redis backs the auth rate limiter. When the server cannot be reached the
// constructor returns nil and the limiter degrades to a passthrough.

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a client from cfg and pings it with a short timeout.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("⚠️ Redis unavailable at %s, rate limiting disabled: %v", cfg.Addr, err)
		_ = client.Close()
		return nil
	}
	log.Printf("✅ Redis connected at %s", cfg.Addr)
	return client
}
