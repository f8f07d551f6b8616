package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"breederhub/api/internal/config"
	"github.com/redis/go-redis/v9"
)

// ConnectRedis opens the Redis client shared by the task queue and the service API, and
// verifies the connection.
func ConnectRedis(cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		ClientName:   clientName(cfg),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Ping(ctx, rdb); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	fmt.Printf("Successfully connected to Redis at %s (db %d)!\n", cfg.RedisAddr, cfg.RedisDB)
	return rdb, nil
}

// clientName shows up in CLIENT LIST, e.g. "breederhub-api".
func clientName(cfg *config.Config) string {
	name := strings.ToLower(strings.ReplaceAll(cfg.AppName, " ", ""))
	if name == "" {
		name = "breederhub"
	}
	if cfg.RunMode != "" {
		name += "-" + cfg.RunMode
	}
	return name
}

// Ping reports whether Redis answers.
func Ping(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return fmt.Errorf("redis client not initialised")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach Redis: %w", err)
	}
	return nil
}

// DisconnectRedis closes the Redis client connection.
func DisconnectRedis(client *redis.Client) error {
	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	fmt.Println("Redis connection closed.")
	return nil
}
