package health

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	config "gitlab.com/plantai/plantai.server/src/production/PAI.Config"
)

// ConnectRedis returns a single-node or cluster client depending on the address count
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:       cfg.Addrs,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to ping Redis: %w", err)
	}
	return client, nil
}
