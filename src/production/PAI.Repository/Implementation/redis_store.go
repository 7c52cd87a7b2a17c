package implementation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
	interfaces "gitlab.com/plantai/plantai.server/src/production/PAI.Repository/Interfaces"
)

const redisBackend = "redis"

var _ interfaces.ReadingStore = (*RedisReadingStore)(nil)

// RedisReadingStore keeps the reading log as a Redis list of JSON documents,
// oldest at the head. RPUSH and LTRIM run in one MULTI/EXEC.
type RedisReadingStore struct {
	client   redis.UniversalClient
	key      string
	capacity int64
}

func NewRedisReadingStore(client redis.UniversalClient, key string, capacity int) *RedisReadingStore {
	return &RedisReadingStore{client: client, key: key, capacity: int64(logCapacity(capacity))}
}

func (s *RedisReadingStore) Append(ctx context.Context, reading models.SensorReading) error {
	b, err := json.Marshal(reading)
	if err != nil {
		return interfaces.NewStorageError(redisBackend, "append", fmt.Errorf("failed to marshal reading: %w", err))
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, s.key, b)
		pipe.LTrim(ctx, s.key, -s.capacity, -1)
		return nil
	})
	return interfaces.NewStorageError(redisBackend, "append", err)
}

func (s *RedisReadingStore) Latest(ctx context.Context) (*models.SensorReading, error) {
	b, err := s.client.LIndex(ctx, s.key, -1).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, interfaces.NewStorageError(redisBackend, "latest", err)
	}

	var reading models.SensorReading
	if err := json.Unmarshal(b, &reading); err != nil {
		return nil, interfaces.NewStorageError(redisBackend, "latest", fmt.Errorf("corrupt reading: %w", err))
	}
	return &reading, nil
}

func (s *RedisReadingStore) Ping(ctx context.Context) error {
	return interfaces.NewStorageError(redisBackend, "ping", s.client.Ping(ctx).Err())
}

func (s *RedisReadingStore) Close(ctx context.Context) error {
	return interfaces.NewStorageError(redisBackend, "close", s.client.Close())
}
