// backend/pkg/stream/redis.go
package stream

import (
	"context"

	"github.com/go-redis/redis/v8"
)

const defaultMaxLen = 100000

type RedisStream struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisStream(addr, stream string) *RedisStream {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return NewRedisStreamWithClient(client, stream)
}

func NewRedisStreamWithClient(client *redis.Client, stream string) *RedisStream {
	if stream == "" {
		stream = "funnel:events"
	}
	return &RedisStream{
		client: client,
		stream: stream,
		maxLen: defaultMaxLen,
	}
}

// Publish appends the payload as a single "data" field, keyed by session.
func (s *RedisStream) Publish(ctx context.Context, key string, payload []byte) error {
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"key":  key,
			"data": string(payload),
		},
	}).Err()
}

func (s *RedisStream) Close() error {
	return s.client.Close()
}
