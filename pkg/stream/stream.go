// backend/pkg/stream/stream.go
package stream

import (
	"context"

	"chat-funnel/pkg/logger"
)

// Publisher mirrors accepted funnel events to an external stream.
// Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
	Close() error
}

type Options struct {
	Type         string
	RedisAddr    string
	RedisStream  string
	KafkaBrokers []string
	KafkaTopic   string
}

// New builds the publisher selected by opts.Type: redis, kafka or noop (default).
func New(opts Options, log *logger.Logger) Publisher {
	switch opts.Type {
	case "redis":
		log.Info("event stream enabled", "type", "redis", "addr", opts.RedisAddr, "stream", opts.RedisStream)
		return NewRedisStream(opts.RedisAddr, opts.RedisStream)
	case "kafka":
		if len(opts.KafkaBrokers) == 0 {
			log.Warn("kafka stream requested without brokers; using noop")
			return NewNoop()
		}
		log.Info("event stream enabled", "type", "kafka", "brokers", opts.KafkaBrokers, "topic", opts.KafkaTopic)
		return NewKafka(opts.KafkaBrokers, opts.KafkaTopic)
	case "", "noop":
		return NewNoop()
	default:
		log.Warn("unsupported event stream type; using noop", "type", opts.Type)
		return NewNoop()
	}
}
