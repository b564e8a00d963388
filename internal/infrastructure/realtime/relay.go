package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RelayChannel is the Redis pub/sub channel shared by every replica.
const RelayChannel = "docchat:rooms"

// Relay forwards room frames between replicas.
type Relay interface {
	Publish(ctx context.Context, conversationID string, frame []byte) error
	// Subscribe delivers frames published by other replicas until ctx ends.
	Subscribe(ctx context.Context, deliver func(conversationID string, frame []byte)) error
}

type relayed struct {
	Origin         string          `json:"origin"`
	ConversationID string          `json:"conversationId"`
	Frame          json.RawMessage `json:"frame"`
}

// RedisRelay implements Relay over Redis pub/sub.
type RedisRelay struct {
	client redis.UniversalClient
	origin string
	log    zerolog.Logger
}

// NewRedisRelay connects to redisURL and verifies the connection.
func NewRedisRelay(ctx context.Context, redisURL string, log zerolog.Logger) (*RedisRelay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisRelay(client, log), nil
}

func newRedisRelay(client redis.UniversalClient, log zerolog.Logger) *RedisRelay {
	return &RedisRelay{
		client: client,
		origin: uuid.NewString(),
		log:    log.With().Str("component", "redis-relay").Logger(),
	}
}

// Publish implements Relay.
func (r *RedisRelay) Publish(ctx context.Context, conversationID string, frame []byte) error {
	payload, err := json.Marshal(relayed{Origin: r.origin, ConversationID: conversationID, Frame: frame})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, RelayChannel, payload).Err()
}

// Subscribe implements Relay. Frames this replica published are skipped since they were
// already delivered locally.
func (r *RedisRelay) Subscribe(ctx context.Context, deliver func(conversationID string, frame []byte)) error {
	sub := r.client.Subscribe(ctx, RelayChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", RelayChannel, err)
	}
	r.log.Info().Str("channel", RelayChannel).Msg("room relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var in relayed
			if err := json.Unmarshal([]byte(msg.Payload), &in); err != nil {
				r.log.Warn().Err(err).Msg("discarding malformed relay payload")
				continue
			}
			if in.Origin == r.origin {
				continue
			}
			deliver(in.ConversationID, in.Frame)
		}
	}
}

// Ping checks the Redis connection.
func (r *RedisRelay) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Client exposes the underlying Redis client for other replica coordination.
func (r *RedisRelay) Client() redis.UniversalClient {
	return r.client
}

// Close releases the Redis client.
func (r *RedisRelay) Close() error {
	return r.client.Close()
}
