package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// envelope wraps events on the wire so a bridge can skip its own echoes.
type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisBridge relays feed events through a redis pub/sub channel so hubs in
// other processes observe the same mutations. Forward failures are logged
// and never propagated to the writer.
type RedisBridge struct {
	client  *redis.Client
	channel string
	origin  string
	hub     *Hub
	logger  *zap.Logger
}

// NewRedisBridge attaches a bridge to the hub.
func NewRedisBridge(client *redis.Client, channel string, hub *Hub, logger *zap.Logger) *RedisBridge {
	bridge := &RedisBridge{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		hub:     hub,
		logger:  logger,
	}
	hub.AttachBridge(bridge)
	return bridge
}

// Forward publishes the event to the redis channel, best effort.
func (b *RedisBridge) Forward(event Event) {
	payload, err := json.Marshal(envelope{Origin: b.origin, Event: event})
	if err != nil {
		b.logger.Error("feed bridge marshal failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.logger.Warn("feed bridge publish failed", zap.Error(err))
	}
}

// Run consumes events published by peer processes and fans them out to local
// subscribers. It returns when ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn("feed bridge received malformed event", zap.Error(err))
				continue
			}
			if env.Origin == b.origin {
				continue
			}
			b.hub.deliverAll(env.Event)
		}
	}
}
