package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const relayChannelPrefix = "room:"

// relayFrame is what travels over Redis. Origin lets an instance skip its own
// publications, which it has already delivered locally.
type relayFrame struct {
	Origin string          `json:"origin"`
	Except string          `json:"except,omitempty"`
	Data   json.RawMessage `json:"data"`
}

// RedisRelay fans room broadcasts out to other instances over Redis pub/sub.
type RedisRelay struct {
	client *redis.Client
	hub    *Hub
	origin string
}

func NewRedisRelay(client *redis.Client, hub *Hub) *RedisRelay {
	return &RedisRelay{
		client: client,
		hub:    hub,
		origin: uuid.New().String(),
	}
}

func (r *RedisRelay) Publish(ctx context.Context, roomID, except string, data []byte) error {
	payload, err := json.Marshal(relayFrame{Origin: r.origin, Except: except, Data: data})
	if err != nil {
		return errors.Wrap(err, "encode relay frame")
	}
	if err := r.client.Publish(ctx, relayChannelPrefix+roomID, payload).Err(); err != nil {
		return errors.Wrapf(err, "publish to room %s", roomID)
	}
	return nil
}

// Run delivers broadcasts published by other instances to local room members
// until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, relayChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return errors.Wrap(err, "subscribe to room relay")
	}
	slog.Info("Room relay subscribed", "pattern", relayChannelPrefix+"*", "origin", r.origin)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.deliver(msg)
		}
	}
}

func (r *RedisRelay) deliver(msg *redis.Message) {
	var frame relayFrame
	if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
		slog.Error("Failed to decode relay frame", "channel", msg.Channel, "error", err)
		return
	}
	if frame.Origin == r.origin {
		return
	}

	roomID := strings.TrimPrefix(msg.Channel, relayChannelPrefix)
	delivered := r.hub.Emit(roomID, frame.Data, frame.Except)
	slog.Debug("Relayed event delivered", "room", roomID, "delivered", delivered)
}
