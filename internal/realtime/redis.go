package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis pub/sub channel used when none is configured.
const DefaultChannel = "teamdesk:changes"

// envelope is the wire form of a change on the Redis channel.
type envelope struct {
	Origin string `json:"origin"`
	Change Change `json:"change"`
}

// Bridge extends a Hub across instances through Redis pub/sub. Local changes
// go to the local hub and to Redis; changes published by other instances are
// delivered to the local hub only.
type Bridge struct {
	hub     *Hub
	client  redis.UniversalClient
	channel string
	origin  string
}

// NewBridge creates a bridge with a fresh instance origin.
func NewBridge(hub *Hub, client redis.UniversalClient, channel string) *Bridge {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Bridge{
		hub:     hub,
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
	}
}

// Origin identifies this instance on the channel.
func (b *Bridge) Origin() string {
	return b.origin
}

// Publish delivers c locally, then forwards it to other instances. A Redis
// failure is logged and does not affect local delivery.
func (b *Bridge) Publish(ctx context.Context, c Change) {
	b.hub.Publish(ctx, c)

	payload, err := b.encode(c)
	if err != nil {
		slog.Error("failed to encode change", "error", err)
		return
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		slog.Error("failed to forward change to redis", "channel", b.channel, "error", err)
	}
}

// Run receives changes from other instances until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed so startup errors surface here.
	if _, err := sub.Receive(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return fmt.Errorf("subscribing to %s: %w", b.channel, err)
	}
	slog.Info("realtime bridge subscribed", "channel", b.channel, "origin", b.origin)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			b.deliver(ctx, []byte(msg.Payload))
		}
	}
}

func (b *Bridge) encode(c Change) ([]byte, error) {
	return json.Marshal(envelope{Origin: b.origin, Change: c})
}

// deliver hands a remote payload to the local hub, skipping this instance's own changes.
func (b *Bridge) deliver(ctx context.Context, payload []byte) bool {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		slog.Warn("ignoring malformed change message", "error", err)
		return false
	}
	if env.Origin == b.origin {
		return false
	}
	b.hub.Publish(ctx, env.Change)
	return true
}
