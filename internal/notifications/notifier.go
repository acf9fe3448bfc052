package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/redis/go-redis/v9"
)

const roomChannelPattern = "chat:room:*"

// RoomChannel is the Redis channel a room's events travel on.
func RoomChannel(roomID uint) string {
	return fmt.Sprintf("chat:room:%d", roomID)
}

// Notifier publishes room events into Redis and subscribes to them.
type Notifier struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewNotifier wraps rdb, which may be nil; a nil client makes every call a no-op.
func NewNotifier(rdb *redis.Client, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{rdb: rdb, logger: logger}
}

// Enabled reports whether a Redis client is attached.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// PublishRoom sends payload to every instance subscribed to roomID.
func (n *Notifier) PublishRoom(ctx context.Context, roomID uint, payload []byte) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.Publish(ctx, RoomChannel(roomID), payload).Err()
}

// StartRoomSubscriber subscribes to every room channel and calls onMessage
// for each payload until ctx ends. The subscription is confirmed before it
// returns, so nothing published afterwards is missed.
func (n *Notifier) StartRoomSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, roomChannelPattern)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", roomChannelPattern, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							n.logger.Error("panic in room subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
