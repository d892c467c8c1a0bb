// internal/cache/notifier.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jason-s-yu/scoreroom/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Notifier publishes committed room events on a per-room channel so every
// server instance can fan them out to its websocket clients.
type Notifier struct {
	rdb *redis.Client
	log *logrus.Logger
}

func NewNotifier(rdb *redis.Client, logger *logrus.Logger) *Notifier {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Notifier{rdb: rdb, log: logger}
}

func (n *Notifier) Publish(ctx context.Context, ev models.RoomEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal room event: %w", err)
	}
	return n.rdb.Publish(ctx, roomChannel(ev.RoomID), data).Err()
}

// Subscribe streams events for roomID until ctx is done or the returned
// cancel func is called. Malformed messages are logged and skipped.
func (n *Notifier) Subscribe(ctx context.Context, roomID string) (<-chan models.RoomEvent, func(), error) {
	sub := n.rdb.Subscribe(ctx, roomChannel(roomID))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", roomID, err)
	}

	out := make(chan models.RoomEvent, 16)
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev models.RoomEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					n.log.WithError(err).WithField("room_id", roomID).Warn("dropping malformed room event")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, cancel, nil
}
