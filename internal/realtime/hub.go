// internal/realtime/hub.go

// Package realtime fans committed room events out to in-process subscribers.
package realtime

import (
	"context"
	"sync"

	"github.com/jason-s-yu/scoreroom/internal/models"
	"github.com/sirupsen/logrus"
)

// subscriberBuffer is how many events a slow subscriber may fall behind by
// before events are dropped for it.
const subscriberBuffer = 16

type subscriber struct {
	out chan models.RoomEvent
}

// Hub is a single-process room event broadcaster. It satisfies the same
// Publish/Subscribe shape as the Redis notifier.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
	log  *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{subs: make(map[string]map[*subscriber]struct{}), log: logger}
}

// Publish delivers ev to every subscriber of its room without blocking.
func (h *Hub) Publish(ctx context.Context, ev models.RoomEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[ev.RoomID] {
		select {
		case s.out <- ev:
		default:
			h.log.WithFields(logrus.Fields{"room_id": ev.RoomID, "type": ev.Type}).Warn("subscriber full, dropped room event")
		}
	}
	return nil
}

// Subscribe registers for roomID's events. The channel closes once ctx is done
// or cancel is called.
func (h *Hub) Subscribe(ctx context.Context, roomID string) (<-chan models.RoomEvent, func(), error) {
	s := &subscriber{out: make(chan models.RoomEvent, subscriberBuffer)}
	h.mu.Lock()
	if h.subs[roomID] == nil {
		h.subs[roomID] = make(map[*subscriber]struct{})
	}
	h.subs[roomID][s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[roomID], s)
			if len(h.subs[roomID]) == 0 {
				delete(h.subs, roomID)
			}
			close(s.out)
			h.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return s.out, cancel, nil
}

// Subscribers reports how many subscribers roomID has.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[roomID])
}
