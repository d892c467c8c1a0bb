// internal/historian/reaper.go
package historian

import (
	"context"
	"time"

	"github.com/jason-s-yu/scoreroom/internal/store"
	"github.com/sirupsen/logrus"
)

// DefaultReapInterval is how often RunReaper checks for stale rooms.
const DefaultReapInterval = time.Minute

// ReapOnce deletes settled rooms idle since before now-ttl.
func ReapOnce(ctx context.Context, reaper store.Reaper, ttl time.Duration, now time.Time) (int, error) {
	return reaper.DeleteSettledBefore(ctx, now.Add(-ttl))
}

// RunReaper calls ReapOnce every interval until ctx is cancelled.
func RunReaper(ctx context.Context, reaper store.Reaper, ttl, interval time.Duration, log *logrus.Logger) {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := ReapOnce(ctx, reaper, ttl, now)
			if err != nil {
				log.WithError(err).Error("reaping settled rooms failed")
				continue
			}
			if n > 0 {
				log.Infof("reaped %d settled rooms", n)
			}
		}
	}
}
