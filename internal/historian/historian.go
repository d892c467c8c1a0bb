// internal/historian/historian.go

// Package historian persists queued audit records in batches and reaps
// settled rooms once they have been idle long enough.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jason-s-yu/scoreroom/internal/cache"
	"github.com/jason-s-yu/scoreroom/internal/models"
	"github.com/jason-s-yu/scoreroom/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// popTimeout bounds each BLPop so cancellation and timed flushes are noticed.
const popTimeout = 3 * time.Second

// Options configures a Service.
type Options struct {
	Queue      string
	BatchSize  int
	FlushDelay time.Duration
	Logger     *logrus.Logger
}

// Service drains the audit queue into sink.
type Service struct {
	rdb        *redis.Client
	queue      string
	sink       store.AuditLog
	batchSize  int
	flushDelay time.Duration
	log        *logrus.Logger

	batchMu sync.Mutex
	batch   []models.AuditEntry
}

func New(rdb *redis.Client, sink store.AuditLog, opts Options) *Service {
	if opts.Queue == "" {
		opts.Queue = cache.DefaultQueueName
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Service{
		rdb:        rdb,
		queue:      opts.Queue,
		sink:       sink,
		batchSize:  opts.BatchSize,
		flushDelay: opts.FlushDelay,
		log:        opts.Logger,
		batch:      make([]models.AuditEntry, 0, opts.BatchSize),
	}
}

// Run pops records until ctx is cancelled, then flushes what is pending.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()
	s.log.WithField("queue", s.queue).Info("historian started")

	for {
		select {
		case <-ctx.Done():
			return s.flush(context.WithoutCancel(ctx))
		case <-ticker.C:
			if err := s.flush(ctx); err != nil {
				s.log.WithError(err).Error("timed flush failed")
			}
		default:
			timeout := popTimeout
			if s.flushDelay < timeout {
				timeout = s.flushDelay
			}
			res, err := s.rdb.BLPop(ctx, timeout, s.queue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					s.log.WithError(err).Error("BLPop failed")
				}
				continue
			}
			if len(res) < 2 {
				continue
			}
			// res[0] is the queue name; res[1] the payload.
			if err := s.Handle(ctx, res[1]); err != nil {
				s.log.WithError(err).Error("failed to handle audit record")
			}
		}
	}
}

// Handle applies one queued record. Appends accumulate until the batch is
// full; a purge first flushes so earlier appends for the room are not left
// behind.
func (s *Service) Handle(ctx context.Context, payload string) error {
	var rec cache.AuditRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return fmt.Errorf("invalid audit record: %w", err)
	}

	switch rec.Op {
	case cache.OpAppend:
		s.batchMu.Lock()
		s.batch = append(s.batch, rec.Entries...)
		full := len(s.batch) >= s.batchSize
		s.batchMu.Unlock()
		if full {
			return s.flush(ctx)
		}
		return nil
	case cache.OpPurge:
		if err := s.flush(ctx); err != nil {
			return err
		}
		if err := s.sink.PurgeAudit(ctx, rec.RoomID); err != nil {
			return fmt.Errorf("purge %s: %w", rec.RoomID, err)
		}
		s.log.WithField("room_id", rec.RoomID).Debug("purged audit")
		return nil
	default:
		return fmt.Errorf("unknown audit op %q", rec.Op)
	}
}

// Pending is the number of buffered entries.
func (s *Service) Pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch)
}

// flush writes the buffered entries in one call. On failure the entries are
// dropped and logged; audit is best-effort.
func (s *Service) flush(ctx context.Context) error {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return nil
	}
	pending := make([]models.AuditEntry, len(s.batch))
	copy(pending, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	if err := s.sink.AppendAudit(ctx, pending...); err != nil {
		return fmt.Errorf("flush of %d entries: %w", len(pending), err)
	}
	s.log.Debugf("flushed %d audit entries", len(pending))
	return nil
}
