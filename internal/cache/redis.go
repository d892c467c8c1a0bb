// internal/cache/redis.go

// Package cache holds the Redis-backed pieces: a room store built on
// WATCH/MULTI, the audit queue drained by the historian, and the realtime
// room event channel.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis opens a client for addr/db and pings it.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func roomKey(id string) string                { return "room:" + id }
func historyKey(id string) string             { return "history:" + id }
func playerHistoryKey(identity string) string { return "history:player:" + identity }
func auditKey(roomID string) string           { return "audit:" + roomID }
func profileKey(identity string) string       { return "profile:" + identity }
func userKey(email string) string             { return "user:" + email }
func roomChannel(roomID string) string        { return "room:" + roomID + ":events" }

// settledRoomsKey is a sorted set of settled room ids scored by last activity.
const settledRoomsKey = "rooms:settled"
