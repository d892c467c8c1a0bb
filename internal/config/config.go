// internal/config/config.go

// Package config reads service settings from the environment. A .env file in
// the working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// StoreKind selects the backend that holds rooms, history, audit and profiles.
type StoreKind string

const (
	StoreMemory   StoreKind = "memory"
	StorePostgres StoreKind = "postgres"
	StoreRedis    StoreKind = "redis"
)

// Postgres holds the connection settings for the pgx pool.
type Postgres struct {
	User     string
	Password string
	Host     string
	Port     string
	Database string
}

// URL renders the settings as a postgres:// connection string.
func (p Postgres) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", p.User, p.Password, p.Host, p.Port, p.Database)
}

// Redis holds the go-redis client settings.
type Redis struct {
	Addr string
	DB   int
}

type Config struct {
	Port       string
	Store      StoreKind
	Postgres   Postgres
	Redis      Redis
	AuditQueue string

	TxRetries         int
	SideEffectTimeout time.Duration

	HistorianBatchSize int
	HistorianFlush     time.Duration
	SettledRoomTTL     time.Duration
}

// Load reads every setting, applying defaults for unset variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Store: StoreKind(getEnv("ROOM_STORE", string(StoreMemory))),
		Postgres: Postgres{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Database: os.Getenv("PG_DATABASE"),
		},
		Redis: Redis{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
			DB:   getEnvInt("REDIS_DB", 0),
		},
		AuditQueue:         getEnv("AUDIT_QUEUE_NAME", "scoreroom_audit"),
		TxRetries:          getEnvInt("ROOM_TX_RETRIES", 5),
		SideEffectTimeout:  time.Duration(getEnvInt("AUDIT_TIMEOUT_MS", 2000)) * time.Millisecond,
		HistorianBatchSize: getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		HistorianFlush:     time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
		SettledRoomTTL:     time.Duration(getEnvInt("SETTLED_ROOM_TTL_SEC", 86400)) * time.Second,
	}
	switch cfg.Store {
	case StoreMemory, StorePostgres, StoreRedis:
	default:
		return nil, fmt.Errorf("unknown ROOM_STORE %q", cfg.Store)
	}
	if cfg.TxRetries <= 0 {
		return nil, fmt.Errorf("ROOM_TX_RETRIES must be positive, got %d", cfg.TxRetries)
	}
	return cfg, nil
}

// RedisConfigured reports whether REDIS_ADDR was set explicitly.
func RedisConfigured() bool {
	return os.Getenv("REDIS_ADDR") != ""
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt parses an environment variable as an integer, else returns def.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
