// Package store holds the persistence collaborators: chat history and the
// room archive. Both backends satisfy core.MessageStore and core.RoomArchive.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/huddle/internal/config"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DefaultHistoryLimit = 200

var ErrRecordNotFound = errors.New("room record not found")

type Store interface {
	core.MessageStore
	core.RoomArchive
	Room(ctx context.Context, roomID domain.RoomID) (domain.RoomRecord, error)
	Close() error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)

// Open builds the backend named by cfg.Driver. The redis backend is pinged
// before it is returned.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		log.Info().Str("module", "store").Int("history_limit", cfg.HistoryLimit).Msg("using memory store")
		return NewMemoryStore(cfg.HistoryLimit), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		log.Info().Str("module", "store").Str("addr", cfg.Redis.Addr).Msg("using redis store")
		return NewRedisStore(rdb, cfg.HistoryLimit, cfg.Redis.Retention), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
