package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dkeye/huddle/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix        = "huddle"
	DefaultRetention = 24 * time.Hour
)

// RedisStore keeps each room's history in a capped list and room records in
// hashes. Both keys of a room expire retention after the room closes.
type RedisStore struct {
	rdb       *redis.Client
	capacity  int64
	retention time.Duration
}

func NewRedisStore(rdb *redis.Client, capacity int, retention time.Duration) *RedisStore {
	if capacity <= 0 {
		capacity = DefaultHistoryLimit
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisStore{rdb: rdb, capacity: int64(capacity), retention: retention}
}

func messagesKey(roomID domain.RoomID) string {
	return fmt.Sprintf("%s:messages:%s", keyPrefix, roomID)
}

func roomKey(roomID domain.RoomID) string {
	return fmt.Sprintf("%s:rooms:%s", keyPrefix, roomID)
}

func (s *RedisStore) CreateMessage(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	if msg.RoomID == "" {
		return domain.ChatMessage{}, domain.ErrMissingRoomID
	}
	prepare(&msg)

	b, err := json.Marshal(msg)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("encode message: %w", err)
	}

	key := messagesKey(msg.RoomID)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, b)
		pipe.LTrim(ctx, key, -s.capacity, -1)
		return nil
	})
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("store message: %w", err)
	}
	return msg, nil
}

func (s *RedisStore) FindMessages(ctx context.Context, roomID domain.RoomID) ([]domain.ChatMessage, error) {
	if roomID == "" {
		return nil, domain.ErrMissingRoomID
	}
	raw, err := s.rdb.LRange(ctx, messagesKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	out := make([]domain.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg domain.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *RedisStore) RecordRoom(ctx context.Context, rec domain.RoomRecord) error {
	if rec.RoomID == "" {
		return domain.ErrMissingRoomID
	}
	settings, err := json.Marshal(rec.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	key := roomKey(rec.RoomID)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]any{
			"createdBy": rec.CreatedBy,
			"protected": strconv.FormatBool(rec.Protected),
			"settings":  string(settings),
			"createdAt": rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		pipe.HDel(ctx, key, "closedAt")
		// A reused room id must not inherit the expiry of its predecessor.
		pipe.Persist(ctx, key)
		pipe.Persist(ctx, messagesKey(rec.RoomID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("record room: %w", err)
	}
	return nil
}

func (s *RedisStore) CloseRoom(ctx context.Context, roomID domain.RoomID, at time.Time) error {
	key := roomKey(roomID)
	exists, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("close room: %w", err)
	}
	if exists == 0 {
		return nil
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "closedAt", at.UTC().Format(time.RFC3339Nano))
		pipe.Expire(ctx, key, s.retention)
		pipe.Expire(ctx, messagesKey(roomID), s.retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("close room: %w", err)
	}
	return nil
}

func (s *RedisStore) Room(ctx context.Context, roomID domain.RoomID) (domain.RoomRecord, error) {
	fields, err := s.rdb.HGetAll(ctx, roomKey(roomID)).Result()
	if err != nil {
		return domain.RoomRecord{}, fmt.Errorf("load room: %w", err)
	}
	if len(fields) == 0 {
		return domain.RoomRecord{}, ErrRecordNotFound
	}

	rec := domain.RoomRecord{RoomID: roomID, CreatedBy: fields["createdBy"]}
	rec.Protected, _ = strconv.ParseBool(fields["protected"])
	if err := json.Unmarshal([]byte(fields["settings"]), &rec.Settings); err != nil {
		return domain.RoomRecord{}, fmt.Errorf("decode settings: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["createdAt"]); err != nil {
		return domain.RoomRecord{}, fmt.Errorf("decode createdAt: %w", err)
	}
	if v, ok := fields["closedAt"]; ok {
		if rec.ClosedAt, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return domain.RoomRecord{}, fmt.Errorf("decode closedAt: %w", err)
		}
	}
	return rec, nil
}

func (s *RedisStore) Close() error {
	if err := s.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
