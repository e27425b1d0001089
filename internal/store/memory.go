package store

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/huddle/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore keeps chat history and room records in process.
// Oldest messages of a room are evicted when capacity is exceeded.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[domain.RoomID][]domain.ChatMessage
	rooms    map[domain.RoomID]domain.RoomRecord
	capacity int
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultHistoryLimit
	}
	return &MemoryStore{
		messages: make(map[domain.RoomID][]domain.ChatMessage),
		rooms:    make(map[domain.RoomID]domain.RoomRecord),
		capacity: capacity,
	}
}

func (s *MemoryStore) CreateMessage(_ context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	if msg.RoomID == "" {
		return domain.ChatMessage{}, domain.ErrMissingRoomID
	}
	prepare(&msg)

	s.mu.Lock()
	defer s.mu.Unlock()

	roomMsgs := append(s.messages[msg.RoomID], msg)
	if len(roomMsgs) > s.capacity {
		roomMsgs = roomMsgs[len(roomMsgs)-s.capacity:]
	}
	s.messages[msg.RoomID] = roomMsgs
	return msg, nil
}

func (s *MemoryStore) FindMessages(_ context.Context, roomID domain.RoomID) ([]domain.ChatMessage, error) {
	if roomID == "" {
		return nil, domain.ErrMissingRoomID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Return a copy to prevent external mutation
	cpy := make([]domain.ChatMessage, len(s.messages[roomID]))
	copy(cpy, s.messages[roomID])
	return cpy, nil
}

func (s *MemoryStore) RecordRoom(_ context.Context, rec domain.RoomRecord) error {
	if rec.RoomID == "" {
		return domain.ErrMissingRoomID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[rec.RoomID] = rec
	return nil
}

func (s *MemoryStore) CloseRoom(_ context.Context, roomID domain.RoomID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	rec.ClosedAt = at
	s.rooms[roomID] = rec
	return nil
}

func (s *MemoryStore) Room(_ context.Context, roomID domain.RoomID) (domain.RoomRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.rooms[roomID]
	if !ok {
		return domain.RoomRecord{}, ErrRecordNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Close() error { return nil }

func prepare(msg *domain.ChatMessage) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
}
