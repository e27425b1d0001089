package core

import (
	"context"
	"time"

	"github.com/dkeye/huddle/internal/domain"
)

// RoomInfo is a read-only view for APIs (no password, no transport fields).
type RoomInfo struct {
	ID              domain.RoomID `json:"roomId"`
	MemberCount     int           `json:"participants"`
	PendingCount    int           `json:"pending"`
	Protected       bool          `json:"protected"`
	RequireApproval bool          `json:"requireApproval"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// MessageStore is the chat persistence collaborator.
type MessageStore interface {
	// FindMessages returns the history of a room, oldest first.
	FindMessages(ctx context.Context, roomID domain.RoomID) ([]domain.ChatMessage, error)
	// CreateMessage stores msg, assigning ID and Timestamp when unset.
	CreateMessage(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error)
}

// RoomArchive keeps durable records of rooms that were created.
type RoomArchive interface {
	RecordRoom(ctx context.Context, rec domain.RoomRecord) error
	CloseRoom(ctx context.Context, roomID domain.RoomID, at time.Time) error
}
