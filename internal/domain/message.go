package domain

import "time"

// ChatMessage is one persisted chat line of a room.
type ChatMessage struct {
	ID        string    `json:"id"`
	RoomID    RoomID    `json:"roomId"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomRecord is what the archive keeps about a room after it is created.
type RoomRecord struct {
	RoomID    RoomID    `json:"roomId"`
	CreatedBy string    `json:"createdBy"`
	Protected bool      `json:"protected"`
	Settings  Settings  `json:"adminControls"`
	CreatedAt time.Time `json:"createdAt"`
	ClosedAt  time.Time `json:"closedAt,omitempty"`
}
