package core

import "github.com/dkeye/huddle/internal/domain"

// Frame is a raw encoded message ready for the wire.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Event is one server-to-client message before encoding.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Notifier delivers events to a single connection. Implementations must not
// block: they are called while a room is locked.
type Notifier interface {
	Send(to domain.ConnID, ev Event) error
}
