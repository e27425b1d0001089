package orch

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

const MaxChatLength = 2000

// SendChat persists text under the sender's registered name and broadcasts
// it to the room, sender included.
func (o *Orchestrator) SendChat(ctx context.Context, roomID domain.RoomID, conn domain.ConnID, text string) (domain.ChatMessage, error) {
	if roomID == "" {
		return domain.ChatMessage{}, domain.ErrMissingRoomID
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ChatMessage{}, domain.ErrEmptyMessage
	}
	text = truncate(text, MaxChatLength)

	var username string
	err := o.Rooms.Update(roomID, func(tx *app.Tx) error {
		p, ok := tx.Participant(conn)
		if !ok {
			return domain.ErrNotParticipant
		}
		username = p.Username
		return nil
	})
	if err != nil {
		return domain.ChatMessage{}, err
	}

	msg, err := o.Messages.CreateMessage(ctx, domain.ChatMessage{
		RoomID:   roomID,
		Username: username,
		Text:     text,
	})
	if err != nil {
		o.Metrics.StoreFailure("create_message")
		log.Error().Err(err).Str("module", "app.orch").Str("room", string(roomID)).Msg("chat save failed")
		return domain.ChatMessage{}, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}

	_ = o.Rooms.Update(roomID, func(tx *app.Tx) error {
		o.broadcast(tx.ConnIDs(""), core.EventChatMessage, msg)
		return nil
	})
	o.Metrics.ChatMessage()
	return msg, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// History returns the stored chat of a room, oldest first.
func (o *Orchestrator) History(ctx context.Context, roomID domain.RoomID) ([]domain.ChatMessage, error) {
	if roomID == "" {
		return nil, domain.ErrMissingRoomID
	}
	msgs, err := o.Messages.FindMessages(ctx, roomID)
	if err != nil {
		o.Metrics.StoreFailure("find_messages")
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}
	return msgs, nil
}
