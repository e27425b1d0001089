package orch

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/metrics"
	"github.com/rs/zerolog/log"
)

var ErrPersistenceFailed = errors.New("persistence failed")

// Orchestrator runs every room operation. Room state is only touched inside
// RoomRegistry callbacks; store calls happen after the room lock is released.
type Orchestrator struct {
	Rooms    *app.RoomRegistry
	Notifier core.Notifier
	Messages core.MessageStore
	Archive  core.RoomArchive
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) send(to domain.ConnID, typ string, data any) {
	if err := o.Notifier.Send(to, core.Event{Type: typ, Data: data}); err != nil {
		log.Debug().Err(err).Str("module", "app.orch").Str("sid", string(to)).Str("type", typ).Msg("send skipped")
	}
}

func (o *Orchestrator) broadcast(to []domain.ConnID, typ string, data any) {
	for _, sid := range to {
		o.send(sid, typ, data)
	}
}

// history degrades to an empty list when the store fails.
func (o *Orchestrator) history(ctx context.Context, roomID domain.RoomID) []domain.ChatMessage {
	if o.Messages == nil {
		return []domain.ChatMessage{}
	}
	msgs, err := o.Messages.FindMessages(ctx, roomID)
	if err != nil {
		o.Metrics.StoreFailure("find_messages")
		log.Error().Err(err).Str("module", "app.orch").Str("room", string(roomID)).Msg("history fetch failed")
		return []domain.ChatMessage{}
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	return msgs
}

func (o *Orchestrator) recordRoom(ctx context.Context, rec domain.RoomRecord) {
	o.Metrics.SetRooms(o.Rooms.Len())
	if o.Archive == nil {
		return
	}
	if err := o.Archive.RecordRoom(ctx, rec); err != nil {
		o.Metrics.StoreFailure("record_room")
		log.Error().Err(err).Str("module", "app.orch").Str("room", string(rec.RoomID)).Msg("record room failed")
	}
}

func (o *Orchestrator) closeRooms(ctx context.Context, ids []domain.RoomID) {
	if len(ids) == 0 {
		return
	}
	o.Metrics.SetRooms(o.Rooms.Len())
	if o.Archive == nil {
		return
	}
	at := o.now()
	for _, id := range ids {
		if err := o.Archive.CloseRoom(ctx, id, at); err != nil {
			o.Metrics.StoreFailure("close_room")
			log.Error().Err(err).Str("module", "app.orch").Str("room", string(id)).Msg("close room failed")
		}
	}
}
