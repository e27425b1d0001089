package orch

import (
	"context"
	"errors"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

func authorize(tx *app.Tx, conn domain.ConnID) error {
	if !tx.IsAdmin(conn) {
		return domain.ErrNotAuthorized
	}
	return nil
}

// asAdmin runs fn under the room lock once conn is confirmed as the admin.
// An unknown room is reported as not authorized.
func (o *Orchestrator) asAdmin(op string, roomID domain.RoomID, conn domain.ConnID, fn func(tx *app.Tx) error) error {
	if roomID == "" {
		return domain.ErrMissingRoomID
	}
	err := o.Rooms.Update(roomID, func(tx *app.Tx) error {
		if err := authorize(tx, conn); err != nil {
			return err
		}
		return fn(tx)
	})
	if errors.Is(err, domain.ErrRoomNotFound) {
		err = domain.ErrNotAuthorized
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
		log.Warn().Err(err).Str("module", "app.orch").Str("sid", string(conn)).Str("room", string(roomID)).Str("op", op).Msg("admin operation refused")
	}
	o.Metrics.AdminOp(op, outcome)
	return err
}

// Approve moves target from the pending queue into the room.
func (o *Orchestrator) Approve(ctx context.Context, roomID domain.RoomID, admin, target domain.ConnID) error {
	if target == "" {
		return domain.ErrMissingTarget
	}
	var (
		snapshot core.Admission
		muted    bool
	)
	err := o.asAdmin("approve", roomID, admin, func(tx *app.Tx) error {
		req, ok := tx.TakePending(target)
		if !ok {
			return domain.ErrUserNotFound
		}
		tx.AddParticipant(domain.User{ConnID: target, Username: req.Username})
		if tx.Settings.MuteAllOnEntry {
			muted = tx.SetAudio(target, false)
		}
		o.broadcast(tx.ConnIDs(target), core.EventUserJoined, core.NewMemberEvent(target, req.Username, o.now()))
		snapshot = admission(tx.Room, target)
		log.Info().Str("module", "app.orch").Str("sid", string(target)).Str("room", string(roomID)).Msg("approved")
		return nil
	})
	if err != nil {
		return err
	}

	snapshot.Messages = o.history(ctx, roomID)
	o.send(target, core.EventApprovalGranted, snapshot)
	if muted {
		o.send(target, core.EventMuteAll, struct{}{})
	}
	return nil
}

// Deny removes target from the pending queue. Its connection stays open.
func (o *Orchestrator) Deny(_ context.Context, roomID domain.RoomID, admin, target domain.ConnID) error {
	if target == "" {
		return domain.ErrMissingTarget
	}
	return o.asAdmin("deny", roomID, admin, func(tx *app.Tx) error {
		if _, ok := tx.TakePending(target); !ok {
			return domain.ErrUserNotFound
		}
		o.send(target, core.EventApprovalDenied, core.DeniedEvent{RoomID: roomID})
		log.Info().Str("module", "app.orch").Str("sid", string(target)).Str("room", string(roomID)).Msg("denied")
		return nil
	})
}

// UpdatePermissions records the flags and tells target about them. A target
// outside the room is ignored.
func (o *Orchestrator) UpdatePermissions(_ context.Context, roomID domain.RoomID, admin, target domain.ConnID, canAudio, canVideo bool) error {
	if target == "" {
		return domain.ErrMissingTarget
	}
	return o.asAdmin("update_permissions", roomID, admin, func(tx *app.Tx) error {
		if !tx.SetPermissions(target, canAudio, canVideo) {
			return nil
		}
		o.send(target, core.EventPermissionUpdate, core.PermissionEvent{CanAudio: canAudio, CanVideo: canVideo})
		return nil
	})
}

func (o *Orchestrator) MuteAll(_ context.Context, roomID domain.RoomID, admin domain.ConnID) error {
	return o.asAdmin("mute_all", roomID, admin, func(tx *app.Tx) error {
		tx.MuteAll()
		o.broadcast(tx.ConnIDs(""), core.EventMuteAll, struct{}{})
		return nil
	})
}

func (o *Orchestrator) UpdateSettings(_ context.Context, roomID domain.RoomID, admin domain.ConnID, settings domain.Settings) error {
	return o.asAdmin("update_settings", roomID, admin, func(tx *app.Tx) error {
		tx.Settings = settings
		o.broadcast(tx.ConnIDs(""), core.EventSettingsUpdated, settings)
		return nil
	})
}
