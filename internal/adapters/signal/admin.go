package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/huddle/internal/domain"
)

type targetPayload struct {
	RoomID   domain.RoomID `json:"roomId"`
	SocketID domain.ConnID `json:"socketId"`
}

func (ctl *SignalWSController) handleApprove(ctx context.Context, s *session, data json.RawMessage) any {
	var p targetPayload
	if err := decode(data, &p); err != nil {
		return failure(err)
	}
	return result(ctl.Orch.Approve(ctx, p.RoomID, s.sid, p.SocketID))
}

func (ctl *SignalWSController) handleDeny(ctx context.Context, s *session, data json.RawMessage) any {
	var p targetPayload
	if err := decode(data, &p); err != nil {
		return failure(err)
	}
	return result(ctl.Orch.Deny(ctx, p.RoomID, s.sid, p.SocketID))
}

func (ctl *SignalWSController) handleUpdatePermissions(ctx context.Context, s *session, data json.RawMessage) any {
	var p struct {
		targetPayload
		CanAudio bool `json:"canAudio"`
		CanVideo bool `json:"canVideo"`
	}
	if err := decode(data, &p); err != nil {
		return failure(err)
	}
	return result(ctl.Orch.UpdatePermissions(ctx, p.RoomID, s.sid, p.SocketID, p.CanAudio, p.CanVideo))
}

func (ctl *SignalWSController) handleMuteAll(ctx context.Context, s *session, data json.RawMessage) any {
	var p struct {
		RoomID domain.RoomID `json:"roomId"`
	}
	if err := decode(data, &p); err != nil {
		return failure(err)
	}
	return result(ctl.Orch.MuteAll(ctx, p.RoomID, s.sid))
}

func (ctl *SignalWSController) handleUpdateSettings(ctx context.Context, s *session, data json.RawMessage) any {
	var p struct {
		RoomID   domain.RoomID   `json:"roomId"`
		Settings domain.Settings `json:"settings"`
	}
	if err := decode(data, &p); err != nil {
		return failure(err)
	}
	return result(ctl.Orch.UpdateSettings(ctx, p.RoomID, s.sid, p.Settings))
}

func result(err error) reply {
	if err != nil {
		return failure(err)
	}
	return success()
}
