package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/huddle/internal/app/orch"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) routes() map[string]handlerFunc {
	return map[string]handlerFunc{
		"create-room":                 ctl.handleCreateRoom,
		"join-room":                   ctl.handleJoin,
		"leave-room":                  ctl.handleLeave,
		"admin-approve-user":          ctl.handleApprove,
		"admin-deny-user":             ctl.handleDeny,
		"admin-update-permissions":    ctl.handleUpdatePermissions,
		"admin-mute-all-participants": ctl.handleMuteAll,
		"admin-update-settings":       ctl.handleUpdateSettings,
		"offer":                       ctl.relay(core.SignalOffer),
		"answer":                      ctl.relay(core.SignalAnswer),
		"ice-candidate":               ctl.relay(core.SignalICECandidate),
		"chat-message":                ctl.handleChat,
		"ping":                        ctl.handlePing,
		"whoami":                      ctl.handleWhoAmI,
	}
}

func (ctl *SignalWSController) handleCreateRoom(ctx context.Context, s *session, data json.RawMessage) any {
	var p struct {
		RoomID   domain.RoomID   `json:"roomId"`
		Username string          `json:"username"`
		Password string          `json:"password"`
		Settings domain.Settings `json:"settings"`
	}
	// Switches missing from the payload keep their defaults.
	p.Settings = domain.DefaultSettings()
	if err := decode(data, &p); err != nil {
		return failure(err)
	}
	if !ctl.Limiter.Allow(s.sid) {
		return failure(errRateLimited)
	}

	id, err := ctl.Orch.CreateRoom(ctx, orch.CreateRequest{
		RoomID:   p.RoomID,
		ConnID:   s.sid,
		Username: p.Username,
		Password: p.Password,
		Token:    s.token,
		Settings: p.Settings,
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(s.sid)).Msg("create-room failed")
		return failure(err)
	}
	return success("roomId", id)
}

type joinReply struct {
	Success bool `json:"success"`
	core.Admission
}

func (ctl *SignalWSController) handleJoin(ctx context.Context, s *session, data json.RawMessage) any {
	var p struct {
		RoomID   domain.RoomID `json:"roomId"`
		Username string        `json:"username"`
		Password string        `json:"password"`
	}
	if err := decode(data, &p); err != nil {
		return failure(err)
	}
	if !ctl.Limiter.Allow(s.sid) {
		return failure(errRateLimited)
	}

	log.Info().Str("module", "signal").Str("sid", string(s.sid)).Str("room_id", string(p.RoomID)).Msg("join")
	res, err := ctl.Orch.Join(ctx, orch.JoinRequest{
		RoomID:   p.RoomID,
		ConnID:   s.sid,
		Username: p.Username,
		Password: p.Password,
		Token:    s.token,
	})
	if err != nil {
		return failure(err)
	}
	if res.Status == orch.JoinPending {
		return reply{"success": false, "error": "waiting_approval", "message": "Waiting for admin approval"}
	}
	return joinReply{Success: true, Admission: res.Admission}
}

// handleLeave leaves the room; the connection stays open.
func (ctl *SignalWSController) handleLeave(ctx context.Context, s *session, data json.RawMessage) any {
	var p struct {
		RoomID domain.RoomID `json:"roomId"`
	}
	if err := decode(data, &p); err != nil {
		return failure(err)
	}
	log.Info().Str("module", "signal").Str("sid", string(s.sid)).Str("room_id", string(p.RoomID)).Msg("leave")
	if err := ctl.Orch.Leave(ctx, p.RoomID, s.sid); err != nil {
		return failure(err)
	}
	return success()
}
