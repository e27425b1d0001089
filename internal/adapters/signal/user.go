package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

type whoAmI struct {
	SocketID domain.ConnID `json:"socketId"`
	RoomID   domain.RoomID `json:"roomId,omitempty"`
}

func (ctl *SignalWSController) handleWhoAmI(_ context.Context, s *session, _ json.RawMessage) any {
	resp := whoAmI{SocketID: s.sid}
	if roomID, ok := ctl.Orch.RoomOf(s.sid); ok {
		resp.RoomID = roomID
	}
	ctl.sendJSON(s, core.Event{Type: core.EventWhoAmI, Data: resp})
	return success("socketId", resp.SocketID, "roomId", resp.RoomID)
}
