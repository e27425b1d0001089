package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/huddle/internal/domain"
)

// handleChat ignores the username in the payload; messages carry the name
// the sender joined with.
func (ctl *SignalWSController) handleChat(ctx context.Context, s *session, data json.RawMessage) any {
	var p struct {
		RoomID domain.RoomID `json:"roomId"`
		Text   string        `json:"text"`
	}
	if err := decode(data, &p); err != nil {
		return failure(err)
	}
	if !ctl.Limiter.Allow(s.sid) {
		return failure(errRateLimited)
	}
	msg, err := ctl.Orch.SendChat(ctx, p.RoomID, s.sid, p.Text)
	if err != nil {
		return failure(err)
	}
	return success("message", msg)
}
