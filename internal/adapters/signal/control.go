package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/huddle/internal/core"
)

func (ctl *SignalWSController) handlePing(_ context.Context, s *session, _ json.RawMessage) any {
	ctl.sendJSON(s, core.Event{Type: core.EventPong, Data: struct{}{}})
	return success()
}
