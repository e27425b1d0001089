package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

// relayPayload carries one negotiation message. A client supplied "from" is
// accepted on the wire but the server-known connection id is used instead.
type relayPayload struct {
	To        domain.ConnID   `json:"to"`
	From      string          `json:"from,omitempty"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

func (ctl *SignalWSController) relay(kind core.SignalKind) handlerFunc {
	return func(_ context.Context, s *session, data json.RawMessage) any {
		var p relayPayload
		if err := decode(data, &p); err != nil {
			return failure(err)
		}
		payload := p.SDP
		if kind == core.SignalICECandidate {
			payload = p.Candidate
		}
		return result(ctl.Orch.Relay(kind, s.sid, p.To, payload))
	}
}
