package orch

import (
	"encoding/json"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// Relay forwards a negotiation message to target. Rooms are not consulted and
// a target that is gone is not an error for the sender.
func (o *Orchestrator) Relay(kind core.SignalKind, from, target domain.ConnID, payload json.RawMessage) error {
	if target == "" {
		return domain.ErrMissingTarget
	}
	ev := core.Event{
		Type: string(kind),
		Data: core.SignalEvent{Kind: kind, From: from, Payload: payload},
	}
	if err := o.Notifier.Send(target, ev); err != nil {
		o.Metrics.SignalDropped(string(kind))
		log.Debug().Err(err).Str("module", "app.orch").Str("sid", string(from)).Str("to", string(target)).Str("kind", string(kind)).Msg("signal dropped")
		return nil
	}
	o.Metrics.SignalRelayed(string(kind))
	return nil
}
