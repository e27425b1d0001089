package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrConnNotFound = errors.New("connection not found")
	ErrBackpressure = errors.New("backpressure")
)

type sessionEntry struct {
	Signal core.SignalConnection
	Cancel context.CancelFunc
}

// Registry maps live connection ids to their transport. It is the unicast
// primitive every room operation sends through.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.ConnID]*sessionEntry
	policy   Policy
}

func NewRegistry(policy Policy) *Registry {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Registry{
		sessions: make(map[domain.ConnID]*sessionEntry),
		policy:   policy,
	}
}

func (r *Registry) Bind(sid domain.ConnID, sc core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{Signal: sc, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound signal")
}

func (r *Registry) Unbind(sid domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
}

func (r *Registry) Has(sid domain.ConnID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[sid]
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Send encodes ev and queues it on the connection without blocking.
func (r *Registry) Send(to domain.ConnID, ev core.Event) error {
	r.mu.RLock()
	e, ok := r.sessions[to]
	r.mu.RUnlock()
	if !ok {
		return ErrConnNotFound
	}

	b, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.registry").Str("type", ev.Type).Msg("send marshal")
		return err
	}
	if err := e.Signal.TrySend(b); err != nil {
		r.onSendFailure(to, err)
		return err
	}
	return nil
}

func (r *Registry) onSendFailure(sid domain.ConnID, err error) {
	if !errors.Is(err, ErrBackpressure) {
		return
	}
	switch r.policy.OnBackPressure(sid) {
	case KickMember:
		log.Warn().Str("module", "app.registry").Str("sid", string(sid)).Msg("slow connection, kicking")
		r.Cancel(sid)
	case MarkSlow, DropFrame, NoAction:
	}
}

// Cancel stops the pumps of a connection; its read loop then runs the
// regular disconnect path.
func (r *Registry) Cancel(sid domain.ConnID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
