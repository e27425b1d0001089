package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// envelope is the frame format in both directions.
type envelope struct {
	Type string          `json:"type"`
	Ack  *int64          `json:"ack,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ackFrame struct {
	Type string `json:"type"`
	Ack  int64  `json:"ack"`
	Data any    `json:"data"`
}

type handlerFunc func(ctx context.Context, s *session, data json.RawMessage) any

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(ctl.cfg.WriteWait))
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, s *session) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(s.sid)).Msg("readPump closing")
		cancel()
		ctl.Registry.Unbind(s.sid)
		ctl.Orch.Disconnect(context.WithoutCancel(ctx), s.sid)
		ctl.Limiter.Forget(s.sid)
		s.conn.Close()
		ctl.Metrics.ConnClosed()
	}()

	c := s.conn.conn
	c.SetReadLimit(ctl.cfg.ReadLimit)
	_ = c.SetReadDeadline(time.Now().Add(ctl.cfg.PongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(ctl.cfg.PongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(s.sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", string(s.sid)).Msg("readPump read error")
				}
				return
			}
			ctl.handleSignal(ctx, s, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, s *session, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(s.sid)).Msg("bad json")
		ctl.sendError(s, "", errBadPayload)
		return
	}

	h, ok := ctl.handlers[env.Type]
	if !ok {
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.respond(s, env, failure(errUnknownEvent))
		return
	}
	ctl.respond(s, env, h(ctx, s, env.Data))
}

// respond acks the request when the client asked for it. Without an ack id
// only failures are reported, as an error event.
func (ctl *SignalWSController) respond(s *session, env envelope, result any) {
	if env.Ack != nil {
		ctl.sendJSON(s, ackFrame{Type: core.EventAck, Ack: *env.Ack, Data: result})
		return
	}
	if r, ok := result.(reply); ok && r["success"] == false {
		ctl.sendJSON(s, core.Event{Type: core.EventError, Data: reply{"type": env.Type, "error": r["error"]}})
	}
}

func (ctl *SignalWSController) sendError(s *session, typ string, err error) {
	ctl.sendJSON(s, core.Event{Type: core.EventError, Data: reply{"type": typ, "error": errorCode(err)}})
}

func (ctl *SignalWSController) sendJSON(s *session, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := s.conn.TrySend(b); errors.Is(err, app.ErrBackpressure) {
		log.Warn().Str("module", "signal").Str("sid", string(s.sid)).Msg("reply dropped, kicking slow connection")
		ctl.Registry.Cancel(s.sid)
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errBadPayload
	}
	return nil
}
