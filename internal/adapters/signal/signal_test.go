package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/app/orch"
	"github.com/dkeye/huddle/internal/config"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testWSConfig = config.WSConfig{
	ReadLimit:  65536,
	PingPeriod: time.Second,
	PongWait:   2 * time.Second,
	WriteWait:  time.Second,
	SendBuffer: 64,
}

func newServer(t *testing.T, limiter *RoomRateLimiter) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemoryStore(50)
	reg := app.NewRegistry(app.SimplePolicy{})
	o := &orch.Orchestrator{
		Rooms:    app.NewRoomRegistry(),
		Notifier: reg,
		Messages: st,
		Archive:  st,
	}
	ctl := NewSignalWSController(o, reg, limiter, nil, testWSConfig)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set(ClientTokenKey, c.Query("token"))
		ctl.HandleSignal(context.Background(), c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

type frame struct {
	Type string          `json:"type"`
	Ack  *int64          `json:"ack"`
	Data json.RawMessage `json:"data"`
}

type client struct {
	t       *testing.T
	ws      *websocket.Conn
	id      domain.ConnID
	nextAck int64
	backlog []frame
}

func dial(t *testing.T, srv *httptest.Server, token string) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	c := &client{t: t, ws: ws}
	var hello struct {
		SocketID domain.ConnID `json:"socketId"`
	}
	c.decode(c.expect("connected"), &hello)
	require.NotEmpty(t, hello.SocketID)
	c.id = hello.SocketID
	return c
}

func (c *client) read() frame {
	c.t.Helper()
	require.NoError(c.t, c.ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(c.t, c.ws.ReadJSON(&f))
	return f
}

// expect returns the next frame of type typ, keeping the others for later.
func (c *client) expect(typ string) frame {
	c.t.Helper()
	for i, f := range c.backlog {
		if f.Type == typ {
			c.backlog = append(c.backlog[:i], c.backlog[i+1:]...)
			return f
		}
	}
	for {
		f := c.read()
		if f.Type == typ {
			return f
		}
		c.backlog = append(c.backlog, f)
	}
}

func (c *client) emit(typ string, data any) {
	c.t.Helper()
	require.NoError(c.t, c.ws.WriteJSON(map[string]any{"type": typ, "data": data}))
}

func (c *client) request(typ string, data any) map[string]any {
	c.t.Helper()
	c.nextAck++
	id := c.nextAck
	require.NoError(c.t, c.ws.WriteJSON(map[string]any{"type": typ, "ack": id, "data": data}))
	for {
		f := c.read()
		if f.Type == "ack" && f.Ack != nil && *f.Ack == id {
			var out map[string]any
			c.decode(f, &out)
			return out
		}
		c.backlog = append(c.backlog, f)
	}
}

func (c *client) decode(f frame, v any) {
	c.t.Helper()
	require.NoError(c.t, json.Unmarshal(f.Data, v))
}

func TestPing(t *testing.T) {
	srv := newServer(t, nil)
	c := dial(t, srv, "tok")

	assert.Equal(t, true, c.request("ping", nil)["success"])
	c.expect("pong")

	who := c.request("whoami", nil)
	assert.Equal(t, string(c.id), who["socketId"])
}

func TestRoomLifecycleOverWebSocket(t *testing.T) {
	srv := newServer(t, nil)

	creator := dial(t, srv, "tok-alice")
	created := creator.request("create-room", map[string]any{
		"roomId":   "town-hall",
		"username": "alice",
		"settings": map[string]any{"requireApproval": true, "allowScreenShare": true},
	})
	require.Equal(t, true, created["success"])
	assert.Equal(t, "town-hall", created["roomId"])

	alice := dial(t, srv, "tok-alice")
	joined := alice.request("join-room", map[string]any{"roomId": "town-hall", "username": "alice"})
	require.Equal(t, true, joined["success"], joined)
	assert.Equal(t, true, joined["isAdmin"])
	assert.Equal(t, "alice", joined["adminUsername"])

	bob := dial(t, srv, "tok-bob")
	waiting := bob.request("join-room", map[string]any{"roomId": "town-hall", "username": "bob"})
	assert.Equal(t, false, waiting["success"])
	assert.Equal(t, "waiting_approval", waiting["error"])

	var pending struct {
		SocketID domain.ConnID `json:"socketId"`
		Username string        `json:"username"`
	}
	alice.decode(alice.expect("pending-approval"), &pending)
	assert.Equal(t, bob.id, pending.SocketID)
	assert.Equal(t, "bob", pending.Username)

	denied := bob.request("admin-mute-all-participants", map[string]any{"roomId": "town-hall"})
	assert.Equal(t, "not_authorized", denied["error"])

	approved := alice.request("admin-approve-user", map[string]any{"roomId": "town-hall", "socketId": bob.id})
	require.Equal(t, true, approved["success"], approved)

	var granted struct {
		RoomID       domain.RoomID `json:"roomId"`
		Participants []domain.User `json:"participants"`
		IsAdmin      bool          `json:"isAdmin"`
	}
	bob.decode(bob.expect("approval-granted"), &granted)
	assert.Equal(t, domain.RoomID("town-hall"), granted.RoomID)
	assert.Len(t, granted.Participants, 2)
	assert.False(t, granted.IsAdmin)
	alice.expect("user-joined")

	relayed := bob.request("offer", map[string]any{
		"to":   alice.id,
		"from": "spoofed",
		"sdp":  map[string]any{"type": "offer", "sdp": "v=0\r\n"},
	})
	assert.Equal(t, true, relayed["success"])
	var offer struct {
		From  domain.ConnID   `json:"from"`
		Offer json.RawMessage `json:"offer"`
	}
	alice.decode(alice.expect("offer"), &offer)
	assert.Equal(t, bob.id, offer.From)
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0\r\n"}`, string(offer.Offer))

	sent := bob.request("chat-message", map[string]any{"roomId": "town-hall", "username": "mallory", "text": "hello"})
	require.Equal(t, true, sent["success"], sent)
	msg := sent["message"].(map[string]any)
	assert.Equal(t, "bob", msg["username"])
	alice.expect("chat-message")

	require.NoError(t, bob.ws.Close())
	var left struct {
		SocketID domain.ConnID `json:"socketId"`
	}
	alice.decode(alice.expect("user-left"), &left)
	assert.Equal(t, bob.id, left.SocketID)
}

func TestCreateRoomPartialSettingsKeepDefaults(t *testing.T) {
	srv := newServer(t, nil)

	creator := dial(t, srv, "tok-alice")
	created := creator.request("create-room", map[string]any{
		"roomId":   "studio",
		"username": "alice",
		"settings": map[string]any{"muteAllOnEntry": true},
	})
	require.Equal(t, true, created["success"], created)

	alice := dial(t, srv, "tok-alice")
	joined := alice.request("join-room", map[string]any{"roomId": "studio", "username": "alice"})
	require.Equal(t, true, joined["success"], joined)
	settings := joined["roomSettings"].(map[string]any)
	assert.Equal(t, true, settings["allowScreenShare"])
	assert.Equal(t, true, settings["muteAllOnEntry"])
	assert.Equal(t, false, settings["requireApproval"])
}

func TestProtocolErrors(t *testing.T) {
	srv := newServer(t, nil)
	c := dial(t, srv, "tok")

	require.NoError(t, c.ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var bad map[string]any
	c.decode(c.expect("error"), &bad)
	assert.Equal(t, "bad_payload", bad["error"])

	assert.Equal(t, "unknown_event", c.request("teleport", nil)["error"])
	assert.Equal(t, "missing_room_id", c.request("join-room", map[string]any{"username": "x"})["error"])
	assert.Equal(t, "missing_target", c.request("ice-candidate", map[string]any{"candidate": "c"})["error"])
	assert.Equal(t, "room_not_found", c.request("leave-room", map[string]any{"roomId": "nowhere"})["error"])
	assert.Equal(t, "bad_payload", c.request("join-room", "not an object")["error"])

	c.emit("chat-message", map[string]any{"roomId": "nowhere", "text": "hi"})
	var chatErr map[string]any
	c.decode(c.expect("error"), &chatErr)
	assert.Equal(t, "room_not_found", chatErr["error"])
	assert.Equal(t, "chat-message", chatErr["type"])
}

func TestRateLimitedJoins(t *testing.T) {
	srv := newServer(t, NewRoomRateLimiter(2, time.Minute))
	c := dial(t, srv, "tok")

	for range 2 {
		res := c.request("join-room", map[string]any{"roomId": "r", "username": "alice"})
		require.Equal(t, true, res["success"], res)
	}
	assert.Equal(t, "rate_limited", c.request("join-room", map[string]any{"roomId": "r", "username": "alice"})["error"])
}
