package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/huddle/internal/adapters/signal"
	"github.com/dkeye/huddle/internal/app/orch"
	"github.com/dkeye/huddle/internal/config"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const (
	sessionName    = "HuddleSessions"
	clientTokenKey = "ct"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware gives every browser a stable token kept in its
// session cookie. The token is what lets a room admin reclaim the room after
// a reload.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		token, _ := sess.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			sess.Set(clientTokenKey, token)
			if err := sess.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("session save")
			}
		}
		c.Set(signal.ClientTokenKey, token)
		c.Next()
	}
}

type Deps struct {
	Orch       *orch.Orchestrator
	Signal     *signal.SignalWSController
	Metrics    *metrics.Metrics
	ICEServers []webrtc.ICEServer
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type"},
			AllowCredentials: true,
		}))
	}

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   3600 * 24 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &handlers{orch: deps.Orch, iceServers: deps.ICEServers}
	api := r.Group("/api")
	api.GET("/health", h.health)
	api.GET("/rooms", h.listRooms)
	api.GET("/rooms/:id", h.getRoom)
	api.GET("/rooms/:id/messages", h.roomMessages)
	api.GET("/ice-servers", h.iceServersHandler)
	api.GET("/ws", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("token", c.GetString(signal.ClientTokenKey)).Msg("ws signal endpoint hit")
		deps.Signal.HandleSignal(ctx, c)
	})

	return r
}

type handlers struct {
	orch       *orch.Orchestrator
	iceServers []webrtc.ICEServer
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive", "rooms": h.orch.Rooms.Len()})
}

// listRooms shows only rooms anyone may enter. The id of a protected room is
// its invitation and is never listed.
func (h *handlers) listRooms(c *gin.Context) {
	out := make([]core.RoomInfo, 0)
	for _, info := range h.orch.Rooms.List() {
		if isPublic(info) {
			out = append(out, info)
		}
	}
	c.JSON(http.StatusOK, out)
}

func isPublic(info core.RoomInfo) bool {
	return !info.Protected && !info.RequireApproval
}

func (h *handlers) getRoom(c *gin.Context) {
	info, err := h.orch.Rooms.Get(domain.RoomID(c.Param("id")))
	if errors.Is(err, domain.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room_not_found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, info)
}

// roomMessages serves the history of public rooms only. Password and approval
// rooms hand their history to admitted clients over the socket.
func (h *handlers) roomMessages(c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))
	info, err := h.orch.Rooms.Get(roomID)
	if errors.Is(err, domain.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room_not_found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	if !isPublic(info) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not_authorized"})
		return
	}
	msgs, err := h.orch.History(c.Request.Context(), roomID)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("room", c.Param("id")).Msg("history")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence_failed"})
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *handlers) iceServersHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.iceServers})
}
