package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dkeye/Pulse/internal/adapters/ws"
	"github.com/dkeye/Pulse/internal/app"
	"github.com/dkeye/Pulse/internal/config"
	"github.com/dkeye/Pulse/internal/domain"
)

// ClientTokenMiddleware tags every browser with a stable token so logs can
// correlate reconnects from the same client.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *ws.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("PulseSessions", store))
	r.Use(ClientTokenMiddleware())

	api := r.Group("/api")

	api.GET("/ws", func(c *gin.Context) {
		ctl.HandleWS(ctx, c)
	})

	api.POST("/presence/query", presenceQuery(ctl.Presence))
	api.GET("/voice/:channel", voiceSnapshot(ctl.Voice))

	return r
}

type presenceQueryRequest struct {
	UserIDs []domain.UserID `json:"userIds" binding:"required"`
}

// presenceQuery returns the masked status of each requested user; INVISIBLE
// users report as OFFLINE to everyone but themselves.
func presenceQuery(tracker *app.PresenceTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req presenceQueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, tracker.StatusMany(c.Request.Context(), req.UserIDs))
	}
}

func voiceSnapshot(voice *app.VoiceRoomRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		channelID := domain.ChannelID(c.Param("channel"))
		c.JSON(http.StatusOK, gin.H{"users": voice.Snapshot(channelID)})
	}
}
