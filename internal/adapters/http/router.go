package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/brownjh18/SafeTalk-sub000/internal/adapters/signal"
	"github.com/brownjh18/SafeTalk-sub000/internal/config"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware gives every browser a stable identity cookie.
// The token doubles as the user id for all API calls.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, h *Handlers, ws *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("SafeTalkSessions", store))
	r.Use(ClientTokenMiddleware())

	log.Info().Str("module", "adapters.http").Msg("router setup")

	api := r.Group("/api")

	api.POST("/users", h.RegisterUser)
	api.GET("/users/me", h.CurrentUser)

	api.POST("/sessions", h.CreateSession)
	api.GET("/sessions", h.ListSessions)
	api.GET("/sessions/:id", h.GetSession)
	api.DELETE("/sessions/:id", h.DeleteSession)
	api.POST("/sessions/:id/start", h.StartSession)
	api.POST("/sessions/:id/end", h.EndSession)

	api.POST("/sessions/:id/join", h.Join)
	api.POST("/sessions/:id/leave", h.Leave)
	api.POST("/sessions/:id/withdraw", h.Withdraw)
	api.GET("/sessions/:id/members", h.ListMembers)
	api.POST("/sessions/:id/members/:uid/invite", h.Invite)
	api.POST("/sessions/:id/members/:uid/approve", h.Approve)
	api.POST("/sessions/:id/members/:uid/reject", h.Reject)
	api.POST("/sessions/:id/members/:uid/readd", h.ReAdd)
	api.DELETE("/sessions/:id/members/:uid", h.RemoveMember)

	api.POST("/sessions/:id/messages", h.SendMessage)
	api.GET("/sessions/:id/messages", h.ListMessages)
	api.GET("/sessions/:id/roster", h.Roster)

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("ct", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ws.HandleSignal(ctx, c)
	})

	return r
}
