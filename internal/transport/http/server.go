// Package http exposes the gateway's admin API: live sessions, aggregate
// channel list, cache refresh and message history.
package http

import (
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ircgate/ircgate/internal/auth"
	"github.com/ircgate/ircgate/internal/gateway"
	"github.com/ircgate/ircgate/internal/history"
)

// ServerConfig holds the admin listener's settings.
type ServerConfig struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	JWT               *auth.JWTConfig
}

// NewServer builds the admin HTTP server. hist may be nil, which disables
// the history endpoint's content (it returns an empty list).
func NewServer(cfg ServerConfig, registry *gateway.Registry, hist *history.Store, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	h := NewHandlers(registry, hist, logger)

	router.GET("/health", h.Health)

	api := router.Group("/api")
	api.Use(AuthMiddleware(cfg.JWT, logger))
	{
		api.GET("/sessions", h.ListSessions)
		api.GET("/channels", h.ListChannels)
		api.POST("/sessions/:account/refresh", h.RefreshSession)
		api.GET("/sessions/:account/history", h.SessionHistory)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
