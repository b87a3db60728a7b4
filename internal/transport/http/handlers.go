package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ircgate/ircgate/internal/gateway"
	"github.com/ircgate/ircgate/internal/history"
)

// Handlers serves the admin API endpoints.
type Handlers struct {
	registry *gateway.Registry
	hist     *history.Store
	log      *zerolog.Logger
}

// NewHandlers creates the admin handlers.
func NewHandlers(registry *gateway.Registry, hist *history.Store, logger *zerolog.Logger) *Handlers {
	return &Handlers{registry: registry, hist: hist, log: logger}
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionInfo describes one live session.
type SessionInfo struct {
	ID      string `json:"id"`
	Account string `json:"account"`
	Nick    string `json:"nick"`
}

// HistoryEntry is one logged message.
type HistoryEntry struct {
	Channel   string    `json:"channel"`
	Sender    string    `json:"sender"`
	Body      string    `json:"body"`
	Direction string    `json:"direction"`
	CreatedAt time.Time `json:"created_at"`
}

// Health answers liveness probes.
// GET /health
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.registry.Len()})
}

// ListSessions returns all live sessions.
// GET /api/sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions := h.registry.Sessions()
	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionInfo{ID: s.ID(), Account: s.Account(), Nick: s.Nick()})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

// ListChannels returns the aggregate channel list across sessions.
// GET /api/channels
func (h *Handlers) ListChannels(c *gin.Context) {
	channels := h.registry.Channels(c.Request.Context())
	if channels == nil {
		channels = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

// RefreshSession drops a session's entity caches.
// POST /api/sessions/:account/refresh
func (h *Handlers) RefreshSession(c *gin.Context) {
	account := c.Param("account")
	s, ok := h.registry.GetByAccount(account)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no such session"})
		return
	}
	s.Refresh()
	h.log.Info().Str("account", account).Msg("caches refreshed")
	c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
}

// SessionHistory returns recent messages for an account, newest first.
// GET /api/sessions/:account/history?limit=50
func (h *Handlers) SessionHistory(c *gin.Context) {
	account := c.Param("account")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries := []HistoryEntry{}
	if h.hist != nil {
		recorded, err := h.hist.Recent(c.Request.Context(), account, limit)
		if err != nil {
			h.log.Error().Err(err).Msg("query history")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "history unavailable"})
			return
		}
		for _, e := range recorded {
			entries = append(entries, HistoryEntry{
				Channel:   e.Channel,
				Sender:    e.Sender,
				Body:      e.Body,
				Direction: e.Direction,
				CreatedAt: e.CreatedAt,
			})
		}
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}
