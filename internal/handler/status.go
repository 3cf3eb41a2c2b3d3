package handler

import (
	"net/http"

	"github.com/TradeGateHQ/tradegate/internal/config"
	"github.com/TradeGateHQ/tradegate/internal/session"
	"github.com/gin-gonic/gin"
)

type StatusHandler struct {
	cfg   *config.Config
	store *session.Store
}

func NewStatusHandler(cfg *config.Config, store *session.Store) *StatusHandler {
	return &StatusHandler{cfg: cfg, store: store}
}

func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status reports which subsystems are configured without leaking any
// credential material.
func (h *StatusHandler) Status(c *gin.Context) {
	mode := "production"
	if h.cfg.Venue.SandboxMode {
		mode = "sandbox"
	}
	sessions := 0
	if h.store != nil {
		sessions = h.store.Len()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":              "ok",
		"identity_configured": h.cfg.Identity.IsConfigured(),
		"venue_configured":    h.cfg.Venue.IsConfigured(),
		"venue_mode":          mode,
		"read_only":           h.cfg.Server.ReadOnly,
		"sessions":            sessions,
	})
}
