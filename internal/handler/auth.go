package handler

import (
	"net/http"
	"time"

	"github.com/TradeGateHQ/tradegate/internal/config"
	"github.com/TradeGateHQ/tradegate/internal/identity"
	"github.com/TradeGateHQ/tradegate/internal/middleware"
	"github.com/TradeGateHQ/tradegate/internal/pkg/apperrors"
	"github.com/TradeGateHQ/tradegate/internal/session"
	"github.com/gin-gonic/gin"
)

// AuthHandler serves the browser login flow and the identity resources
// reachable with a completed session's tokens.
type AuthHandler struct {
	store     *session.Store
	client    *identity.Client
	lookahead time.Duration
}

func NewAuthHandler(store *session.Store, client *identity.Client, cfg config.SessionConfig) *AuthHandler {
	lookahead := time.Duration(cfg.ExpiryLookaheadSecs) * time.Second
	if lookahead <= 0 {
		lookahead = identity.DefaultExpiryLookahead
	}
	return &AuthHandler{store: store, client: client, lookahead: lookahead}
}

// Login registers a fresh pending session and points the caller at the
// provider. With ?redirect=true the browser is sent there directly.
func (h *AuthHandler) Login(c *gin.Context) {
	sess, err := h.store.Begin(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	middleware.AddAuditContext(c, "action", "login_begin")

	if c.Query("redirect") == "true" {
		c.Redirect(http.StatusFound, sess.AuthURL)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"auth_url": sess.AuthURL,
		"state":    sess.State,
	})
}

// Callback is the provider redirect target. It redeems the code for the
// session named by state; repeats replay the stored outcome.
func (h *AuthHandler) Callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		if desc := c.Query("error_description"); desc != "" {
			c.Error(apperrors.New(apperrors.ErrUpstreamAuth, desc, nil))
			c.Abort()
			return
		}
		c.Error(apperrors.NewInvalidRequest("state and code query parameters are required"))
		c.Abort()
		return
	}

	sess, err := h.store.Complete(c.Request.Context(), state, code)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	middleware.AddAuditContext(c, "action", "login_complete")

	c.JSON(http.StatusOK, gin.H{
		"state":     sess.State,
		"completed": sess.Completed,
		"claims":    sess.Claims,
	})
}

// Session reports the known state of one login without touching the
// provider.
func (h *AuthHandler) Session(c *gin.Context) {
	sess := h.store.Lookup(c.Query("state"))
	if sess == nil {
		c.Error(session.ErrUnknownSession)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":      sess.State,
		"completed":  sess.Completed,
		"created_at": sess.CreatedAt,
	})
}

// User returns the directory profile for the session's signed-in user.
func (h *AuthHandler) User(c *gin.Context) {
	sess, ok := h.freshSession(c)
	if !ok {
		return
	}
	profile, err := h.client.FetchProfile(c.Request.Context(), sess.Tokens.AccessToken)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Calendar returns the next week of calendar entries.
func (h *AuthHandler) Calendar(c *gin.Context) {
	sess, ok := h.freshSession(c)
	if !ok {
		return
	}
	events, err := h.client.FetchCalendar(c.Request.Context(), sess.Tokens.AccessToken, 7*24*time.Hour)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// Mail returns the most recent inbox messages.
func (h *AuthHandler) Mail(c *gin.Context) {
	sess, ok := h.freshSession(c)
	if !ok {
		return
	}
	messages, err := h.client.FetchMessages(c.Request.Context(), sess.Tokens.AccessToken, 10)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "count": len(messages)})
}

// freshSession resolves the state parameter to a completed session with a
// non-stale access token, refreshing if needed.
func (h *AuthHandler) freshSession(c *gin.Context) (*session.LoginSession, bool) {
	state := c.Query("state")
	if state == "" {
		state = c.GetHeader("X-Login-State")
	}
	sess, err := h.store.EnsureFresh(c.Request.Context(), state, h.lookahead)
	if err != nil {
		if err == session.ErrSessionPending {
			c.Error(apperrors.New(apperrors.ErrInvalidRequest, "login not completed for this session", err))
		} else {
			c.Error(err)
		}
		c.Abort()
		return nil, false
	}
	return sess, true
}
