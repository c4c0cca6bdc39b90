package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/domain"
)

type sessionManager interface {
	Start(ctx context.Context, sessionID, userID string) error
	Stop(sessionID string) error
	Status(sessionID string) (*domain.SessionStatus, error)
}

type permissionSetter interface {
	Set(sessionID string, granted bool)
}

type startRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type permissionRequest struct {
	Granted *bool `json:"granted" binding:"required"`
}

// SessionHandler is the HTTP face of the session gate: the booking side
// starts and stops walks here and relays permission changes.
type SessionHandler struct {
	sessions sessionManager
	perms    permissionSetter
}

func NewSessionHandler(sessions sessionManager, perms permissionSetter) *SessionHandler {
	return &SessionHandler{sessions: sessions, perms: perms}
}

func (h *SessionHandler) Register(r *gin.RouterGroup) {
	r.POST("/sessions/:session_id/start", h.Start)
	r.POST("/sessions/:session_id/stop", h.Stop)
	r.GET("/sessions/:session_id", h.Status)
	r.PUT("/sessions/:session_id/permission", h.SetPermission)
}

func (h *SessionHandler) Start(c *gin.Context) {
	sessionID := c.Param("session_id")

	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	err := h.sessions.Start(c.Request.Context(), sessionID, req.UserID)
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "location permission not granted"})
		return
	case errors.Is(err, domain.ErrSessionActive):
		c.JSON(http.StatusConflict, gin.H{"error": "session already tracking"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
		return
	}

	h.respondStatus(c, sessionID, http.StatusCreated)
}

func (h *SessionHandler) Stop(c *gin.Context) {
	sessionID := c.Param("session_id")

	if err := h.sessions.Stop(sessionID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	h.respondStatus(c, sessionID, http.StatusOK)
}

func (h *SessionHandler) Status(c *gin.Context) {
	h.respondStatus(c, c.Param("session_id"), http.StatusOK)
}

func (h *SessionHandler) SetPermission(c *gin.Context) {
	sessionID := c.Param("session_id")

	var req permissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "granted is required"})
		return
	}

	h.perms.Set(sessionID, *req.Granted)
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "granted": *req.Granted})
}

func (h *SessionHandler) respondStatus(c *gin.Context, sessionID string, code int) {
	status, err := h.sessions.Status(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(code, status)
}
