package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/domain"
)

type locationService interface {
	GetCurrentPosition(ctx context.Context, userID string) (*domain.CurrentPosition, error)
	GetHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.HistoryPoint, error)
}

type positionResponse struct {
	UserID    string  `json:"user_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Geohash   string  `json:"geohash"`
	Distance  float64 `json:"distance_meters"`
	UpdatedAt int64   `json:"updated_at"`
}

type historyResponse struct {
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Accuracy   float64  `json:"accuracy"`
	Speed      *float64 `json:"speed,omitempty"`
	CapturedAt int64    `json:"captured_at"`
}

type PositionHandler struct {
	locationSvc locationService
}

func NewPositionHandler(locationSvc locationService) *PositionHandler {
	return &PositionHandler{locationSvc: locationSvc}
}

func (h *PositionHandler) Register(r *gin.RouterGroup) {
	r.GET("/users/:user_id/position", h.GetCurrentPosition)
	r.GET("/sessions/:session_id/history", h.GetHistory)
}

func (h *PositionHandler) GetCurrentPosition(c *gin.Context) {
	userID := c.Param("user_id")

	pos, err := h.locationSvc.GetCurrentPosition(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "position not found"})
		return
	}

	c.JSON(http.StatusOK, positionResponse{
		UserID:    pos.UserID,
		Latitude:  pos.Lat,
		Longitude: pos.Lon,
		Accuracy:  pos.Accuracy,
		Geohash:   pos.Geohash,
		Distance:  pos.Distance,
		UpdatedAt: pos.UpdatedAt.UnixMilli(),
	})
}

func (h *PositionHandler) GetHistory(c *gin.Context) {
	sessionID := c.Param("session_id")

	start, err := strconv.ParseInt(c.Query("start"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start parameter"})
		return
	}

	end, err := strconv.ParseInt(c.Query("end"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end parameter"})
		return
	}

	query := &domain.HistoryQuery{
		SessionID: sessionID,
		Start:     time.Unix(start, 0),
		End:       time.Unix(end, 0),
	}

	points, err := h.locationSvc.GetHistory(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch history"})
		return
	}

	results := make([]historyResponse, len(points))
	for i, p := range points {
		results[i] = historyResponse{
			Latitude:   p.Lat,
			Longitude:  p.Lon,
			Accuracy:   p.Accuracy,
			Speed:      p.Speed,
			CapturedAt: p.CapturedAt.UnixMilli(),
		}
	}
	c.JSON(http.StatusOK, results)
}
