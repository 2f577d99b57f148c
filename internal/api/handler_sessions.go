package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"campus-guardian-backend/internal/geo"
	"campus-guardian-backend/internal/guardian"
	"campus-guardian-backend/internal/model"
)

type startSessionRequest struct {
	Destination            string     `json:"destination" binding:"required"`
	EstimatedArrival       *time.Time `json:"estimated_arrival"`
	Route0                 []latLng   `json:"route0"`
	TrustedContactIDs      []string   `json:"trusted_contact_ids"`
	CheckInIntervalMinutes int        `json:"check_in_interval_minutes"`
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type sessionResponse struct {
	ID                     string     `json:"id"`
	OwnerID                string     `json:"owner_id"`
	Destination            string     `json:"destination"`
	IsActive               bool       `json:"is_active"`
	EstimatedArrival       *time.Time `json:"estimated_arrival,omitempty"`
	CheckInIntervalMinutes int        `json:"check_in_interval_minutes"`
	LastCheckInAt          *time.Time `json:"last_check_in_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	Contacts               []string   `json:"trusted_contact_ids"`
}

func toSessionResponse(s *model.GuardianSession) sessionResponse {
	contacts := make([]string, len(s.Contacts))
	for i, c := range s.Contacts {
		contacts[i] = c.ContactID
	}
	return sessionResponse{
		ID:                     s.ID,
		OwnerID:                s.OwnerID,
		Destination:            s.Destination,
		IsActive:               s.IsActive,
		EstimatedArrival:       s.EstimatedArrival,
		CheckInIntervalMinutes: s.CheckInIntervalMinutes,
		LastCheckInAt:          s.LastCheckInAt,
		CreatedAt:              s.CreatedAt,
		Contacts:               contacts,
	}
}

// StartSession handles POST /api/sessions.
func (h *Handler) StartSession(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}

	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	route0 := make([]geo.Point, len(req.Route0))
	for i, p := range req.Route0 {
		route0[i] = geo.Point{Lat: p.Lat, Lng: p.Lng}
	}

	session, err := h.sessions.Start(c.Request.Context(), guardian.StartInput{
		OwnerID:                userID,
		Destination:            req.Destination,
		EstimatedArrival:       req.EstimatedArrival,
		Route0:                 route0,
		TrustedContactIDs:      req.TrustedContactIDs,
		CheckInIntervalMinutes: req.CheckInIntervalMinutes,
	})
	if err != nil {
		writeErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, toSessionResponse(session))
}

// GetActiveSession handles GET /api/sessions/active.
func (h *Handler) GetActiveSession(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}

	session, err := h.sessions.GetActive(c.Request.Context(), userID)
	if err != nil {
		writeErr(c, err)
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(session))
}

type appendLocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// AppendSessionLocation handles POST /api/sessions/:session_id/locations.
func (h *Handler) AppendSessionLocation(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}

	var req appendLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cls, err := h.sessions.AppendLocation(c.Request.Context(), c.Param("session_id"), userID, geo.Point{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		writeErr(c, err)
		return
	}

	c.JSON(http.StatusOK, cls)
}

// CheckIn handles POST /api/sessions/:session_id/checkin.
func (h *Handler) CheckIn(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}

	if err := h.sessions.CheckIn(c.Request.Context(), c.Param("session_id"), userID); err != nil {
		writeErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// EndSession handles POST /api/sessions/:session_id/end.
func (h *Handler) EndSession(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}

	if err := h.sessions.End(c.Request.Context(), c.Param("session_id"), userID); err != nil {
		writeErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type routePointResponse struct {
	Seq        int       `json:"seq"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	ObservedAt time.Time `json:"observed_at"`
}

// GetSessionRoute handles GET /api/sessions/:session_id/route.
func (h *Handler) GetSessionRoute(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}

	points, err := h.sessions.Route(c.Request.Context(), c.Param("session_id"), userID)
	if err != nil {
		writeErr(c, err)
		return
	}

	resp := make([]routePointResponse, len(points))
	for i, p := range points {
		resp[i] = routePointResponse{Seq: p.Seq, Lat: p.Lat, Lng: p.Lng, ObservedAt: p.ObservedAt}
	}
	c.JSON(http.StatusOK, resp)
}
