package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"campus-guardian-backend/internal/model"
	"campus-guardian-backend/internal/sos"
)

type incidentLocationRequest struct {
	Lat        float64    `json:"lat"`
	Lng        float64    `json:"lng"`
	Address    string     `json:"address"`
	Accuracy   float64    `json:"accuracy"`
	ObservedAt *time.Time `json:"observed_at"`
}

func (r incidentLocationRequest) toLocation() sos.Location {
	loc := sos.Location{Lat: r.Lat, Lng: r.Lng, Address: r.Address, Accuracy: r.Accuracy}
	if r.ObservedAt != nil {
		loc.ObservedAt = *r.ObservedAt
	}
	return loc
}

type raiseIncidentRequest struct {
	Location       incidentLocationRequest `json:"location" binding:"required"`
	Category       string                  `json:"category" binding:"required"`
	InitialMessage string                  `json:"initial_message"`
	Silent         bool                    `json:"silent"`
}

type incidentResponse struct {
	ID                  string                 `json:"id"`
	ReporterID          string                 `json:"reporter_id"`
	Status              model.IncidentStatus   `json:"status"`
	Priority            model.IncidentPriority `json:"priority"`
	Category            string                 `json:"category"`
	Silent              bool                   `json:"silent"`
	CurrentLat          float64                `json:"current_lat"`
	CurrentLng          float64                `json:"current_lng"`
	CurrentAddress      string                 `json:"current_address,omitempty"`
	AssignedStaffID     *string                `json:"assigned_staff_id,omitempty"`
	ResolvedByID        *string                `json:"resolved_by_id,omitempty"`
	ResolutionNote      string                 `json:"resolution_note,omitempty"`
	ResolvedAt          *time.Time             `json:"resolved_at,omitempty"`
	ResponseTimeSeconds int                    `json:"response_time_seconds,omitempty"`
	CreatedAt           time.Time              `json:"created_at"`
	Responders          []string               `json:"responders,omitempty"`
	Observers           []string               `json:"observers,omitempty"`
}

func toIncidentResponse(inc *model.SOSIncident) incidentResponse {
	resp := incidentResponse{
		ID:                  inc.ID,
		ReporterID:          inc.ReporterID,
		Status:              inc.Status,
		Priority:            inc.Priority,
		Category:            inc.Category,
		Silent:              inc.Silent,
		CurrentLat:          inc.CurrentLat,
		CurrentLng:          inc.CurrentLng,
		CurrentAddress:      inc.CurrentAddress,
		AssignedStaffID:     inc.AssignedStaffID,
		ResolvedByID:        inc.ResolvedByID,
		ResolutionNote:      inc.ResolutionNote,
		ResolvedAt:          inc.ResolvedAt,
		ResponseTimeSeconds: inc.ResponseTimeSeconds,
		CreatedAt:           inc.CreatedAt,
	}
	for _, r := range inc.Responders {
		resp.Responders = append(resp.Responders, r.StaffID)
	}
	for _, o := range inc.Observers {
		resp.Observers = append(resp.Observers, o.StaffID)
	}
	return resp
}

// RaiseIncident handles POST /api/incidents.
func (h *Handler) RaiseIncident(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}

	var req raiseIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inc, err := h.incidents.Raise(c.Request.Context(), sos.RaiseInput{
		ReporterID:     userID,
		Location:       req.Location.toLocation(),
		Category:       req.Category,
		InitialMessage: req.InitialMessage,
		Silent:         req.Silent,
	})
	if err != nil {
		writeErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, toIncidentResponse(inc))
}

// GetIncident handles GET /api/incidents/:incident_id.
func (h *Handler) GetIncident(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}

	inc, err := h.incidents.GetByID(c.Request.Context(), c.Param("incident_id"), userID, role)
	if err != nil {
		writeErr(c, err)
		return
	}

	c.JSON(http.StatusOK, toIncidentResponse(inc))
}

// ListIncidents handles GET /api/incidents. Staff see every incident,
// optionally filtered by ?status=; everyone else sees only their own.
func (h *Handler) ListIncidents(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}

	var (
		incs []model.SOSIncident
		err  error
	)
	if role.IsStaff() {
		incs, err = h.incidents.ListAll(c.Request.Context(), role, model.IncidentStatus(c.Query("status")))
	} else {
		incs, err = h.incidents.ListMine(c.Request.Context(), userID)
	}
	if err != nil {
		writeErr(c, err)
		return
	}

	resp := make([]incidentResponse, len(incs))
	for i := range incs {
		resp[i] = toIncidentResponse(&incs[i])
	}
	c.JSON(http.StatusOK, resp)
}

// AppendIncidentLocation handles POST /api/incidents/:incident_id/locations.
func (h *Handler) AppendIncidentLocation(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}

	var req incidentLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.incidents.AppendLocation(c.Request.Context(), c.Param("incident_id"), userID, req.toLocation()); err != nil {
		writeErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type chatRequest struct {
	Body string `json:"body" binding:"required"`
}

// PostIncidentChat handles POST /api/incidents/:incident_id/chat.
func (h *Handler) PostIncidentChat(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.incidents.AppendChat(c.Request.Context(), c.Param("incident_id"), userID, role, req.Body); err != nil {
		writeErr(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

type chatMessageResponse struct {
	SenderID   string     `json:"sender_id"`
	SenderRole model.Role `json:"sender_role"`
	Body       string     `json:"body"`
	Kind       string     `json:"kind"`
	SentAt     time.Time  `json:"sent_at"`
}

// GetIncidentChat handles GET /api/incidents/:incident_id/chat.
func (h *Handler) GetIncidentChat(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}

	msgs, err := h.incidents.GetChat(c.Request.Context(), c.Param("incident_id"), userID, role)
	if err != nil {
		writeErr(c, err)
		return
	}

	resp := make([]chatMessageResponse, len(msgs))
	for i, m := range msgs {
		resp[i] = chatMessageResponse{SenderID: m.SenderID, SenderRole: m.SenderRole, Body: m.Body, Kind: m.Kind, SentAt: m.SentAt}
	}
	c.JSON(http.StatusOK, resp)
}

type attachMediaRequest struct {
	Kind         string     `json:"kind" binding:"required"`
	URI          string     `json:"uri" binding:"required"`
	CapturedAt   *time.Time `json:"captured_at"`
	AutoCaptured bool       `json:"auto_captured"`
}

// AttachIncidentMedia handles POST /api/incidents/:incident_id/media.
func (h *Handler) AttachIncidentMedia(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}

	var req attachMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := sos.MediaInput{Kind: req.Kind, URI: req.URI, AutoCaptured: req.AutoCaptured}
	if req.CapturedAt != nil {
		in.CapturedAt = *req.CapturedAt
	}

	if err := h.incidents.AttachMedia(c.Request.Context(), c.Param("incident_id"), userID, in); err != nil {
		writeErr(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

// GetIncidentMedia handles GET /api/incidents/:incident_id/media.
func (h *Handler) GetIncidentMedia(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}

	items, err := h.incidents.GetMedia(c.Request.Context(), c.Param("incident_id"), userID, role)
	if err != nil {
		writeErr(c, err)
		return
	}

	c.JSON(http.StatusOK, items)
}

// GetIncidentLocations handles GET /api/incidents/:incident_id/locations.
func (h *Handler) GetIncidentLocations(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}

	locs, err := h.incidents.GetLocationHistory(c.Request.Context(), c.Param("incident_id"), userID, role)
	if err != nil {
		writeErr(c, err)
		return
	}

	c.JSON(http.StatusOK, locs)
}

// AssignIncident handles POST /api/incidents/:incident_id/assign. Staff
// assign themselves; an explicit staff_id in the body assigns a colleague.
func (h *Handler) AssignIncident(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}

	var req struct {
		StaffID string `json:"staff_id"`
	}
	_ = c.ShouldBindJSON(&req)
	staffID := req.StaffID
	if staffID == "" {
		staffID = userID
	}

	if err := h.incidents.Assign(c.Request.Context(), c.Param("incident_id"), staffID, role); err != nil {
		writeErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RespondIncident handles POST /api/incidents/:incident_id/respond.
func (h *Handler) RespondIncident(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}

	if err := h.incidents.Respond(c.Request.Context(), c.Param("incident_id"), userID, role); err != nil {
		writeErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// FollowIncident handles POST /api/incidents/:incident_id/follow.
func (h *Handler) FollowIncident(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}

	if err := h.incidents.Follow(c.Request.Context(), c.Param("incident_id"), userID, role); err != nil {
		writeErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type setStatusRequest struct {
	Status model.IncidentStatus `json:"status" binding:"required"`
	Note   string               `json:"note"`
}

// SetIncidentStatus handles POST /api/incidents/:incident_id/status.
func (h *Handler) SetIncidentStatus(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}

	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.incidents.SetStatus(c.Request.Context(), c.Param("incident_id"), userID, role, req.Status, req.Note); err != nil {
		writeErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// CancelIncident handles POST /api/incidents/:incident_id/cancel. Only
// the reporter may cancel; the incident closes as a false alarm.
func (h *Handler) CancelIncident(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}

	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.incidents.Cancel(c.Request.Context(), c.Param("incident_id"), userID, req.Reason); err != nil {
		writeErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
