package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"campus-guardian-backend/internal/campus"
	"campus-guardian-backend/internal/geo"
	"campus-guardian-backend/internal/model"
)

type campusResponse struct {
	ID               uint     `json:"id"`
	Name             string   `json:"name"`
	CenterLat        float64  `json:"center_lat"`
	CenterLng        float64  `json:"center_lng"`
	CoverageRadiusKm float64  `json:"coverage_radius_km"`
	Boundary         []latLng `json:"boundary"`
}

func toCampusResponse(u *model.University) campusResponse {
	boundary := make([]latLng, len(u.Boundary))
	for i, v := range u.Boundary {
		boundary[i] = latLng{Lat: v.Lat, Lng: v.Lng}
	}
	return campusResponse{
		ID:               u.ID,
		Name:             u.Name,
		CenterLat:        u.CenterLat,
		CenterLng:        u.CenterLng,
		CoverageRadiusKm: u.CoverageRadiusKm,
		Boundary:         boundary,
	}
}

// ListCampuses handles GET /api/campuses.
func (h *Handler) ListCampuses(c *gin.Context) {
	unis, err := h.registry.List(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}

	resp := make([]campusResponse, len(unis))
	for i := range unis {
		resp[i] = toCampusResponse(&unis[i])
	}
	c.JSON(http.StatusOK, resp)
}

// GetCampus handles GET /api/campuses/:campus_id.
func (h *Handler) GetCampus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("campus_id"), 10, 32)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid campus id"})
		return
	}

	uni, err := h.registry.ByID(c.Request.Context(), uint(id))
	if err != nil {
		writeErr(c, err)
		return
	}

	c.JSON(http.StatusOK, toCampusResponse(uni))
}

// ClassifyPoint handles GET /api/campuses/:campus_id/classify. Clients
// probe their zone without starting a session.
func (h *Handler) ClassifyPoint(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("campus_id"), 10, 32)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid campus id"})
		return
	}

	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
	if latErr != nil || lngErr != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "lat and lng are required"})
		return
	}

	uni, err := h.registry.ByID(c.Request.Context(), uint(id))
	if err != nil {
		writeErr(c, err)
		return
	}

	cls := geo.Classify(geo.Point{Lat: lat, Lng: lng}, campus.CampusGeometry(uni))
	c.JSON(http.StatusOK, cls)
}
