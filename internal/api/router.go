package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"campus-guardian-backend/config"
	"campus-guardian-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	// Campus geometry is seeded at startup and immutable, so cached
	// responses never go stale within a process lifetime.
	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/campuses", caching, h.ListCampuses)
		api.GET("/campuses/:campus_id", caching, h.GetCampus)
		api.GET("/campuses/:campus_id/classify", h.ClassifyPoint)

		api.POST("/sessions", h.StartSession)
		api.GET("/sessions/active", h.GetActiveSession)
		api.POST("/sessions/:session_id/locations", h.AppendSessionLocation)
		api.GET("/sessions/:session_id/route", h.GetSessionRoute)
		api.POST("/sessions/:session_id/checkin", h.CheckIn)
		api.POST("/sessions/:session_id/end", h.EndSession)

		api.POST("/incidents", h.RaiseIncident)
		api.GET("/incidents", h.ListIncidents)
		api.GET("/incidents/:incident_id", h.GetIncident)
		api.POST("/incidents/:incident_id/locations", h.AppendIncidentLocation)
		api.GET("/incidents/:incident_id/locations", h.GetIncidentLocations)
		api.POST("/incidents/:incident_id/chat", h.PostIncidentChat)
		api.GET("/incidents/:incident_id/chat", h.GetIncidentChat)
		api.POST("/incidents/:incident_id/media", h.AttachIncidentMedia)
		api.GET("/incidents/:incident_id/media", h.GetIncidentMedia)
		api.POST("/incidents/:incident_id/assign", h.AssignIncident)
		api.POST("/incidents/:incident_id/respond", h.RespondIncident)
		api.POST("/incidents/:incident_id/follow", h.FollowIncident)
		api.POST("/incidents/:incident_id/status", h.SetIncidentStatus)
		api.POST("/incidents/:incident_id/cancel", h.CancelIncident)

		api.GET("/notifications", h.ListNotifications)
		api.POST("/notifications/:notification_id/read", h.MarkNotificationRead)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
