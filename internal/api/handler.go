package api

import (
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"campus-guardian-backend/internal/campus"
	"campus-guardian-backend/internal/fault"
	"campus-guardian-backend/internal/guardian"
	"campus-guardian-backend/internal/model"
	"campus-guardian-backend/internal/notify"
	"campus-guardian-backend/internal/sos"
	"campus-guardian-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	sessions  *guardian.Manager
	incidents *sos.Manager
	fanout    *notify.Fanout
	registry  *campus.Registry
	store     store.Store
	webpush   *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(sessions *guardian.Manager, incidents *sos.Manager, fanout *notify.Fanout, registry *campus.Registry, s store.Store, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		sessions:  sessions,
		incidents: incidents,
		fanout:    fanout,
		registry:  registry,
		store:     s,
		webpush:   webpushOptions,
	}
}

// identity reads the verified caller identity forwarded by the auth
// layer. This service trusts the headers; verification happens upstream.
func identity(c *gin.Context) (string, model.Role, bool) {
	userID := c.GetHeader("X-User-ID")
	role := model.Role(c.GetHeader("X-User-Role"))
	if userID == "" || !role.Valid() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid identity headers"})
		return "", "", false
	}
	return userID, role, true
}

// writeErr maps a fault to its HTTP status. Unclassified errors become
// opaque 500s.
func writeErr(c *gin.Context, err error) {
	status := fault.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": err.Error(),
		"kind":  fault.KindOf(err).String(),
	})
}
