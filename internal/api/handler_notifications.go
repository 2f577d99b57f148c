package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"campus-guardian-backend/internal/model"
)

type notificationResponse struct {
	ID        string                 `json:"id"`
	Kind      model.NotificationKind `json:"kind"`
	SenderID  string                 `json:"sender_id,omitempty"`
	Payload   json.RawMessage        `json:"payload"`
	IsRead    bool                   `json:"is_read"`
	CreatedAt time.Time              `json:"created_at"`
}

// ListNotifications handles GET /api/notifications. ?unread=true limits
// the inbox to unread entries.
func (h *Handler) ListNotifications(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}

	notes, err := h.fanout.Inbox(c.Request.Context(), userID, c.Query("unread") == "true")
	if err != nil {
		writeErr(c, err)
		return
	}

	resp := make([]notificationResponse, len(notes))
	for i, n := range notes {
		resp[i] = notificationResponse{
			ID:        n.ID,
			Kind:      n.Kind,
			SenderID:  n.SenderID,
			Payload:   json.RawMessage(n.Payload),
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// MarkNotificationRead handles POST /api/notifications/:notification_id/read.
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}

	if err := h.fanout.MarkRead(c.Request.Context(), c.Param("notification_id"), userID); err != nil {
		writeErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
