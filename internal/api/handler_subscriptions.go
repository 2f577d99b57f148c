package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"campus-guardian-backend/internal/model"
)

type putSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256DH   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}

// PutSubscription handles the creation or replacement of a subscription.
func (h *Handler) PutSubscription(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}

	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub := model.PushSubscription{
		Endpoint: req.Endpoint,
		UserID:   userID,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}
	if err := h.store.UpsertSubscription(c.Request.Context(), &sub); err != nil {
		writeErr(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	if _, _, ok := identity(c); !ok {
		return
	}

	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.DeleteSubscription(c.Request.Context(), req.Endpoint); err != nil {
		writeErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true // endpoints carry their own encoding, no URL decode
		}
	}
	return "", false
}

// GetSubscription reports whether the given endpoint is registered for
// the caller.
func (h *Handler) GetSubscription(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}

	raw, rawOK := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !rawOK || raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}

	subs, err := h.store.SubscriptionsForUser(c.Request.Context(), userID)
	if err != nil {
		writeErr(c, err)
		return
	}

	for _, sub := range subs {
		if sub.Endpoint == raw {
			c.JSON(http.StatusOK, gin.H{"endpoint": sub.Endpoint, "created_at": sub.CreatedAt})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
}
