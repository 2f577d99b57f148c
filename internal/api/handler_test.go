package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"campus-guardian-backend/internal/fault"
)

func setupIdentityRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", func(c *gin.Context) {
		userID, role, ok := identity(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "role": role})
	})
	return r
}

func TestIdentity(t *testing.T) {
	router := setupIdentityRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/whoami", nil)
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("X-User-Role", "security")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"alice","role":"security"}`, w.Body.String())

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/whoami", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/whoami", nil)
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("X-User-Role", "admin")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWriteErr(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{fault.NotFound("session missing"), http.StatusNotFound, "not_found"},
		{fault.Forbidden("staff only"), http.StatusForbidden, "forbidden"},
		{fault.AlreadyClosed("incident"), http.StatusConflict, "invalid_state"},
		{fault.Validation("bad interval"), http.StatusBadRequest, "validation"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		writeErr(c, tc.err)
		assert.Equal(t, tc.status, w.Code)
		assert.Contains(t, w.Body.String(), tc.kind)
	}

	// Unclassified errors stay opaque.
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	writeErr(c, errors.New("pq: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}
