package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
)

func TestCache_ReplaysSuccessfulResponses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := cache.New(time.Minute, time.Minute)

	var hits int
	r := gin.New()
	r.GET("/metrics", Cache(store, time.Minute), func(c *gin.Context) {
		hits++
		c.JSON(http.StatusOK, gin.H{"hits": hits})
	})

	do := func(authorization string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	first := do("")
	second := do("")
	assert.Equal(t, 1, hits, "the second request should be served from cache")
	assert.Equal(t, first.Body.String(), second.Body.String())

	// Authorized requests bypass the cache in both directions.
	authed := do("Bearer some-token")
	assert.Equal(t, 2, hits)
	assert.JSONEq(t, `{"hits": 2}`, authed.Body.String())
}
