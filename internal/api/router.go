package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"meter-image-backend/config"
	"meter-image-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg *config.Config) *gin.Engine {
	r := gin.Default()
	r.MaxMultipartMemory = 8 << 20

	// One limiter shared by every route so a client cannot dodge it by
	// spreading requests across endpoints.
	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateBurst)

	// Cache only the read-mostly endpoints. An uploaded image must be
	// visible to the next read, so listings are never cached.
	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	// Liveness probes poll this; keep it outside the rate limiter.
	r.GET("/health", h.GetHealth)

	public := r.Group("/")
	public.Use(rateLimiter)
	{
		public.GET("", caching, h.GetRoot)
		public.GET("/metrics", caching, h.GetMetrics)
		public.GET("/task-status/:task_id", h.GetTaskStatus)
	}

	protected := r.Group("/")
	protected.Use(rateLimiter, mw.Auth(cfg.Auth.APIToken))
	{
		protected.POST("/upload", h.PostUpload)
		protected.GET("/meters/:meter_id/images", h.GetMeterImages)
		protected.GET("/meters/:meter_id/readings", h.GetMeterReadings)
	}

	return r
}
