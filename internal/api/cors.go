package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware lets browser clients call the API with credentials. In
// production only the listed origins are allowed; elsewhere any origin is echoed.
func CORSMiddleware(env string, origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", "X-User-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	switch {
	case env == "production" && len(origins) > 0:
		cfg.AllowOrigins = origins
	case env == "production":
		cfg.AllowOriginFunc = func(string) bool { return false }
	default:
		cfg.AllowOriginFunc = func(string) bool { return true }
	}
	return cors.New(cfg)
}
