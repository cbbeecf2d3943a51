package http

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// LoggingMiddleware logs one line per request with status and latency. The
// guild path parameter is included when present so roster traffic can be
// filtered per tenant.
func LoggingMiddleware(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Infow("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"guild_id", c.Param("guildId"),
			"latency", time.Since(start),
		)
	}
}

// maxRateBuckets bounds the per-client limiter map; when it fills, the map is
// dropped wholesale rather than tracked with an LRU. Known clients briefly get
// a fresh bucket, which only errs on the permissive side.
const maxRateBuckets = 4096

// RateLimitMiddleware applies a token bucket per client IP.
func RateLimitMiddleware(rps, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	buckets := make(map[string]*rate.Limiter)
	return func(c *gin.Context) {
		ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			ip = c.Request.RemoteAddr
		}
		mu.Lock()
		lim, ok := buckets[ip]
		if !ok {
			if len(buckets) >= maxRateBuckets {
				buckets = make(map[string]*rate.Limiter)
			}
			lim = rate.NewLimiter(rate.Limit(rps), burst)
			buckets[ip] = lim
		}
		mu.Unlock()
		if !lim.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
