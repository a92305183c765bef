package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimiter applies a per-client-IP token bucket.
type RateLimiter struct {
	clients map[string]*tokenBucket
	mu      sync.Mutex
	cleanup *time.Ticker
	stopCh  chan struct{}
	logger  *zap.Logger
	rps     int
	burst   int
}

type tokenBucket struct {
	tokens     float64
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a limiter refilling rps tokens per second up to
// burst.
func NewRateLimiter(rps, burst int, logger *zap.Logger) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*tokenBucket),
		logger:  logger,
		rps:     rps,
		burst:   burst,
		stopCh:  make(chan struct{}),
	}
	rl.cleanup = time.NewTicker(5 * time.Minute)
	go rl.cleanupIdleClients()
	return rl
}

// RateLimit is the gin middleware.
func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !rl.allow(clientIP) {
			rl.logger.Warn("rate limit exceeded",
				zap.String("client_ip", clientIP),
				zap.String("path", c.Request.URL.Path))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": 60,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	bucket, exists := rl.clients[clientIP]
	if !exists {
		bucket = &tokenBucket{tokens: float64(rl.burst), lastUpdate: time.Now()}
		rl.clients[clientIP] = bucket
	}
	rl.mu.Unlock()

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	now := time.Now()
	bucket.tokens += now.Sub(bucket.lastUpdate).Seconds() * float64(rl.rps)
	if bucket.tokens > float64(rl.burst) {
		bucket.tokens = float64(rl.burst)
	}
	bucket.lastUpdate = now

	if bucket.tokens >= 1 {
		bucket.tokens--
		return true
	}
	return false
}

func (rl *RateLimiter) cleanupIdleClients() {
	for {
		select {
		case <-rl.cleanup.C:
			rl.mu.Lock()
			now := time.Now()
			for ip, bucket := range rl.clients {
				bucket.mu.Lock()
				idle := now.Sub(bucket.lastUpdate) > 10*time.Minute
				bucket.mu.Unlock()
				if idle {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Shutdown stops the cleanup loop.
func (rl *RateLimiter) Shutdown() {
	if rl.cleanup != nil {
		rl.cleanup.Stop()
	}
	close(rl.stopCh)
}
