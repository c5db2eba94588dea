package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"supamon-backend/pkg/utils"
)

// IPRateLimiter manages rate limiters per IP
type IPRateLimiter struct {
	limiters map[string]*ipEntry
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter creates a new IP-based rate limiter
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		limiters: make(map[string]*ipEntry),
		rate:     r,
		burst:    b,
	}
}

// GetLimiter returns the rate limiter for an IP
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	entry, exists := i.limiters[ip]
	if !exists {
		entry = &ipEntry{limiter: rate.NewLimiter(i.rate, i.burst)}
		i.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// Cleanup forgets IPs idle for longer than maxIdle.
func (i *IPRateLimiter) Cleanup(maxIdle time.Duration) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for ip, entry := range i.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(i.limiters, ip)
			removed++
		}
	}
	return removed
}

// Size returns the number of tracked IPs.
func (i *IPRateLimiter) Size() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.limiters)
}

// StartCleanup periodically drops idle limiters until ctx is done.
func (i *IPRateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		defer func() {
			if r := recover(); r != nil {
				utils.CaptureSentryPanic("middleware.StartCleanup", r)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := i.Cleanup(interval); n > 0 {
					logrus.Debugf("Rate limiter dropped %d idle clients", n)
				}
			}
		}
	}()
}

// GeneralRateLimit throttles API clients per IP. Probes and scrapes are exempt.
func GeneralRateLimit(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" || path == "/metrics" {
			c.Next()
			return
		}

		ip := getClientIP(c)
		if !limiter.GetLimiter(ip).Allow() {
			logrus.WithFields(logrus.Fields{"ip": ip, "path": path}).Warn("Rate limit exceeded")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "RATE_LIMITED",
				"message":     "Too many requests. Please slow down.",
				"retry_after": "1 second",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func getClientIP(c *gin.Context) string {
	if xri := c.GetHeader("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return c.ClientIP()
}
