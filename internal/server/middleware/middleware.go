package middleware

import (
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// SecurityHeaders adds security headers to all responses
func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		// Message bodies may reference remote images; scripts stay local.
		c.Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline' https://unpkg.com; style-src 'self' 'unsafe-inline'; img-src 'self' data: https: cid:;")
		if c.Protocol() == "https" {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		return c.Next()
	}
}

// NoStore disables caching of API responses.
func NoStore() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderCacheControl, "no-store, no-cache, must-revalidate, max-age=0")
		c.Set(fiber.HeaderPragma, "no-cache")
		c.Set(fiber.HeaderExpires, "0")
		return c.Next()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements a token bucket rate limiter per IP
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
	sweptAt  time.Time
}

func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     r,
		burst:    b,
		idle:     time.Hour,
		now:      time.Now,
	}
}

// NewLoginLimiter allows attempts requests per window for each IP.
func NewLoginLimiter(attempts int, window time.Duration) *RateLimiter {
	if attempts < 1 {
		attempts = 1
	}
	rl := NewRateLimiter(rate.Every(window/time.Duration(attempts)), attempts)
	if window > rl.idle {
		rl.idle = window
	}
	return rl
}

func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.sweptAt) > rl.idle {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > rl.idle {
				delete(rl.visitors, k)
			}
		}
		rl.sweptAt = now
	}

	v, exists := rl.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Limit rejects requests over the per-IP budget with 429.
func (rl *RateLimiter) Limit() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// c.IP aliases the request buffer and the key outlives it.
		ip := strings.Clone(c.IP())

		if !rl.getLimiter(ip).AllowN(rl.now(), 1) {
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests")
		}
		return c.Next()
	}
}

// Metrics tracks request metrics
type Metrics struct {
	totalRequests  int64
	activeRequests int64
	totalDuration  time.Duration
	statusCodes    map[int]int64
	mu             sync.RWMutex
}

func NewMetrics() *Metrics {
	return &Metrics{
		statusCodes: make(map[int]int64),
	}
}

func (m *Metrics) Track() fiber.Handler {
	return func(c *fiber.Ctx) error {
		m.mu.Lock()
		m.totalRequests++
		m.activeRequests++
		m.mu.Unlock()

		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		m.mu.Lock()
		m.activeRequests--
		m.totalDuration += time.Since(start)
		m.statusCodes[status]++
		m.mu.Unlock()
		return err
	}
}

// GetMetrics returns current metrics
func (m *Metrics) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var avgDuration time.Duration
	if completed := m.totalRequests - m.activeRequests; completed > 0 {
		avgDuration = m.totalDuration / time.Duration(completed)
	}

	codes := make(map[int]int64, len(m.statusCodes))
	for k, v := range m.statusCodes {
		codes[k] = v
	}

	return map[string]interface{}{
		"total_requests":  m.totalRequests,
		"active_requests": m.activeRequests,
		"avg_duration_ms": avgDuration.Milliseconds(),
		"status_codes":    codes,
	}
}
