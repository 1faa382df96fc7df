package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"sales-analytics/internal/config"
	"sales-analytics/internal/errors"
	"sales-analytics/internal/observability"
)

const (
	uploadClientIdle = 10 * time.Minute
	maxUploadClients = 4096

	// Rates are whole requests per second, so a token is never more than a
	// second away.
	retryAfterSeconds = "1"
)

type uploadClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UploadLimiter throttles uploads per client address. Idle clients are
// swept on access and the table never grows past maxUploadClients.
type UploadLimiter struct {
	mu        sync.Mutex
	clients   map[string]*uploadClient
	limit     rate.Limit
	burst     int
	enabled   bool
	idle      time.Duration
	max       int
	lastSweep time.Time
	now       func() time.Time
}

func NewUploadLimiter(cfg config.SecurityConfig) *UploadLimiter {
	return &UploadLimiter{
		clients: make(map[string]*uploadClient),
		limit:   rate.Limit(cfg.RateLimitRPS),
		burst:   cfg.RateLimitBurst,
		enabled: cfg.EnableRateLimit,
		idle:    uploadClientIdle,
		max:     maxUploadClients,
		now:     time.Now,
	}
}

// Allow reports whether ip may upload now, spending a token if so.
func (l *UploadLimiter) Allow(ip string) bool {
	if l == nil || !l.enabled {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}

	c, ok := l.clients[ip]
	if !ok {
		if len(l.clients) >= l.max {
			l.sweep(now)
			if len(l.clients) >= l.max {
				l.evictOldest()
			}
		}
		c = &uploadClient{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func (l *UploadLimiter) sweep(now time.Time) {
	for ip, c := range l.clients {
		if now.Sub(c.lastSeen) >= l.idle {
			delete(l.clients, ip)
		}
	}
	l.lastSweep = now
}

func (l *UploadLimiter) evictOldest() {
	var (
		oldestIP string
		oldest   time.Time
	)
	for ip, c := range l.clients {
		if oldestIP == "" || c.lastSeen.Before(oldest) {
			oldestIP, oldest = ip, c.lastSeen
		}
	}
	delete(l.clients, oldestIP)
}

func (l *UploadLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// LimitUploads answers 429 once the client's upload budget is spent. It is
// mounted on the upload routes only.
func LimitUploads(l *UploadLimiter, logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIPFrom(r.Context(), r)
			if l.Allow(ip) {
				next.ServeHTTP(w, r)
				return
			}

			observability.LoggerFrom(r.Context(), logger).Warn("upload rate limit exceeded", "client_ip", ip, "path", r.URL.Path)
			w.Header().Set("Retry-After", retryAfterSeconds)
			errors.WriteError(w, r, logger, errors.RateLimit("Too many uploads, try again shortly"), observability.GetRequestID(r.Context()))
		})
	}
}
