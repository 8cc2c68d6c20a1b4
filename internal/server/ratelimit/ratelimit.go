// Package ratelimit throttles requests per client with a sliding window held
// in process memory or in Redis.
package ratelimit

import (
	"context"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/application-tracker/internal/logging"
)

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Store counts attempts per key. Take records one attempt when the rule
// still allows it.
type Store interface {
	Take(ctx context.Context, key string, rule Rule, now time.Time) (Info, error)
}

// Limiter applies Config to requests using a Store.
type Limiter struct {
	store  Store
	config *Config
	logger *zap.Logger
	now    func() time.Time
}

// NewLimiter creates a new rate limiter with the given configuration.
func NewLimiter(config *Config, store Store, logger *zap.Logger) *Limiter {
	if config == nil {
		config = &Config{
			Enabled: true,
			Default: Rule{Name: "default", Limit: DefaultLimit, Window: DefaultWindow},
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{store: store, config: config, logger: logger, now: time.Now}
}

// WithClock replaces the time source.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	if now != nil {
		l.now = now
	}
	return l
}

// Allow decides whether clientID may call method on path. Store failures
// let the request through.
func (l *Limiter) Allow(ctx context.Context, clientID, path, method string) Info {
	if !l.config.Enabled || l.store == nil || l.config.Whitelist[clientID] {
		return Info{Allowed: true}
	}
	if l.config.Blacklist[clientID] {
		return Info{Allowed: false}
	}

	rule := MatchEndpoint(path, method, l.config.EndpointConfigs)
	if rule == nil {
		rule = &l.config.Default
	}
	if rule.Limit <= 0 || rule.Window <= 0 {
		return Info{Allowed: true}
	}

	info, err := l.store.Take(ctx, rule.Name+":"+clientID, *rule, l.now())
	if err != nil {
		l.logger.Warn("rate limit check failed",
			zap.String("rule", rule.Name),
			zap.String("client_ip", logging.MaskIP(clientID)),
			zap.Error(err))
		return Info{Allowed: true}
	}
	if !info.Allowed {
		l.logger.Info("rate limit exceeded",
			zap.String("rule", rule.Name),
			zap.String("client_ip", logging.MaskIP(clientID)),
			zap.Duration("retry_after", info.RetryAfter))
	}
	return info
}

// Middleware enforces the limiter, setting X-RateLimit-* headers on limited
// routes and handing denied requests to reject after setting Retry-After.
func (l *Limiter) Middleware(reject func(http.ResponseWriter, *http.Request, Info)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := l.Allow(r.Context(), ForwardedClientIP(r, l.config.TrustedProxies), r.URL.Path, r.Method)

			if info.Limit > 0 {
				h := w.Header()
				h.Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
				h.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
				h.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
			}
			if !info.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds(info.RetryAfter)))
				reject(w, r, info)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RetryAfterSeconds rounds d up to whole seconds, at least 1.
func RetryAfterSeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 1)
}

// ClientIP returns the host part of the request's remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ForwardedClientIP returns the address a request is accounted to. The
// X-Forwarded-For header is read only when the peer is a trusted proxy, and
// then its rightmost hop outside the trusted set is the client.
func ForwardedClientIP(r *http.Request, trusted []netip.Prefix) string {
	peer := ClientIP(r)
	if !isTrusted(peer, trusted) {
		return peer
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if _, err := netip.ParseAddr(hop); err != nil {
			return peer
		}
		if !isTrusted(hop, trusted) {
			return hop
		}
	}
	return peer
}

func isTrusted(ip string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
