package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"moneymarket/observability"
)

const (
	throttleClient  = "client_rate"
	throttleAccount = "account_quota"
	limiterIdleTTL  = 5 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet hands out one token bucket per key and forgets buckets idle for
// longer than limiterIdleTTL.
type limiterSet struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	entries   map[string]*limiterEntry
	lastSweep time.Time
}

func newLimiterSet(perMinute, burst int, now func() time.Time) *limiterSet {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &limiterSet{
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		now:     now,
		entries: make(map[string]*limiterEntry),
	}
}

func (s *limiterSet) allow(key string) bool {
	if s == nil {
		return true
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastSweep) > limiterIdleTTL {
		for k, entry := range s.entries {
			if now.Sub(entry.lastSeen) > limiterIdleTTL {
				delete(s.entries, k)
			}
		}
		s.lastSweep = now
	}
	entry, ok := s.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.entries[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// throttle applies a per client IP rate and a per account request quota.
type throttle struct {
	clients  *limiterSet
	accounts *limiterSet
}

func newThrottle(requestsPerMinute, burst int, accountQuotaPerMin uint32, now func() time.Time) *throttle {
	quota := int(accountQuotaPerMin)
	return &throttle{
		clients:  newLimiterSet(requestsPerMinute, burst, now),
		accounts: newLimiterSet(quota, quota, now),
	}
}

func (t *throttle) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.clients.allow(clientID(r)) {
			observability.ModuleMetrics().RecordThrottle(moduleName, throttleClient)
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// allowAccount charges one request against the quota of the acting account.
func (t *throttle) allowAccount(account string) bool {
	if t.accounts.allow(account) {
		return true
	}
	observability.ModuleMetrics().RecordThrottle(moduleName, throttleAccount)
	return false
}

// clientID prefers the address resolved by the RealIP middleware and falls
// back to the first forwarded hop.
func clientID(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if parsed := net.ParseIP(strings.TrimSpace(first)); parsed != nil {
			return parsed.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
