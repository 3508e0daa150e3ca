// Package trace assigns request ids, logs each request and keeps simple
// request counters.
package trace

import (
	"context"
	"encoding/hex"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"glowbudget/internal/log"
)

// RequestIDHeader echoes the id back to the client.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// Metrics is a point-in-time copy of the request counters.
type Metrics struct {
	TotalRequests       int64
	ServerErrors        int64
	TotalResponseTimeUs int64
}

// AverageResponseTime returns the mean handler time.
func (m Metrics) AverageResponseTime() time.Duration {
	if m.TotalRequests == 0 {
		return 0
	}
	return time.Duration(m.TotalResponseTimeUs/m.TotalRequests) * time.Microsecond
}

type counters struct {
	requests     atomic.Int64
	serverErrors atomic.Int64
	elapsedUs    atomic.Int64
}

// Middleware tags requests with an id and a request logger and counts them.
type Middleware struct {
	logger   *log.Logger
	clientIP func(*http.Request) string
	counts   counters
}

// NewMiddleware creates a trace middleware. A nil clientIP uses ClientIP.
func NewMiddleware(logger *log.Logger, clientIP func(*http.Request) string) *Middleware {
	if clientIP == nil {
		clientIP = ClientIP
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	return &Middleware{logger: logger, clientIP: clientIP}
}

// Middleware wraps next. Handlers reach the request logger through
// log.FromContext and the id through GetRequestID.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := GenerateRequestID()
		ip := m.clientIP(r)

		reqLog := m.logger.With(log.FieldRequestID, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = log.NewContext(ctx, reqLog)
		r = r.WithContext(ctx)
		w.Header().Set(RequestIDHeader, id)

		sl := log.NewStructuredLogger(reqLog)
		sl.LogHTTPStart(ctx, r, ip)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		elapsed := time.Since(start)
		m.counts.requests.Add(1)
		m.counts.elapsedUs.Add(elapsed.Microseconds())
		if sw.status >= http.StatusInternalServerError {
			m.counts.serverErrors.Add(1)
		}
		sl.LogHTTPEnd(ctx, r, sw.status, elapsed.Milliseconds(), ip)
	})
}

// GetMetrics returns the current counters.
func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:       m.counts.requests.Load(),
		ServerErrors:        m.counts.serverErrors.Load(),
		TotalResponseTimeUs: m.counts.elapsedUs.Load(),
	}
}

// statusWriter remembers the first status code written.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.written {
		sw.status = code
		sw.written = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.written = true
	return sw.ResponseWriter.Write(b)
}

func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// GenerateRequestID returns "req_" followed by 16 hex characters.
func GenerateRequestID() string {
	u := uuid.New()
	return "req_" + hex.EncodeToString(u[:8])
}

// GetRequestID returns the id set by the middleware, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Peers in these ranges may set forwarding headers.
var trustedProxies = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
}

func trusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range trustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the peer address, or the first forwarded address when the
// peer is a trusted proxy.
func ClientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	addr, err := netip.ParseAddr(peer)
	if err != nil || !trusted(addr) {
		return peer
	}

	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	if fwd, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
		return fwd.String()
	}
	if xri, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return xri.String()
	}
	return peer
}
