package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSConfig is the cross-origin policy for browser callers such as the
// front-desk console. Empty header, method and max-age fields take the
// defaults below.
type CORSConfig struct {
	// AllowedOrigins is an allowlist; "*" echoes any Origin back.
	AllowedOrigins []string
	AllowedHeaders []string
	AllowedMethods []string
	ExposedHeaders []string
	MaxAge         time.Duration
}

var (
	defaultCORSHeaders = []string{"Content-Type", "X-Request-ID"}
	defaultCORSMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	defaultCORSExposed = []string{"X-Request-ID", "Retry-After"}
)

func (c CORSConfig) withDefaults() CORSConfig {
	if len(c.AllowedHeaders) == 0 {
		c.AllowedHeaders = defaultCORSHeaders
	}
	if len(c.AllowedMethods) == 0 {
		c.AllowedMethods = defaultCORSMethods
	}
	if len(c.ExposedHeaders) == 0 {
		c.ExposedHeaders = defaultCORSExposed
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 10 * time.Minute
	}
	return c
}

// CORS applies cfg. Requests from origins outside the allowlist pass through
// without CORS headers; preflights from allowed origins end with 204.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()
	allowAny := false
	allow := map[string]struct{}{}
	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		switch origin {
		case "":
		case "*":
			allowAny = true
		default:
			allow[origin] = struct{}{}
		}
	}

	allowedHeaders := strings.Join(cfg.AllowedHeaders, ", ")
	allowedMethods := strings.ToUpper(strings.Join(cfg.AllowedMethods, ", "))
	exposedHeaders := strings.Join(cfg.ExposedHeaders, ", ")
	maxAge := strconv.Itoa(int(cfg.MaxAge / time.Second))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			_, listed := allow[origin]
			allowed := origin != "" && (allowAny || listed)
			if allowed {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Headers", allowedHeaders)
				h.Set("Access-Control-Allow-Methods", allowedMethods)
				h.Set("Access-Control-Expose-Headers", exposedHeaders)
				h.Set("Access-Control-Max-Age", maxAge)
			}

			if allowed && r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
