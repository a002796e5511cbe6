// Package middleware provides HTTP middleware for the annotation API:
// CORS, request logging, and rate limiting.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig controls cross-origin access to the API.
type CORSConfig struct {
	// AllowedOrigins lists origins permitted to call the API. "*" allows
	// every origin, which is incompatible with AllowCredentials.
	AllowedOrigins []string

	AllowedMethods []string
	AllowedHeaders []string

	// ExposedHeaders are response headers the browser may surface to
	// client scripts.
	ExposedHeaders []string

	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int

	// AllowWildcard enables subdomain patterns such as *.example.com in
	// AllowedOrigins.
	AllowWildcard bool
}

// DefaultCORSConfig allows the methods and headers the annotation endpoints
// use. No origins are allowed until the deployment configures them.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
		},
		AllowCredentials: false,
		MaxAge:           86400,
		AllowWildcard:    false,
	}
}

// CORS returns middleware that answers preflight requests and stamps allowed
// responses with the configured CORS headers. Requests from origins outside
// the allow list pass through untouched; the browser rejects them client-side.
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	methods := strings.Join(config.AllowedMethods, ", ")
	headers := strings.Join(config.AllowedHeaders, ", ")
	exposed := strings.Join(config.ExposedHeaders, ", ")
	maxAge := strconv.Itoa(config.MaxAge)

	allowed := make(map[string]bool, len(config.AllowedOrigins))
	var wildcardSuffixes []string
	allowAll := false

	for _, origin := range config.AllowedOrigins {
		switch {
		case origin == "*":
			allowAll = true
		case config.AllowWildcard && strings.HasPrefix(origin, "*."):
			wildcardSuffixes = append(wildcardSuffixes, origin[1:])
		default:
			allowed[strings.ToLower(origin)] = true
		}
	}

	originAllowed := func(origin string) bool {
		if allowAll || allowed[strings.ToLower(origin)] {
			return true
		}
		for _, suffix := range wildcardSuffixes {
			if strings.HasSuffix(strings.ToLower(origin), suffix) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Same-origin and non-browser requests carry no Origin header.
			if origin == "" || !originAllowed(origin) {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Origin")
			w.Header().Add("Vary", "Access-Control-Request-Method")
			w.Header().Add("Vary", "Access-Control-Request-Headers")

			if allowAll && !config.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}

			if config.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", methods)
				w.Header().Set("Access-Control-Allow-Headers", headers)
				if config.MaxAge > 0 {
					w.Header().Set("Access-Control-Max-Age", maxAge)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if exposed != "" {
				w.Header().Set("Access-Control-Expose-Headers", exposed)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CORSMiddleware is the router-facing wrapper around CORS.
type CORSMiddleware struct {
	handler func(http.Handler) http.Handler
}

func NewCORSMiddleware(config CORSConfig) *CORSMiddleware {
	return &CORSMiddleware{handler: CORS(config)}
}

func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return m.handler(next)
}
