package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/sambeau/scenery/config"
)

// corsMiddleware adds Cross-Origin Resource Sharing headers for browser
// editors served from another origin
type corsMiddleware struct {
	config config.CORSConfig
}

func newCORSMiddleware(cfg config.CORSConfig) *corsMiddleware {
	return &corsMiddleware{config: cfg}
}

// Handler wraps next with CORS handling
func (m *corsMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" || !m.config.AllowsOrigin(origin) {
			next.ServeHTTP(w, r)
			return
		}

		if m.allowsAny() {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Add("Vary", "Origin")

		if r.Method == http.MethodOptions {
			m.handlePreflight(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *corsMiddleware) allowsAny() bool {
	for _, o := range m.config.Origins {
		if o == "*" {
			return true
		}
	}
	return false
}

func (m *corsMiddleware) handlePreflight(w http.ResponseWriter, r *http.Request) {
	methods := m.config.Methods
	if len(methods) == 0 {
		methods = []string{"GET", "HEAD", "DELETE"}
	}
	w.Header().Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))

	if len(m.config.Headers) > 0 {
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(m.config.Headers, ", "))
	} else if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
		w.Header().Set("Access-Control-Allow-Headers", requested)
	}

	if m.config.MaxAge > 0 {
		w.Header().Set("Access-Control-Max-Age", strconv.Itoa(m.config.MaxAge))
	}
	w.WriteHeader(http.StatusNoContent)
}

// checkOrigin accepts websocket upgrades from the same host or an allowed
// origin
func (m *corsMiddleware) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || m.config.AllowsOrigin(origin) {
		return true
	}
	return strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://") == r.Host
}
