package api

import (
	"net/http"
	"strings"
)

const (
	corsAllowMethods  = "GET, POST, PUT, PATCH, DELETE"
	corsAllowHeaders  = "Authorization, Content-Type"
	corsExposeHeaders = "X-Request-ID, Retry-After"
	corsMaxAge        = "600"
)

// corsOrigins is the set of browser origins allowed to call the API.
type corsOrigins struct {
	any     bool
	origins map[string]struct{}
}

func newCORSOrigins(list []string) corsOrigins {
	c := corsOrigins{origins: make(map[string]struct{}, len(list))}
	for _, o := range list {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			c.any = true
		default:
			c.origins[o] = struct{}{}
		}
	}
	return c
}

func (c corsOrigins) enabled() bool { return c.any || len(c.origins) > 0 }

func (c corsOrigins) allows(origin string) bool {
	if c.any {
		return true
	}
	_, ok := c.origins[origin]
	return ok
}

// CORSMiddleware lets configured browser origins use the collection API.
// With no origins configured requests pass through untouched. A preflight
// from an allowed origin is answered here and never reaches the routes.
func (s *Server) CORSMiddleware(next http.Handler) http.Handler {
	allowed := newCORSOrigins(s.config.CORSAllowedOrigins)
	if !allowed.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")
		origin := r.Header.Get("Origin")
		if origin == "" || !allowed.allows(origin) {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Expose-Headers", corsExposeHeaders)

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
