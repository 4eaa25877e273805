package api

import (
	"net/http"
)

const corsAllowHeaders = "authorization, x-client-info, apikey, content-type"

// OriginGate admits browser calls from the app origin only.
type OriginGate struct {
	origin string
}

func NewOriginGate(origin string) *OriginGate {
	return &OriginGate{origin: origin}
}

func (g *OriginGate) allowed(origin string) bool {
	return origin != "" && origin == g.origin
}

func (g *OriginGate) setHeaders(w http.ResponseWriter, origin, methods string) {
	h := w.Header()
	if g.allowed(origin) {
		h.Set("Access-Control-Allow-Origin", origin)
	} else {
		h.Set("Access-Control-Allow-Origin", "null")
	}
	h.Add("Vary", "Origin")
	h.Set("Access-Control-Allow-Methods", methods+", OPTIONS")
	h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
}

// Only wraps a single-method endpoint: preflight answers 204, other methods
// 405, and a foreign origin 403 before next runs.
func (g *OriginGate) Only(method string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		g.setHeaders(w, origin, method)

		switch {
		case r.Method == http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
			return
		case r.Method != method:
			w.Header().Set("Allow", method+", OPTIONS")
			writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
			return
		case !g.allowed(origin):
			writeError(w, http.StatusForbidden, "Origin not allowed")
			return
		}
		next.ServeHTTP(w, r)
	})
}
