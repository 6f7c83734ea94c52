package api

import (
	"net/http"
	"strings"
)

// CORSHandler wraps a handler with cross origin resource sharing headers,
// answering preflight OPTIONS requests.
type CORSHandler struct {
	Handler             http.Handler
	SupportsCredentials bool
	AllowHeaders        func(headers []string) bool
}

func (h CORSHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	origin := req.Header.Get("Origin")
	if origin == "" {
		h.Handler.ServeHTTP(w, req)
		return
	}

	w.Header().Set("Access-Control-Allow-Origin", origin)
	if h.SupportsCredentials {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}

	if req.Method == "OPTIONS" && req.Header.Get("Access-Control-Request-Method") != "" {
		// preflight
		requested := []string{}
		for _, header := range strings.Split(req.Header.Get("Access-Control-Request-Headers"), ",") {
			header = strings.ToLower(strings.TrimSpace(header))
			if header != "" {
				requested = append(requested, header)
			}
		}
		if h.AllowHeaders != nil && !h.AllowHeaders(requested) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(requested, ", "))
		w.WriteHeader(http.StatusOK)
		return
	}

	h.Handler.ServeHTTP(w, req)
}
