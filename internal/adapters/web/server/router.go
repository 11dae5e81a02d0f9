package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lcalzada-xor/wlcoord/internal/adapters/web/middleware"
)

// SetupRoutes registers every route on the root router. Method-restricted
// routes live there rather than on a "/api" subrouter so that a method
// mismatch is reported as 405 instead of 404.
func SetupRoutes(s *Server) http.Handler {
	r := mux.NewRouter()
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	r.HandleFunc("/api/links", s.LinkHandler.HandleList).Methods(http.MethodGet)
	r.HandleFunc("/api/links/{iface}", s.LinkHandler.HandleGet).Methods(http.MethodGet)
	r.HandleFunc("/api/datapath", s.DataPathHandler.HandleList).Methods(http.MethodGet)
	r.HandleFunc("/api/journal", s.JournalHandler.HandleList).Methods(http.MethodGet)

	// Event injection (token protected, rate limited)
	limiter := middleware.NewRateLimiter(s.opts.EventRate, time.Minute)
	inject := middleware.RateLimitMiddleware(limiter)(
		middleware.TokenAuth(s.opts.TokenHash)(http.HandlerFunc(s.LinkHandler.HandlePostEvent)))
	r.Handle("/api/links/{iface}/events", inject).Methods(http.MethodPost)

	r.HandleFunc("/ws", s.WSManager.HandleWebSocket)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
