package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Routes returns the application router.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.WebSocketHandler)
	r.HandleFunc("/healthz", s.HealthHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/api/push/public-key", s.PublicKeyHandler).Methods(http.MethodGet)
	r.HandleFunc("/", s.HealthHandler).Methods(http.MethodGet, http.MethodHead)
	return r
}
