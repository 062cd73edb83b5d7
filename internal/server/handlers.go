package server

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/trio/internal/config"
	"github.com/Tyrowin/trio/internal/logging"
)

// Server holds the HTTP handlers around the hub.
type Server struct {
	hub       *Hub
	serverCfg config.ServerConfig
	pushCfg   config.PushConfig
	origins   originPolicy
	upgrader  websocket.Upgrader
	log       zerolog.Logger
}

// New creates the HTTP surface for hub.
func New(cfg *config.Config, hub *Hub) *Server {
	s := &Server{
		hub:       hub,
		serverCfg: cfg.Server,
		pushCfg:   cfg.Push,
		origins:   newOriginPolicy(cfg.Server.AllowedOrigins),
		log:       logging.With().Str("component", "http").Logger(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// WebSocketHandler upgrades GET requests to WebSocket connections and hands
// the new client to the hub.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr, s.serverCfg)
	if !s.hub.Register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
	}
}

// HealthHandler responds with a plain text status line.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "trio server is running!")
}

type publicKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

// PublicKeyHandler returns the VAPID public key browsers subscribe with.
// It answers 404 when push is disabled.
func (s *Server) PublicKeyHandler(w http.ResponseWriter, _ *http.Request) {
	if !s.pushCfg.Enabled || s.pushCfg.VAPIDPublicKey == "" {
		http.Error(w, "Push notifications are not enabled.", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(publicKeyResponse{PublicKey: s.pushCfg.VAPIDPublicKey}); err != nil {
		s.log.Warn().Err(err).Msg("failed to write public key response")
	}
}
