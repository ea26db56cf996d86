package server

import "net/http"

// Routes returns a ServeMux with every application route.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.HealthHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	mux.HandleFunc("/test", s.TestPageHandler)
	mux.HandleFunc("/api/chat/status", s.StatusHandler)
	return mux
}
