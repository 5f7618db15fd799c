package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/scythe504/mathdash-backend/internal/highscore"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	// Apply CORS middleware
	r.Use(s.corsMiddleware)

	r.HandleFunc("/", s.HelloWorldHandler)
	r.HandleFunc("/health", s.HealthHandler)

	r.HandleFunc("/rooms-available", s.GetRoomToJoin)

	r.HandleFunc("/api/highscores", s.GetHighscores).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/highscores", s.PostHighscore).Methods(http.MethodPost, http.MethodOptions)

	r.HandleFunc("/ws/{roomId}", s.gateway.HandleWebSocket)

	return r
}

// CORS middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CORS Headers
		w.Header().Set("Access-Control-Allow-Origin", "*") // Wildcard allows all origins
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Credentials", "false") // Credentials not allowed with wildcard origins

		// If it's a websocket upgrade, skip further CORS checks
		if strings.ToLower(r.Header.Get("Upgrade")) == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) HelloWorldHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "mathdash server running"})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Health(r.Context()); err != nil {
			log.Error().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "up"})
}

func (s *Server) GetRoomToJoin(w http.ResponseWriter, r *http.Request) {
	roomID := s.registry.JoinableRoom()
	if roomID == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no joinable rooms available"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"roomId": roomID})
}

func (s *Server) GetHighscores(w http.ResponseWriter, r *http.Request) {
	scores, err := s.store.All(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to read highscores")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read highscores"})
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

// PostHighscore appends a finished single-player result and responds
// with the updated leaderboards, mirroring GET.
func (s *Server) PostHighscore(w http.ResponseWriter, r *http.Request) {
	var entry highscore.Entry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	if !highscore.ValidGameType(entry.GameType) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid game type"})
		return
	}

	if err := s.store.Save(r.Context(), entry); err != nil {
		log.Error().Err(err).Msg("failed to save highscore")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save highscore"})
		return
	}

	scores, err := s.store.All(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to read highscores")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read highscores"})
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
