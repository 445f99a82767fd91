// Package api exposes the session lifecycle over HTTP and maps lifecycle
// errors onto status codes. No business rules live here.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"pairboard/internal/database"
	"pairboard/internal/session"
	"pairboard/pkg/types"
)

// ConnectionStats reports live connection counts for the health endpoint.
type ConnectionStats interface {
	Stats() map[string]int
}

// Server is the HTTP surface of the service.
type Server struct {
	coordinator *session.Coordinator
	store       database.SessionStore
	stats       ConnectionStats
	verifier    *TokenVerifier
	router      *mux.Router
	production  bool
	log         zerolog.Logger
}

// NewServer creates the HTTP server. wsHandler serves the real-time
// endpoint; production suppresses internal error detail in responses.
func NewServer(
	coordinator *session.Coordinator,
	store database.SessionStore,
	stats ConnectionStats,
	verifier *TokenVerifier,
	wsHandler http.HandlerFunc,
	production bool,
	log zerolog.Logger,
) *Server {
	s := &Server{
		coordinator: coordinator,
		store:       store,
		stats:       stats,
		verifier:    verifier,
		router:      mux.NewRouter(),
		production:  production,
		log:         log.With().Str("component", "api").Logger(),
	}

	r := s.router
	r.Use(s.corsMiddleware)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/ws", wsHandler).Methods(http.MethodGet)

	// Fixed paths register before the {id} routes so "active" and friends
	// are never captured as session ids.
	r.HandleFunc("/sessions/active", s.listActive).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/sessions/my-recent", s.requireAuth(s.listMyRecent)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/sessions/end-all", s.requireAdmin(s.endAll)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/sessions", s.requireAuth(s.create)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/sessions/{id}", s.requireAuth(s.get)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/sessions/{id}/join", s.requireAuth(s.join)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/sessions/{id}/leave", s.requireAuth(s.leave)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/sessions/{id}/end", s.requireAuth(s.end)).Methods(http.MethodPost, http.MethodOptions)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type createRequest struct {
	Problem    string `json:"problem"`
	Difficulty string `json:"difficulty"`
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	created, err := s.coordinator.Create(r.Context(), identity.ID, req.Problem, req.Difficulty)
	if err != nil {
		s.writeLifecycleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"session": created})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	found, err := s.coordinator.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeLifecycleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"session": found})
}

func (s *Server) listActive(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.coordinator.ListActive(r.Context())
	if err != nil {
		s.writeLifecycleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) listMyRecent(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	sessions, err := s.coordinator.ListRecentFor(r.Context(), identity.ID)
	if err != nil {
		s.writeLifecycleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) join(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	joined, err := s.coordinator.Join(r.Context(), mux.Vars(r)["id"], identity.ID)
	if err != nil {
		s.writeLifecycleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"session": joined})
}

func (s *Server) leave(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	left, err := s.coordinator.Leave(r.Context(), mux.Vars(r)["id"], identity.ID)
	if err != nil {
		s.writeLifecycleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"session": left, "message": "Left session"})
}

func (s *Server) end(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	ended, err := s.coordinator.End(r.Context(), mux.Vars(r)["id"], identity.ID)
	if err != nil {
		s.writeLifecycleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"session": ended, "message": "Session ended"})
}

func (s *Server) endAll(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	results, err := s.coordinator.EndAll(r.Context(), identity.ID)
	if err != nil {
		s.writeLifecycleError(w, err)
		return
	}
	if results == nil {
		results = []types.EndAllResult{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type healthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Repository  string         `json:"repository"`
	Connections map[string]int `json:"connections"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:      "healthy",
		Timestamp:   time.Now().UTC(),
		Repository:  "healthy",
		Connections: s.stats.Stats(),
	}
	status := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		resp.Status = "unhealthy"
		resp.Repository = err.Error()
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

// writeLifecycleError translates coordinator errors into the documented
// status codes. Anything unrecognized is an upstream failure and surfaces
// as a 500.
func (s *Server) writeLifecycleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		s.writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, session.ErrMissingMetadata),
		errors.Is(err, session.ErrSessionCompleted),
		errors.Is(err, session.ErrSelfJoin),
		errors.Is(err, session.ErrNoParticipant),
		errors.Is(err, session.ErrAlreadyCompleted):
		s.writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, session.ErrNotParticipant), errors.Is(err, session.ErrNotHost):
		s.writeError(w, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, session.ErrSessionFull):
		s.writeError(w, http.StatusConflict, err.Error(), nil)
	default:
		s.log.Error().Err(err).Msg("internal error")
		s.writeError(w, http.StatusInternalServerError, "Internal Server Error", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string, detail error) {
	body := map[string]any{"message": message}
	// Internal detail stays out of production responses.
	if detail != nil && !s.production {
		body["error"] = detail.Error()
	}
	s.writeJSON(w, status, body)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Accept")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
