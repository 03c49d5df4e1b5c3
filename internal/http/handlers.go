package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/fleet-loads/internal/accept"
	"github.com/example/fleet-loads/internal/dispatch"
	"github.com/example/fleet-loads/internal/models"
	"github.com/example/fleet-loads/internal/notify"
	"github.com/example/fleet-loads/internal/storage"
	"github.com/example/fleet-loads/internal/view"
)

type Server struct {
	Store    *storage.LoadStore
	Notifier *notify.Controller
	Accept   *accept.Service
	Hub      *dispatch.Hub
	mux      *mux.Router
	logger   *slog.Logger
}

// NewServer wires the dashboard API. Hub may be nil, in which case /ws is
// not served.
func NewServer(store *storage.LoadStore, notifier *notify.Controller, svc *accept.Service, hub *dispatch.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{Store: store, Notifier: notifier, Accept: svc, Hub: hub, mux: mux.NewRouter(), logger: logger}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/loads", s.handleListLoads).Methods("GET")
	api.HandleFunc("/loads/refresh", s.handleRefresh).Methods("POST")
	api.HandleFunc("/loads/{id}/accept", s.handleAccept).Methods("POST")
	api.HandleFunc("/notification", s.handleGetNotification).Methods("GET")
	api.HandleFunc("/notification", s.handleClearNotification).Methods("DELETE")

	s.mux.HandleFunc("/healthz", s.handleHealthz).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	if s.Hub != nil {
		s.mux.HandleFunc("/ws", s.handleWS)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// State is the full dashboard view pushed over /ws.
type State struct {
	Loads        []view.Card          `json:"loads"`
	Fallback     bool                 `json:"fallback"`
	Notification *models.Notification `json:"notification"`
}

func (s *Server) Snapshot() any {
	st := State{Loads: view.Cards(s.Store.Loads()), Fallback: s.Store.FromFallback()}
	if n, ok := s.Notifier.Current(); ok {
		st.Notification = &n
	}
	return st
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		s.logger.Debug("healthz write failed", "error", err)
	}
}

func (s *Server) handleListLoads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"loads":    view.Cards(s.Store.Loads()),
		"fallback": s.Store.FromFallback(),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	// a listing failure is absorbed by the fallback set, never reported as an error
	_ = s.Store.Refresh(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(s.Store.Loads()),
		"fallback": s.Store.FromFallback(),
	})
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	load, ok := s.Store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown load")
		return
	}

	outcome, _ := s.Accept.Accept(r.Context(), load)
	status := http.StatusOK
	switch outcome {
	case accept.OutcomeIneligible, accept.OutcomeInFlight:
		status = http.StatusConflict
	case accept.OutcomeFailed:
		status = http.StatusBadGateway
	}

	current, _ := s.Store.Get(id)
	writeJSON(w, status, map[string]any{
		"outcome": outcome.String(),
		"load":    view.CardFor(current),
	})
}

func (s *Server) handleGetNotification(w http.ResponseWriter, r *http.Request) {
	n, ok := s.Notifier.Current()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleClearNotification(w http.ResponseWriter, r *http.Request) {
	s.Notifier.Clear()
	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	id := s.Hub.Add(conn)
	// clients only listen; reading detects the close
	go func() {
		defer s.Hub.Remove(id)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
