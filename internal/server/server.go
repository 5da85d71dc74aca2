// Package server exposes one shell session over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fentz26/simshell/internal/commands"
	"github.com/fentz26/simshell/internal/models"
	"github.com/fentz26/simshell/internal/sessionlog"
	"github.com/fentz26/simshell/internal/shell"
)

// Version is reported by /health.
const Version = "0.1.0"

// dispatchTimeout bounds one command, simulated latency and oracle included.
const dispatchTimeout = 60 * time.Second

// Server provides the HTTP API for a session.
type Server struct {
	session *shell.Session
	addr    string
	logger  *zap.Logger
	server  *http.Server
}

// New creates a server for session listening on addr.
func New(session *shell.Session, addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		session: session,
		addr:    addr,
		logger:  logger,
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/dispatch", s.handleDispatch)
	mux.HandleFunc("/log", s.handleLog)
	mux.HandleFunc("/variables", s.handleVariables)
	mux.HandleFunc("/commands", s.handleCommands)
	mux.HandleFunc("/categories", s.handleCategories)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: dispatchTimeout + 10*time.Second,
	}

	s.logger.Info("starting simshell server", zap.String("addr", s.addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// DispatchRequest is the body of POST /dispatch.
type DispatchRequest struct {
	Command string `json:"command"`
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dispatchTimeout)
	defer cancel()

	resp, err := s.session.Dispatch(ctx, req.Command)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, shell.ErrBusy):
			status = http.StatusConflict
		case errors.Is(err, shell.ErrEmptyCommand):
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	csv, err := s.session.ExportCSV()
	if errors.Is(err, sessionlog.ErrEmptyLog) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="session_log.csv"`)
	w.Write([]byte(csv))
}

func (s *Server) handleVariables(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	vars, err := s.session.Variables(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if vars == nil {
		vars = []models.Variable{}
	}
	writeJSON(w, http.StatusOK, vars)
}

// CommandInfo describes one command for GET /commands.
type CommandInfo struct {
	Name        string `json:"name"`
	Usage       string `json:"usage"`
	Description string `json:"description"`
	Permission  string `json:"permission,omitempty"`
	Custom      bool   `json:"custom,omitempty"`
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var out []CommandInfo
	for _, def := range commands.Builtins() {
		out = append(out, CommandInfo{
			Name:        def.Name,
			Usage:       def.Usage(),
			Description: def.Description,
			Permission:  def.Permission,
		})
	}
	for _, c := range s.session.CustomCommands() {
		out = append(out, CommandInfo{
			Name:        c.Name,
			Usage:       c.Short,
			Description: c.Description,
			Custom:      true,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// CategoriesRequest is the body of PUT /categories.
type CategoriesRequest struct {
	Categories  []string `json:"categories"`
	OverrideAll *bool    `json:"override_all,omitempty"`
}

// CategoriesResponse reports the session routing state.
type CategoriesResponse struct {
	Categories  []models.Category `json:"categories"`
	OverrideAll bool              `json:"override_all"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req CategoriesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		cats := make([]models.Category, 0, len(req.Categories))
		for _, name := range req.Categories {
			c, err := models.ParseCategory(name)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			cats = append(cats, c)
		}
		if err := s.session.SetCategories(cats); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.OverrideAll != nil {
			s.session.SetOverrideAll(*req.OverrideAll)
		}
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, CategoriesResponse{
		Categories:  s.session.Categories(),
		OverrideAll: s.session.OverrideAll(),
	})
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := HealthResponse{
		OK:      true,
		DB:      "ok",
		Version: Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	if err := s.session.Ping(r.Context()); err != nil {
		health.OK = false
		health.DB = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
