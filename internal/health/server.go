package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/john/popupchat/internal/message"
	"github.com/john/popupchat/internal/poller"
)

// Source is the read side the status server reports on
type Source interface {
	Snapshot() ([]message.ChatRecord, error)
	Len() int
}

// StatsProvider reports poller counters
type StatsProvider interface {
	Stats() poller.Stats
}

// Status is the /status payload
type Status struct {
	Messages int `json:"messages"`
	poller.Stats
}

// Server provides HTTP health and status endpoints
type Server struct {
	log    *slog.Logger
	server *http.Server
}

// New creates a new status server
func New(log *slog.Logger, addr string, source Source, stats StatsProvider) *Server {
	return &Server{
		log: log,
		server: &http.Server{
			Addr:    addr,
			Handler: Handler(log, source, stats),
		},
	}
}

// Handler routes /health, /status and /messages
func Handler(log *slog.Logger, source Source, stats StatsProvider) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(log, w, Status{Messages: source.Len(), Stats: stats.Stats()})
	})

	mux.HandleFunc("GET /messages", func(w http.ResponseWriter, r *http.Request) {
		records, err := source.Snapshot()
		if err != nil {
			log.Error("Cannot read messages", "error", err)
			records = []message.ChatRecord{}
		}
		writeJSON(log, w, records)
	})

	return mux
}

func writeJSON(log *slog.Logger, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("Failed to write response", "error", err)
	}
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	s.log.Info("Status server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down status server...")
	return s.server.Shutdown(ctx)
}
