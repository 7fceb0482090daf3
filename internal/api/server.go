// Package api exposes the HTTP surface: auth routes, the upload-to-summary
// pipeline, dashboard history/metrics, and static artifact serving.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dverbeek/lecturecast/internal/artifact"
	"github.com/dverbeek/lecturecast/internal/config"
	"github.com/dverbeek/lecturecast/internal/ledger"
	"github.com/dverbeek/lecturecast/internal/model"
	"github.com/dverbeek/lecturecast/internal/queue"
)

// AccountStore is the narrow credential-store surface the handlers depend on.
// A nil store degrades auth routes to 503 and the pipeline to guest-only.
type AccountStore interface {
	Create(ctx context.Context, acc *model.Account) error
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	GetByID(ctx context.Context, id string) (*model.Account, error)
	Save(ctx context.Context, acc *model.Account) error
	AppendHistory(ctx context.Context, id string, entry model.UploadHistoryEntry) error
	Ping(ctx context.Context) error
}

// Invoker runs one synchronous summarization pass.
type Invoker interface {
	Invoke(ctx context.Context, modelSize model.ModelSize) error
}

// ArchiveEnqueuer hands completed artifacts to the archival queue.
type ArchiveEnqueuer interface {
	Enqueue(ctx context.Context, payload queue.ArchivePayload) error
}

// Server hosts the HTTP handlers. accounts and archiver may be nil when the
// corresponding backend is unconfigured.
type Server struct {
	cfg      *config.Config
	log      *slog.Logger
	accounts AccountStore
	ledger   *ledger.Store
	invoker  Invoker
	reader   *artifact.Reader
	archiver ArchiveEnqueuer

	server *http.Server
	once   sync.Once

	// invokeMu serializes invocations: the summarizer writes to fixed paths
	// under the output directory, so concurrent runs would cross-contaminate
	// each other's artifacts.
	invokeMu sync.Mutex
}

// New constructs a Server.
func New(cfg *config.Config, log *slog.Logger, accounts AccountStore, ledgerStore *ledger.Store, invoker Invoker, reader *artifact.Reader, archiver ArchiveEnqueuer) *Server {
	return &Server{
		cfg:      cfg,
		log:      log,
		accounts: accounts,
		ledger:   ledgerStore,
		invoker:  invoker,
		reader:   reader,
		archiver: archiver,
	}
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:    s.cfg.Address,
			Handler: s.Handler(),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.log.Info("api listening", "addr", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler builds the full route tree. Exposed for httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/signup", s.handleSignup)
	mux.HandleFunc("/api/auth/login", s.handleLogin)
	mux.HandleFunc("/api/auth/me", s.handleMe)
	mux.HandleFunc("/api/auth/profile", s.handleProfile)
	mux.HandleFunc("/api/summarize", s.handleSummarize)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.Handle("/outputs/", http.StripPrefix("/outputs/", http.FileServer(http.Dir(s.cfg.OutputDir))))
	mux.Handle("/", http.FileServer(http.Dir(s.cfg.PublicDir)))
	return corsMiddleware(s.loggingMiddleware(mux))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, s.ledger.ComputeMetrics())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, s.ledger.List())
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message":   "I received your message: \"" + req.Message + "\". This is a placeholder response.",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	connected := false
	if s.accounts != nil {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		connected = s.accounts.Ping(pingCtx) == nil
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"port":   s.cfg.Port,
		"database": map[string]bool{
			"connected":  connected,
			"uriPresent": s.cfg.DatabaseConfigured(),
		},
	})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
