// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultListen is the default bind address.
	DefaultListen = "127.0.0.1:8130"

	// DefaultRatePerMinute caps send_message events per connection.
	DefaultRatePerMinute = 30

	// MaxRequestBodySize bounds JSON request bodies (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// Version is the server version.
	Version = "1.0.0"
)

// ============================================================================
// SERVER
// ============================================================================

// Options configures a Server.
type Options struct {
	Listen         string
	HistoryPath    string
	IndexPath      string
	UploadsDir     string
	MaxUploadBytes int64
	RatePerMinute  int
	Logger         *slog.Logger
	Meter          metric.Meter
}

// Server is the development chat backend: a websocket chat channel
// plus the file and document-index HTTP APIs.
type Server struct {
	listen string
	router *http.ServeMux
	server *http.Server
	logger *slog.Logger

	workspace *Workspace
	history   *HistoryStore
	index     *DocumentIndex
	responder Responder

	ratePerMinute int
	streamDelay   time.Duration

	messagesSent metric.Int64Counter
	uploadsDone  metric.Int64Counter
}

// New creates a Server from options, opening its stores.
func New(opts Options) (*Server, error) {
	if opts.Listen == "" {
		opts.Listen = DefaultListen
	}
	if opts.RatePerMinute <= 0 {
		opts.RatePerMinute = DefaultRatePerMinute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 50 << 20
	}

	workspace, err := NewWorkspace(opts.UploadsDir, opts.MaxUploadBytes)
	if err != nil {
		return nil, err
	}
	history, err := OpenHistory(opts.HistoryPath)
	if err != nil {
		return nil, err
	}
	index, err := OpenDocumentIndex(opts.IndexPath, workspace.Root(), opts.Logger)
	if err != nil {
		history.Close()
		return nil, err
	}

	s := &Server{
		listen:        opts.Listen,
		router:        http.NewServeMux(),
		logger:        opts.Logger,
		workspace:     workspace,
		history:       history,
		index:         index,
		responder:     EchoResponder{},
		ratePerMinute: opts.RatePerMinute,
		streamDelay:   20 * time.Millisecond,
	}
	if opts.Meter != nil {
		s.messagesSent, _ = opts.Meter.Int64Counter("alfachat.messages")
		s.uploadsDone, _ = opts.Meter.Int64Counter("alfachat.uploads")
	}

	s.setupRoutes()
	return s, nil
}

// WithResponder replaces the reply generator.
func (s *Server) WithResponder(r Responder) *Server {
	s.responder = r
	return s
}

// WithStreamDelay sets the pacing between stream chunks. Zero disables
// pacing; tests use that.
func (s *Server) WithStreamDelay(d time.Duration) *Server {
	s.streamDelay = d
	return s
}

// Handler returns the routed handler, for tests running under httptest.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(s.logger),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.logger),
	)(s.router)
}

// Close releases the server's stores.
func (s *Server) Close() error {
	err := s.history.Close()
	if ierr := s.index.Close(); err == nil {
		err = ierr
	}
	return err
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /ws", s.handleWS)

	s.router.HandleFunc("GET /api/files", s.handleFilesList)
	s.router.HandleFunc("POST /api/files/upload", s.handleFilesUpload)
	s.router.HandleFunc("POST /api/files/bulk-delete", s.handleBulkDelete)
	s.router.HandleFunc("POST /api/files/copy", s.handleFilesCopy)
	s.router.HandleFunc("POST /api/files/move", s.handleFilesMove)
	s.router.HandleFunc("POST /api/files/folder", s.handleCreateFolder)
	s.router.HandleFunc("GET /api/files/{path}/content", s.handleFileContent)
	s.router.HandleFunc("POST /api/files/{path}/rename", s.handleFileRename)
	s.router.HandleFunc("DELETE /api/files/{path}", s.handleFileDelete)

	s.router.HandleFunc("POST /api/rag/process", s.handleRAGProcess)
	s.router.HandleFunc("POST /api/rag/clear", s.handleRAGClear)
	s.router.HandleFunc("GET /api/rag/stats", s.handleRAGStats)

	s.router.HandleFunc("GET /health", s.handleHealth)
}

// ============================================================================
// INDEX AND HEALTH HANDLERS
// ============================================================================

func (s *Server) handleRAGProcess(w http.ResponseWriter, r *http.Request) {
	stats, err := s.index.Process(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to process documents")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats":   stats,
	})
}

func (s *Server) handleRAGClear(w http.ResponseWriter, r *http.Request) {
	if err := s.index.Clear(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to clear index")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Index cleared",
	})
}

func (s *Server) handleRAGStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.index.Status(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to read index status")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"status":          st.Status,
		"document_count":  st.DocumentCount,
		"chunk_size":      st.ChunkSize,
		"collection_name": st.Collection,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": Version,
	})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.listen,
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: websocket sessions are long-lived.
		IdleTimeout: 120 * time.Second,
	}

	s.logger.Info("server starting", "addr", s.listen, "version", Version)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and closes its stores.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return s.Close()
	}
	s.logger.Info("server shutting down")
	err := s.server.Shutdown(ctx)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

// Addr returns the configured bind address.
func (s *Server) Addr() string {
	if s.server != nil {
		if host, port, err := net.SplitHostPort(s.server.Addr); err == nil {
			return net.JoinHostPort(host, port)
		}
	}
	return s.listen
}

// ============================================================================
// HELPERS
// ============================================================================

// stale invalidates the document index after workspace mutations.
func (s *Server) stale() {
	if s.index != nil {
		s.index.MarkStale()
	}
}

func (s *Server) recordMessage(ctx context.Context) {
	if s.messagesSent != nil {
		s.messagesSent.Add(ctx, 1)
	}
}

func (s *Server) recordUpload(ctx context.Context) {
	if s.uploadsDone != nil {
		s.uploadsDone.Add(ctx, 1)
	}
}

// readJSON decodes a bounded JSON body, writing the error response on
// failure.
func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request format")
		return false
	}
	return true
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the API error envelope.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}
