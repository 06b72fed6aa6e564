// Package server exposes the chat loop over HTTP. POST /chat answers a
// question with a newline-delimited JSON stream of reply deltas; GET /
// serves a small embedded page that consumes it.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"ctxrag/internal/middleware"
)

//go:embed index.html
var pageFS embed.FS

// ChatLoop answers one message, calling emit per reply delta.
type ChatLoop interface {
	Turn(ctx context.Context, message string, emit func(delta string) error) (string, error)
}

type Server struct {
	loop    ChatLoop
	log     *slog.Logger
	Handler http.Handler
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatFrame struct {
	Message *frameMessage `json:"message,omitempty"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

type frameMessage struct {
	Content string `json:"content"`
}

func New(loop ChatLoop, log *slog.Logger) *Server {
	s := &Server{loop: loop, log: log}

	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("POST /chat", middleware.CorrelationID(enableCORS(s.handleChat)))
	mux.Handle("OPTIONS /chat", enableCORS(func(w http.ResponseWriter, r *http.Request) {}))
	mux.Handle("GET /{$}", middleware.CorrelationID(enableCORS(s.handleIndex)))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	s.Handler = mux
	return s
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := pageFS.ReadFile("index.html")
	if err != nil {
		http.Error(w, "page unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		http.Error(w, `{"error":"message is required"}`, http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error":"streaming unsupported"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")

	enc := json.NewEncoder(w)
	emit := func(delta string) error {
		if err := enc.Encode(chatFrame{Message: &frameMessage{Content: delta}}); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	_, err := s.loop.Turn(r.Context(), req.Message, emit)
	if err != nil {
		s.log.Error("chat turn failed", "error", err,
			"correlation_id", middleware.GetCorrelationID(r.Context()))
		enc.Encode(chatFrame{Done: true, Error: err.Error()})
		flusher.Flush()
		return
	}
	enc.Encode(chatFrame{Done: true})
	flusher.Flush()
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("server shutdown failed", "error", err)
		}
	}()

	s.log.Info("server starting", "port", port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
