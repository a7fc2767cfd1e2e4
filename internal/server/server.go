// Package server is the thin HTTP surface in front of the dispatch
// engine: one chat endpoint plus health. Anything heavier (the feature
// CRUD routers, websockets, auth) lives in other services.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/arialabs/aria-backend/internal/dispatch"
	"github.com/arialabs/aria-backend/internal/models"
)

type Server struct {
	engine  *dispatch.Engine
	limiter *RateLimiter
	logger  *zap.Logger
	http    *http.Server
}

type Options struct {
	Addr           string
	AllowedOrigins []string
	RequestsPerMin int
	RequestBurst   int
	// TrustProxyHeaders keys the rate limiter on X-Forwarded-For /
	// X-Real-IP. Leave off unless a proxy in front overwrites them.
	TrustProxyHeaders bool
	ShutdownTimeout   time.Duration
}

func New(engine *dispatch.Engine, opts Options, logger *zap.Logger) *Server {
	if opts.RequestsPerMin <= 0 {
		opts.RequestsPerMin = 30
	}
	if opts.RequestBurst <= 0 {
		opts.RequestBurst = 10
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		engine:  engine,
		limiter: NewRateLimiter(opts.RequestsPerMin, opts.RequestBurst, opts.TrustProxyHeaders),
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		r.Post("/api/v1/chat", s.handleChat)
	})

	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.http.Shutdown(ctx)
}

type chatRequest struct {
	UserID         string `json:"user_id"`
	MessageText    string `json:"message_text"`
	ConversationID int    `json:"conversation_id"`
	Channel        string `json:"channel"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	channel := models.ChannelText
	if req.Channel == string(models.ChannelVoice) {
		channel = models.ChannelVoice
	}

	resp, err := s.engine.HandleMessage(r.Context(), dispatch.Inbound{
		UserID:         req.UserID,
		Text:           req.MessageText,
		ConversationID: req.ConversationID,
		Channel:        channel,
	})
	if err != nil {
		if errors.Is(err, dispatch.ErrInternal) {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		s.logger.Error("chat request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// Denials, intercepts and handler faults are all ordinary outcomes.
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
