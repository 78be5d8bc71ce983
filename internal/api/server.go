// Package api exposes the ops HTTP interface for the botworker service:
// health and readiness probes, Prometheus metrics, and the administrative
// sweep endpoints used for full environment resets between test runs.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/browserbot-relay/internal/botworker"
	"github.com/JakeFAU/browserbot-relay/internal/channel"
	"github.com/JakeFAU/browserbot-relay/internal/metrics"
)

const adminTimeout = 3 * time.Second

// Server wires HTTP handlers to the message channel. Administrative
// operations travel through the command protocol like any other caller, so
// they never race the worker's single-threaded state.
type Server struct {
	router  chi.Router
	ch      channel.Channel
	prefix  string
	charset string
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes. charset is the
// shard range the worker listens on.
func NewServer(ch channel.Channel, prefix, charset string, logger *zap.Logger) *Server {
	if prefix == "" {
		prefix = botworker.DefaultKeyPrefix
	}
	if charset == "" {
		charset = botworker.CodeCharset
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		ch:      ch,
		prefix:  prefix,
		charset: charset,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1/admin", func(r chi.Router) {
		r.Post("/flush", s.flushChannels)
		r.Post("/clear", s.clearAll)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz pings the worker through the channel: ready means a worker is
// actually consuming the listen keys, not just that this process is up.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()
	if _, err := s.roundTrip(ctx, botworker.CmdPing, botworker.Kwargs{}, time.Second); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type flushRequest struct {
	CharRange string `json:"char_range"`
}

func (s *Server) flushChannels(w http.ResponseWriter, r *http.Request) {
	var req flushRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	removed, err := botworker.FlushChannels(r.Context(), s.ch, s.prefix, req.CharRange)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) clearAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()
	resp, err := s.roundTrip(ctx, botworker.CmdClearAll, botworker.Kwargs{}, adminTimeout)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// roundTrip sends one admin command through the protocol. Admin calls are
// not participant-scoped, so the response key gets a random suffix instead
// of a participant code; each call still waits on its own single-use key.
func (s *Server) roundTrip(
	ctx context.Context,
	cmd botworker.Command,
	kw botworker.Kwargs,
	timeout time.Duration,
) (map[string]any, error) {
	responseKey := botworker.ResponseKey(s.prefix, cmd, "admin-"+uuid.NewString())
	req := botworker.Request{
		Command:     cmd,
		Kwargs:      kw,
		ResponseKey: responseKey,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", cmd, err)
	}
	// Admin commands are not sharded by participant; any listen key reaches
	// the worker. Use the first shard of the configured range.
	listenKey := botworker.ListenKey(s.prefix, s.charset[:1])
	if err := s.ch.Push(ctx, listenKey, body); err != nil {
		return nil, fmt.Errorf("push %s request: %w", cmd, err)
	}
	_, payload, ok, err := s.ch.BlockPop(ctx, []string{responseKey}, timeout)
	if err != nil {
		return nil, fmt.Errorf("pop %s response: %w", cmd, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: no response from botworker", cmd)
	}
	var resp map[string]any
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", cmd, err)
	}
	return resp, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Error("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
