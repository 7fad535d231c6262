// Package server exposes the routing agent over HTTP: a non-streaming call
// endpoint, a server-sent-events streaming endpoint, and a health check.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/reagent/chatmodel"
	"github.com/effective-security/reagent/config"
	"github.com/effective-security/reagent/llmfactory"
	"github.com/effective-security/reagent/pkg/llms"
	"github.com/effective-security/reagent/router"
	"github.com/effective-security/reagent/store"
	"github.com/effective-security/xlog"
	"github.com/gin-gonic/gin"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/reagent", "server")

// Config describes the HTTP server.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// Debug enables gin's debug mode.
	Debug bool
}

// Server serves agent turns over HTTP.
type Server struct {
	cfg     Config
	agent   *router.Agent
	factory llmfactory.Factory
	store   store.MessageStore
	engine  *gin.Engine
	http    *http.Server
}

// New creates a Server around the agent, model factory and message store.
func New(cfg Config, agent *router.Agent, factory llmfactory.Factory, msgStore store.MessageStore) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:     cfg,
		agent:   agent,
		factory: factory,
		store:   msgStore,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", s.handleHealthz)
	engine.POST("/agent/call", s.handleCall)
	engine.POST("/agent/stream", s.handleStream)
	engine.DELETE("/agent/chats/:chat_id", s.handleReset)

	s.engine = engine
	return s
}

// Router returns the underlying gin engine, for tests.
func (s *Server) Router() *gin.Engine {
	return s.engine
}

// ListenAndServe starts the server and blocks until ctx is cancelled or
// the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()

	logger.KV(xlog.INFO, "status", "listening", "addr", s.cfg.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// CallRequest is one agent turn.
type CallRequest struct {
	// ChatID identifies the conversation; a new one is generated when
	// empty.
	ChatID string `json:"chat_id"`
	// Message is the user's message text.
	Message string `json:"message" binding:"required"`
	// Config carries per-call configuration overrides by field name,
	// e.g. {"model": "...", "tool_only": true}.
	Config map[string]any `json:"config"`
}

// CallResponse is the result of one agent turn.
type CallResponse struct {
	ChatID       string   `json:"chat_id"`
	Content      string   `json:"content"`
	MatchedTools []string `json:"matched_tools,omitempty"`
	Refused      bool     `json:"refused,omitempty"`
	Steps        int      `json:"steps"`
}

// handleHealthz reports liveness and the configured provider models.
func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"models": s.factory.Models(),
	})
}

func (s *Server) handleCall(c *gin.Context) {
	var req CallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, state, err := s.runTurn(c.Request.Context(), &req, nil)
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "reason", "run_turn", "err", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, &CallResponse{
		ChatID:       chatmodel.GetChatID(ctx),
		Content:      state.FinalContent(),
		MatchedTools: state.MatchedTools,
		Refused:      state.Refused,
		Steps:        state.Steps,
	})
}

// handleStream runs a turn and streams model content chunks as
// server-sent events. Each chunk is a `delta` event; the final state is
// sent as an `end` event carrying the full CallResponse.
func (s *Server) handleStream(c *gin.Context) {
	var req CallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	streamingFunc := func(ctx context.Context, chunk []byte) error {
		c.SSEvent("delta", string(chunk))
		c.Writer.Flush()
		return nil
	}

	ctx, state, err := s.runTurn(c.Request.Context(), &req, streamingFunc)
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "reason", "run_turn", "err", err.Error())
		c.SSEvent("error", gin.H{"error": err.Error()})
		c.Writer.Flush()
		return
	}

	c.SSEvent("end", &CallResponse{
		ChatID:       chatmodel.GetChatID(ctx),
		Content:      state.FinalContent(),
		MatchedTools: state.MatchedTools,
		Refused:      state.Refused,
		Steps:        state.Steps,
	})
	c.Writer.Flush()
}

func (s *Server) handleReset(c *gin.Context) {
	chatID := c.Param("chat_id")
	ctx := chatmodel.WithChatContext(c.Request.Context(), chatmodel.NewChatContext(chatID))
	if err := s.store.Reset(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chatID})
}

// runTurn resolves the per-call configuration, loads the chat history,
// runs the state machine and persists the new messages.
func (s *Server) runTurn(ctx context.Context, req *CallRequest, streamingFunc func(ctx context.Context, chunk []byte) error) (context.Context, *router.State, error) {
	ctx = chatmodel.WithChatContext(ctx, chatmodel.NewChatContext(req.ChatID))

	cfg := config.Resolve(config.Overrides(req.Config))

	history, err := s.store.Messages(ctx)
	if err != nil {
		return ctx, nil, errors.WithMessage(err, "failed to load chat history")
	}

	userMsg := llms.MessageFromTextParts(llms.RoleHuman, req.Message)
	messages := append(history, userMsg)

	var runOpts []router.RunOption
	if streamingFunc != nil {
		runOpts = append(runOpts, router.WithStreamingFunc(streamingFunc))
	}

	state, err := s.agent.Run(ctx, cfg, messages, runOpts...)
	if err != nil {
		return ctx, nil, err
	}

	// Persist the user message and everything the turn appended.
	if err := s.store.Add(ctx, state.Messages[len(history):]...); err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "reason", "persist_messages", "err", err.Error())
	}

	return ctx, state, nil
}
