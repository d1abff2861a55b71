// Package httpapi exposes the shopping agent over HTTP. Besides the chat
// endpoints (JSON, form and websocket) it serves health checks, Prometheus
// metrics and direct tool calls.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/hupe1980/shopmesh/config"
	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/logging"
	"github.com/hupe1980/shopmesh/observability"
	"github.com/hupe1980/shopmesh/tool"
)

// EmptyMessageReply is returned with 400 when a chat request has no text.
const EmptyMessageReply = "Please type something."

// Chatter answers one user message (implemented by *agent.Agent).
type Chatter interface {
	HandleMessage(ctx context.Context, sessionID, text string) core.Reply
}

// Options configure optional parts of the Server.
type Options struct {
	// Metrics enables /metrics and request counting.
	Metrics *observability.Metrics
	// Tools exposes the registered tools under /v1/tools for direct calls.
	Tools  *tool.Registry
	Logger logging.Logger
}

// Server routes HTTP traffic to the agent.
type Server struct {
	cfg      config.ServerConfig
	chat     Chatter
	metrics  *observability.Metrics
	tools    *tool.Registry
	logger   logging.Logger
	upgrader websocket.Upgrader
}

// New creates a Server.
func New(cfg config.ServerConfig, chat Chatter, optFns ...func(o *Options)) *Server {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	if cfg.DefaultThreadID == "" {
		cfg.DefaultThreadID = "default_thread"
	}
	return &Server{
		cfg:     cfg,
		chat:    chat,
		metrics: opts.Metrics,
		tools:   opts.Tools,
		logger:  logging.ForComponent(opts.Logger, "httpapi"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     sameOrigin,
		},
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.countRequests)

	r.Get("/health", s.handleHealth)
	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Post("/get", s.handleForm)
	r.Post("/v1/chat", s.handleChat)
	r.Get("/v1/chat/ws", s.handleChatWS)
	if s.tools != nil {
		r.Get("/v1/tools", s.handleListTools)
		r.Post("/v1/tools/{name}", s.handleCallTool)
	}
	return r
}

// countRequests records every request by its route pattern.
func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if s.metrics == nil {
			return
		}
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveHTTP(route, r.Method, status)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ChatRequest is the body of POST /v1/chat and of websocket messages.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "empty_message", EmptyMessageReply)
		return
	}
	s.reply(w, r, req.SessionID, req.Message)
}

// handleForm serves the form-encoded endpoint used by the web widget:
// fields msg and thread_id.
func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	msg := strings.TrimSpace(r.PostForm.Get("msg"))
	if msg == "" {
		respondError(w, http.StatusBadRequest, "empty_message", EmptyMessageReply)
		return
	}
	thread := strings.TrimSpace(r.PostForm.Get("thread_id"))
	if thread == "" {
		thread = s.cfg.DefaultThreadID
	}
	s.reply(w, r, thread, msg)
}

func (s *Server) reply(w http.ResponseWriter, r *http.Request, sessionID, msg string) {
	ctx := r.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}
	respondJSON(w, http.StatusOK, s.chat.HandleMessage(ctx, sessionID, msg))
}

// handleChatWS keeps one conversation per connection. Messages are handled
// in order; a message without session_id continues the connection's
// current session.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	s.logger.Info("httpapi.ws.connected", "session_id", sessionID)

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
		if msgType != websocket.TextMessage {
			continue
		}

		var req ChatRequest
		if err := json.Unmarshal(data, &req); err != nil {
			if !s.writeWS(conn, errorResponse{Error: err.Error(), Code: "invalid_client_message"}) {
				break
			}
			continue
		}
		if strings.TrimSpace(req.Message) == "" {
			if !s.writeWS(conn, errorResponse{Error: EmptyMessageReply, Code: "empty_message"}) {
				break
			}
			continue
		}
		if req.SessionID != "" {
			sessionID = req.SessionID
		}
		reply := s.chat.HandleMessage(ctx, sessionID, req.Message)
		sessionID = reply.SessionID
		if !s.writeWS(conn, reply) {
			break
		}
	}
	s.logger.Info("httpapi.ws.disconnected", "session_id", sessionID)
}

func (s *Server) writeWS(conn *websocket.Conn, v any) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(v); err != nil {
		s.logger.Warn("httpapi.ws.write_failed", "error", err.Error())
		return false
	}
	return true
}

type toolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	names := s.tools.Names()
	out := make([]toolInfo, 0, len(names))
	for _, n := range names {
		t, _ := s.tools.Get(n)
		out = append(out, toolInfo{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()})
	}
	respondJSON(w, http.StatusOK, out)
}

// handleCallTool invokes one tool directly with JSON arguments, bypassing
// the agent and conversation memory.
func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	args := map[string]any{}
	if err := decodeJSON(r, &args); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	out, err := s.tools.Call(r.Context(), name, args)
	if err != nil {
		var te *tool.ToolError
		if !errors.As(err, &te) {
			respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		status := http.StatusInternalServerError
		switch {
		case te.Code == tool.CodeNotFound:
			status = http.StatusNotFound
		case te.Code == tool.CodeValidation:
			status = http.StatusBadRequest
		case te.Code == tool.CodeUnavailable:
			status = http.StatusServiceUnavailable
		}
		respondError(w, status, strings.ToLower(te.Code), te.Message)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// sameOrigin allows non-browser clients and same-host browser origins.
func sameOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
