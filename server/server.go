// Package server exposes a capability table over a websocket so hosts
// running out of process can call the memory hook and tools.
//
// Each text frame is one request:
//
//	{"id":"1","type":"inject","name":"relevant_memories","messages":[{"role":"user","content":"hi"}],"user_id":"u1"}
//	{"id":"2","type":"tool","name":"record_memory","input":{"content":"likes tea"},"user_id":"u1"}
//	{"id":"3","type":"list"}
//
// and is answered by {"id","result"} or {"id","error"}.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/becomeliminal/nim-recall/core"
	"github.com/becomeliminal/nim-recall/tools"
)

// Frame types.
const (
	TypeInject = "inject"
	TypeTool   = "tool"
	TypeList   = "list"
)

// Request is an inbound frame.
type Request struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Name     string          `json:"name,omitempty"`
	Messages []core.Message  `json:"messages,omitempty"`
	Input    json.RawMessage `json:"input,omitempty"`
	UserID   string          `json:"user_id,omitempty"`
	UserName string          `json:"user_name,omitempty"`
}

// Response is an outbound frame. Exactly one of Result and Error is set.
type Response struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// ToolInfo describes a tool in a list reply.
type ToolInfo struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// HookInfo describes a hook in a list reply.
type HookInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Listing is the result of a list request.
type Listing struct {
	Hooks []HookInfo `json:"hooks"`
	Tools []ToolInfo `json:"tools"`
}

// Config configures the server.
type Config struct {
	// Capabilities is the table served to clients. Required.
	Capabilities *tools.CapabilityTable

	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger

	// WriteTimeout bounds each frame write. Default: 10s
	WriteTimeout time.Duration

	// Metrics, when set, is mounted on /metrics.
	Metrics http.Handler
}

// Server serves the capability table on /ws and a liveness probe on /health.
// Metrics are served on /metrics when configured.
type Server struct {
	caps         *tools.CapabilityTable
	logger       logrus.FieldLogger
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
	mux          *http.ServeMux
}

// New creates a server.
func New(cfg Config) (*Server, error) {
	if cfg.Capabilities == nil {
		return nil, errors.New("server: capabilities are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	s := &Server{
		caps:         cfg.Capabilities,
		logger:       cfg.Logger.WithField("component", "server"),
		writeTimeout: cfg.WriteTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/health", s.handleHealth)
	if cfg.Metrics != nil {
		s.mux.Handle("/metrics", cfg.Metrics)
	}
	return s, nil
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	connID := uuid.New().String()
	log := s.logger.WithField("conn_id", connID)
	log.Debug("client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var writeMu sync.Mutex
	write := func(resp Response) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		if err := conn.WriteJSON(resp); err != nil {
			log.WithError(err).Debug("write failed")
		}
	}

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				write(Response{Error: fmt.Sprintf("invalid frame: %v", err)})
				continue
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("read failed")
			}
			log.Debug("client disconnected")
			return
		}
		write(s.dispatch(ctx, &req))
	}
}

// dispatch answers one request frame.
func (s *Server) dispatch(ctx context.Context, req *Request) Response {
	resp := Response{ID: req.ID}

	switch req.Type {
	case TypeInject:
		hook, ok := s.caps.Hook(req.Name)
		if !ok {
			resp.Error = fmt.Sprintf("unknown hook: %s", req.Name)
			return resp
		}
		resp.Result = hook.Inject(ctx, &tools.HookParams{UserID: req.UserID, Messages: req.Messages})

	case TypeTool:
		tool, ok := s.caps.Tool(req.Name)
		if !ok {
			resp.Error = fmt.Sprintf("unknown tool: %s", req.Name)
			return resp
		}
		result, err := tool.Execute(ctx, &core.ToolParams{
			UserID:    req.UserID,
			UserName:  req.UserName,
			Input:     req.Input,
			RequestID: req.ID,
		})
		switch {
		case err != nil:
			resp.Error = err.Error()
		case result == nil:
			resp.Error = fmt.Sprintf("tool %s returned no result", req.Name)
		case !result.Success:
			resp.Error = result.Error
		default:
			resp.Result = result.Data
		}

	case TypeList:
		resp.Result = s.listing()

	default:
		resp.Error = fmt.Sprintf("unknown frame type: %q", req.Type)
	}
	return resp
}

func (s *Server) listing() Listing {
	l := Listing{Hooks: []HookInfo{}, Tools: []ToolInfo{}}
	for _, h := range s.caps.Hooks() {
		l.Hooks = append(l.Hooks, HookInfo{Name: h.Name, Description: h.Description})
	}
	for _, t := range s.caps.Tools() {
		l.Tools = append(l.Tools, ToolInfo{Name: t.Name(), Description: t.Description(), InputSchema: t.Schema()})
	}
	return l
}
