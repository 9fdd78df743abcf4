package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"padsynth/internal/config"
	"padsynth/internal/controller"
	"padsynth/internal/logging"
	"padsynth/internal/mapping"
	"padsynth/internal/webui"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	cfg    *config.Config
	token  string
	logger *slog.Logger
	daemon *Daemon
	ctrl   *controller.Controller

	handler http.Handler
	clients atomic.Int64

	mu       sync.Mutex
	baseCtx  context.Context
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		cfg:     cfg,
		token:   strings.TrimSpace(cfg.API.Token),
		logger:  logger,
		daemon:  d,
		ctrl:    d.ctrl,
		baseCtx: context.Background(),
	}
	auth := func(h http.HandlerFunc) http.HandlerFunc { return authMiddleware(srv.token, h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", srv.handleIndex)
	mux.Handle("GET /static/", webui.StaticHandler())

	mux.HandleFunc("GET /api/config", auth(srv.handleGetConfig))
	mux.HandleFunc("PUT /api/config", auth(srv.handleReplaceConfig))
	mux.HandleFunc("POST /api/config/reload", auth(srv.handleReloadConfig))
	mux.HandleFunc("POST /api/keys/{id}/note", auth(srv.handleSetKeyNote))
	mux.HandleFunc("POST /api/encoders/{name}", auth(srv.handleUpdateEncoder))
	mux.HandleFunc("POST /api/synth", auth(srv.handleUpdateSynth))
	mux.HandleFunc("POST /api/test-note/{id}", auth(srv.handleTestNote))
	mux.HandleFunc("GET /api/state", auth(srv.handleState))
	mux.HandleFunc("GET /api/status", auth(srv.handleStatus))
	mux.HandleFunc("GET /api/logs", auth(srv.handleLogs))
	mux.HandleFunc("GET /api/history/config", auth(srv.handleListRevisions))
	mux.HandleFunc("GET /api/history/config/{id}", auth(srv.handleGetRevision))
	mux.HandleFunc("POST /api/history/config/{id}/restore", auth(srv.handleRestoreRevision))
	mux.HandleFunc("GET /api/history/keys", auth(srv.handleKeyStats))
	mux.HandleFunc("GET /ws", auth(srv.handleWebsocket))

	srv.handler = withCorrelationID(mux)
	return srv
}

// withCorrelationID tags each request context with an id that handlers add
// to their log lines and echo in X-Request-ID.
func withCorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.WithCorrelationID(r.Context(), id)))
	})
}

func (s *apiServer) start(ctx context.Context) error {
	bind := s.bindAddress()
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Long-poll log requests and websockets manage their own deadlines.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.baseCtx = ctx
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	listener := s.listener
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
	if listener != nil {
		_ = listener.Close()
	}
}

// bindAddress prefers api.bind and falls back to the mapping's app section.
func (s *apiServer) bindAddress() string {
	app := s.ctrl.Config().App
	return s.cfg.ListenAddress(app.WebHost, app.WebPort)
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bindAddress()
}

func (s *apiServer) clientCount() int {
	return int(s.clients.Load())
}

func (s *apiServer) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseCtx == nil {
		return context.Background()
	}
	return s.baseCtx
}

func (s *apiServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	var data *webui.InitialData
	if s.token == "" {
		snap := s.ctrl.Snapshot()
		data = &webui.InitialData{State: snap.State, Config: snap.Config}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := webui.RenderIndex(w, data, s.token != ""); err != nil {
		s.requestLog(r).Error("render console page failed", logging.Error(err))
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeMutationError maps controller and mapping errors to HTTP statuses.
func (s *apiServer) writeMutationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, controller.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, controller.ErrValidation), errors.Is(err, mapping.ErrInvalid):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		logging.ErrorWithContext(s.requestLog(r), "request failed", "api_request_failed",
			logging.Error(err),
			logging.String("path", r.URL.Path),
			logging.String(logging.FieldErrorHint, "check that the mapping file is writable"),
		)
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeFields reads a JSON object body keeping raw values so handlers can
// tell a missing field from null and a string from a number.
func decodeFields(w http.ResponseWriter, r *http.Request) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&fields); err != nil {
		return nil, fmt.Errorf("request body must be a JSON object: %w", err)
	}
	if fields == nil {
		return nil, errors.New("request body must be a JSON object")
	}
	return fields, nil
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}

func (s *apiServer) requestLog(r *http.Request) *slog.Logger {
	return logging.WithContext(r.Context(), s.log())
}
