package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/storyline"
	"github.com/aretw0/storyline/internal/logging"
	"github.com/aretw0/storyline/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
)

// Engine is the playback surface the HTTP adapter serves.
type Engine interface {
	Start(ctx context.Context, userID, missionID string) (*storyline.Session, error)
	Session(id string) (*storyline.Session, error)
	Sessions() []string
	Stop(id string) error
	Missions(ctx context.Context) ([]domain.MissionSummary, error)
	Mission(ctx context.Context, id string) (*domain.Mission, error)
	Progress(ctx context.Context, userID, missionID string) (*domain.ProgressRecord, error)
	ListProgress(ctx context.Context, userID string) ([]domain.ProgressRecord, error)
	ResetProgress(ctx context.Context, userID, missionID string) error
	Watch(ctx context.Context) (<-chan struct{}, error)
}

var _ Engine = (*storyline.Engine)(nil)

// Server holds the handlers of the playback API.
type Server struct {
	Engine Engine
	logger *slog.Logger
}

// Option configures the handler returned by NewHandler.
type Option func(*handlerConfig)

type handlerConfig struct {
	logger  *slog.Logger
	metrics http.Handler
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *handlerConfig) {
		c.logger = logger
	}
}

// WithMetricsHandler exposes h under /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(c *handlerConfig) {
		c.metrics = h
	}
}

// StartRequest is the body of POST /sessions.
type StartRequest struct {
	UserID    string `json:"user_id"`
	MissionID string `json:"mission_id"`
}

// CommandRequest is the body of POST /sessions/{sessionID}/commands.
type CommandRequest struct {
	Command  string  `json:"command"`
	ActionID *uint64 `json:"action_id,omitempty"`
}

// NewHandler creates the HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) (http.Handler, error) {
	cfg := handlerConfig{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewNop()
	}

	doc, err := GetSwagger()
	if err != nil {
		return nil, err
	}
	validate, err := validator(doc, cfg.logger)
	if err != nil {
		return nil, err
	}

	s := &Server{Engine: engine, logger: cfg.logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})
	if cfg.metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(validate)

		r.Get("/health", s.GetHealth)
		r.Get("/info", s.GetInfo)
		r.Get("/events", s.SubscribeContent)

		r.Get("/missions", s.ListMissions)
		r.Get("/missions/{missionID}", s.GetMission)

		r.Get("/sessions", s.ListSessions)
		r.Post("/sessions", s.StartSession)
		r.Get("/sessions/{sessionID}", s.GetSession)
		r.Delete("/sessions/{sessionID}", s.StopSession)
		r.Post("/sessions/{sessionID}/commands", s.SendCommand)
		r.Get("/sessions/{sessionID}/events", s.SubscribeSession)
		r.Get("/sessions/{sessionID}/ws", s.SessionSocket)

		r.Get("/progress/{userID}", s.ListProgress)
		r.Get("/progress/{userID}/{missionID}", s.GetProgress)
		r.Delete("/progress/{userID}/{missionID}", s.ResetProgress)
	})

	return r, nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Storyline API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if swagger, err := GetSwagger(); err == nil && swagger.Info != nil {
		apiVersion = swagger.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "storyline-http",
		"version":     strings.TrimSpace(storyline.Version),
		"api_version": apiVersion,
	})
}

// ListMissions handles GET /missions.
func (s *Server) ListMissions(w http.ResponseWriter, r *http.Request) {
	missions, err := s.Engine.Missions(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if missions == nil {
		missions = []domain.MissionSummary{}
	}
	writeJSON(w, http.StatusOK, missions)
}

// GetMission handles GET /missions/{missionID}.
func (s *Server) GetMission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "missionID")
	if !ok {
		return
	}
	m, err := s.Engine.Mission(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.Sessions())
}

// StartSession handles POST /sessions.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var body StartRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		s.logger.Warn("StartSession: invalid request body", "err", err)
		return
	}

	sess, err := s.Engine.Start(r.Context(), body.UserID, body.MissionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, snap)
}

// GetSession handles GET /sessions/{sessionID}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// StopSession handles DELETE /sessions/{sessionID}.
func (s *Server) StopSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "sessionID")
	if !ok {
		return
	}
	if err := s.Engine.Stop(id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendCommand handles POST /sessions/{sessionID}/commands.
func (s *Server) SendCommand(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var body CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		s.logger.Warn("SendCommand: invalid request body", "err", err)
		return
	}

	res, err := apply(r.Context(), sess, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// apply runs a command request against a session. Completions must carry the
// id of the mount they complete.
func apply(ctx context.Context, sess *storyline.Session, req CommandRequest) (storyline.Result, error) {
	cmd, err := storyline.ParseCommand(req.Command)
	if err != nil {
		return storyline.Result{}, err
	}
	if cmd == storyline.CmdCompleteAction {
		if req.ActionID == nil {
			return storyline.Result{}, domain.ErrActionIDRequired
		}
		return sess.CompleteAction(ctx, *req.ActionID)
	}
	return sess.Send(ctx, cmd)
}

// ListProgress handles GET /progress/{userID}.
func (s *Server) ListProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := pathParam(w, r, "userID")
	if !ok {
		return
	}
	recs, err := s.Engine.ListProgress(r.Context(), user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if recs == nil {
		recs = []domain.ProgressRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// GetProgress handles GET /progress/{userID}/{missionID}.
func (s *Server) GetProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := pathParam(w, r, "userID")
	if !ok {
		return
	}
	mission, ok := pathParam(w, r, "missionID")
	if !ok {
		return
	}
	rec, err := s.Engine.Progress(r.Context(), user, mission)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ResetProgress handles DELETE /progress/{userID}/{missionID}.
func (s *Server) ResetProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := pathParam(w, r, "userID")
	if !ok {
		return
	}
	mission, ok := pathParam(w, r, "missionID")
	if !ok {
		return
	}
	if err := s.Engine.ResetProgress(r.Context(), user, mission); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*storyline.Session, bool) {
	id, ok := pathParam(w, r, "sessionID")
	if !ok {
		return nil, false
	}
	sess, err := s.Engine.Session(id)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return sess, true
}

func pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return "", false
	}
	return v, true
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrMissionNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrProgressNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, domain.ErrUnknownCommand),
		errors.Is(err, domain.ErrActionIDRequired),
		errors.Is(err, domain.ErrEmptyMission):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	writeError(w, status, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
