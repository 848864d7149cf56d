package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/storyline"
	"github.com/aretw0/storyline/internal/logging"
	"github.com/aretw0/storyline/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const missionsURI = "storyline://missions"

// Engine defines the playback surface the MCP server drives.
type Engine interface {
	Start(ctx context.Context, userID, missionID string) (*storyline.Session, error)
	Session(id string) (*storyline.Session, error)
	Stop(id string) error
	Missions(ctx context.Context) ([]domain.MissionSummary, error)
	Mission(ctx context.Context, id string) (*domain.Mission, error)
	Progress(ctx context.Context, userID, missionID string) (*domain.ProgressRecord, error)
}

// MissionList is the output of list_missions.
type MissionList struct {
	Missions []domain.MissionSummary `json:"missions" jsonschema_description:"Available missions"`
}

// StartArgs are the arguments of start_mission.
type StartArgs struct {
	UserID    string `json:"user_id"`
	MissionID string `json:"mission_id"`
}

// SessionArgs identify a live session.
type SessionArgs struct {
	SessionID string `json:"session_id"`
}

// CommandArgs are the arguments of send_command.
type CommandArgs struct {
	SessionID string  `json:"session_id"`
	Command   string  `json:"command"`
	ActionID  *uint64 `json:"action_id,omitempty"`
}

// ProgressArgs identify a checkpoint.
type ProgressArgs struct {
	UserID    string `json:"user_id"`
	MissionID string `json:"mission_id"`
}

// CommandResponse aligns with the HTTP command result.
type CommandResponse struct {
	Accepted bool                `json:"accepted" jsonschema_description:"False when the current phase ignored the command"`
	Snapshot *storyline.Snapshot `json:"snapshot,omitempty" jsonschema_description:"Session view after the command"`
}

// Server wraps the playback engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("storyline-mcp", strings.TrimSpace(storyline.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on port until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("MCP server shutting down")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_missions",
		mcp.WithDescription("List the missions that can be played."),
		mcp.WithOutputSchema[MissionList](),
	), mcp.NewStructuredToolHandler(s.handleListMissions))

	s.mcpServer.AddTool(mcp.NewTool("get_mission",
		mcp.WithDescription("Get the full definition of a mission: scenes, characters and dialogues."),
		mcp.WithString("mission_id", mcp.Required(), mcp.Description("Mission ID")),
	), s.handleGetMission)

	s.mcpServer.AddTool(mcp.NewTool("start_mission",
		mcp.WithDescription("Start a playback session, resuming from the user's checkpoint when there is one."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Player ID")),
		mcp.WithString("mission_id", mcp.Required(), mcp.Description("Mission ID")),
		mcp.WithOutputSchema[storyline.Snapshot](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("send_command",
		mcp.WithDescription("Send a playback command: continue, back, pause, resume or complete_action."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID returned by start_mission")),
		mcp.WithString("command", mcp.Required(), mcp.Description("Command name")),
		mcp.WithNumber("action_id", mcp.Description("Mount id of the action to complete (required for complete_action)")),
		mcp.WithOutputSchema[CommandResponse](),
	), mcp.NewStructuredToolHandler(s.handleCommand))

	s.mcpServer.AddTool(mcp.NewTool("get_playback",
		mcp.WithDescription("Get the current view of a playback session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[storyline.Snapshot](),
	), mcp.NewStructuredToolHandler(s.handleGetPlayback))

	s.mcpServer.AddTool(mcp.NewTool("stop_session",
		mcp.WithDescription("Stop a playback session. Progress already checkpointed is kept."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), s.handleStop)

	s.mcpServer.AddTool(mcp.NewTool("get_progress",
		mcp.WithDescription("Get the stored checkpoint of a user for a mission."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Player ID")),
		mcp.WithString("mission_id", mcp.Required(), mcp.Description("Mission ID")),
		mcp.WithOutputSchema[domain.ProgressRecord](),
	), mcp.NewStructuredToolHandler(s.handleProgress))
}

func (s *Server) handleListMissions(ctx context.Context, _ mcp.CallToolRequest, _ struct{}) (MissionList, error) {
	missions, err := s.engine.Missions(ctx)
	if err != nil {
		return MissionList{}, fmt.Errorf("list missions failed: %w", err)
	}
	if missions == nil {
		missions = []domain.MissionSummary{}
	}
	return MissionList{Missions: missions}, nil
}

func (s *Server) handleGetMission(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("mission_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := s.engine.Mission(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get mission failed: %v", err)), nil
	}
	jsonBytes, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, args StartArgs) (storyline.Snapshot, error) {
	sess, err := s.engine.Start(ctx, args.UserID, args.MissionID)
	if err != nil {
		return storyline.Snapshot{}, fmt.Errorf("start failed: %w", err)
	}
	snap, err := sess.Snapshot(ctx)
	if err != nil {
		return storyline.Snapshot{}, err
	}
	s.logger.Info("MCP: session started", "session_id", sess.ID, "mission_id", args.MissionID)
	return *snap, nil
}

func (s *Server) handleCommand(ctx context.Context, _ mcp.CallToolRequest, args CommandArgs) (CommandResponse, error) {
	sess, err := s.engine.Session(args.SessionID)
	if err != nil {
		return CommandResponse{}, err
	}
	cmd, err := storyline.ParseCommand(args.Command)
	if err != nil {
		return CommandResponse{}, err
	}

	var res storyline.Result
	if cmd == storyline.CmdCompleteAction {
		if args.ActionID == nil {
			return CommandResponse{}, domain.ErrActionIDRequired
		}
		res, err = sess.CompleteAction(ctx, *args.ActionID)
	} else {
		res, err = sess.Send(ctx, cmd)
	}
	if err != nil {
		return CommandResponse{}, fmt.Errorf("command failed: %w", err)
	}
	return CommandResponse{Accepted: res.Accepted, Snapshot: res.Snapshot}, nil
}

func (s *Server) handleGetPlayback(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (storyline.Snapshot, error) {
	sess, err := s.engine.Session(args.SessionID)
	if err != nil {
		return storyline.Snapshot{}, err
	}
	snap, err := sess.Snapshot(ctx)
	if err != nil {
		return storyline.Snapshot{}, err
	}
	return *snap, nil
}

func (s *Server) handleStop(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.engine.Stop(id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stop failed: %v", err)), nil
	}
	return mcp.NewToolResultText("stopped " + id), nil
}

func (s *Server) handleProgress(ctx context.Context, _ mcp.CallToolRequest, args ProgressArgs) (domain.ProgressRecord, error) {
	rec, err := s.engine.Progress(ctx, args.UserID, args.MissionID)
	if err != nil {
		return domain.ProgressRecord{}, err
	}
	return *rec, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(missionsURI, "Mission Catalog",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		missions, err := s.engine.Missions(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list missions: %w", err)
		}
		jsonBytes, err := json.Marshal(missions)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      missionsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
