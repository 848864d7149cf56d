package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/storyline"
	"github.com/aretw0/storyline/pkg/clock"
	"github.com/aretw0/storyline/pkg/domain"
	"github.com/aretw0/storyline/pkg/dsl"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	b := dsl.New()
	b.Mission("intro").Title("Welcome Aboard").Scene("s1").Background("office").Say("", "Hello.")
	loader, err := b.Build()
	require.NoError(t, err)

	eng, err := storyline.New("",
		storyline.WithLoader(loader),
		storyline.WithClock(clock.NewManual(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))),
	)
	require.NoError(t, err)
	t.Cleanup(eng.Close)
	return NewServer(eng)
}

func toolRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func TestServer_ListMissions(t *testing.T) {
	s := newTestServer(t)

	list, err := s.handleListMissions(context.Background(), toolRequest("list_missions", nil), struct{}{})
	require.NoError(t, err)
	assert.Equal(t, []domain.MissionSummary{{ID: "intro", Title: "Welcome Aboard", Scenes: 1}}, list.Missions)
}

func TestServer_GetMission(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleGetMission(ctx, toolRequest("get_mission", map[string]any{"mission_id": "intro"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, `"title":"Welcome Aboard"`)

	res, err = s.handleGetMission(ctx, toolRequest("get_mission", map[string]any{"mission_id": "missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleGetMission(ctx, toolRequest("get_mission", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestServer_PlaybackFlow(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	// 1. Start
	snap, err := s.handleStart(ctx, toolRequest("start_mission", nil), StartArgs{UserID: "u1", MissionID: "intro"})
	require.NoError(t, err)
	require.NotEmpty(t, snap.SessionID)
	assert.Equal(t, 1, snap.SceneCount)

	// 2. Command
	resp, err := s.handleCommand(ctx, toolRequest("send_command", nil),
		CommandArgs{SessionID: snap.SessionID, Command: "pause"})
	require.NoError(t, err)
	require.NotNil(t, resp.Snapshot)

	_, err = s.handleCommand(ctx, toolRequest("send_command", nil),
		CommandArgs{SessionID: snap.SessionID, Command: "fly"})
	assert.ErrorIs(t, err, domain.ErrUnknownCommand)

	_, err = s.handleCommand(ctx, toolRequest("send_command", nil),
		CommandArgs{SessionID: snap.SessionID, Command: "complete_action"})
	assert.ErrorIs(t, err, domain.ErrActionIDRequired)

	// 3. Inspect
	view, err := s.handleGetPlayback(ctx, toolRequest("get_playback", nil), SessionArgs{SessionID: snap.SessionID})
	require.NoError(t, err)
	assert.Equal(t, "intro", view.MissionID)

	rec, err := s.handleProgress(ctx, toolRequest("get_progress", nil), ProgressArgs{UserID: "u1", MissionID: "intro"})
	require.NoError(t, err)
	assert.Equal(t, "s1", rec.SceneID)

	// 4. Stop
	res, err := s.handleStop(ctx, toolRequest("stop_session", map[string]any{"session_id": snap.SessionID}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = s.handleStop(ctx, toolRequest("stop_session", map[string]any{"session_id": "nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestServer_UnknownSession(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleGetPlayback(context.Background(), toolRequest("get_playback", nil), SessionArgs{SessionID: "nope"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
