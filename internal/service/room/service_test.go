package room

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syncroom/server/internal/protocol"
	"github.com/syncroom/server/internal/repository/connection/inmemory"
	roomRedis "github.com/syncroom/server/internal/repository/room/redis"
	"github.com/syncroom/server/internal/spatial"
)

func testConfig() Config {
	return Config{
		MembersLimit:  4,
		PlaylistLimit: 3,
		ScheduleDelay: 400 * time.Millisecond,
		GracePeriod:   50 * time.Millisecond,
		GridSize:      100,
		GainCurve:     spatial.CurveExponential,
	}
}

func newTestService(t *testing.T, cfg Config) *service {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	roomRepo := roomRedis.NewRepo(rc, slog.Default(), time.Hour)
	connRepo := inmemory.NewRepo(slog.Default())

	svc, err := NewService(roomRepo, connRepo, cfg, slog.Default())
	require.NoError(t, err)

	return svc
}

func join(t *testing.T, svc *service, roomID, clientID string) JoinRoomResponse {
	t.Helper()

	resp, err := svc.JoinRoom(context.Background(), &JoinRoomParams{
		Conn:     &websocket.Conn{},
		RoomID:   roomID,
		ClientID: clientID,
		Username: clientID,
	})
	require.NoError(t, err)

	return resp
}

func TestJoinRoom(t *testing.T) {
	svc := newTestService(t, testConfig())
	ctx := context.Background()

	joinResp := join(t, svc, "room-1", "alice")
	require.Len(t, joinResp.Clients, 1)
	assert.True(t, joinResp.Clients[0].IsAdmin, "first joiner must be admin")
	assert.Equal(t, spatial.Position{X: 50, Y: 50}, joinResp.Clients[0].Position, "joiner must spawn at grid center")

	joinResp = join(t, svc, "room-1", "bob")
	require.Len(t, joinResp.Clients, 2)
	assert.Len(t, joinResp.Conns, 2)

	var bob protocol.Client
	for _, client := range joinResp.Clients {
		if client.ClientID == "bob" {
			bob = client
		}
	}
	assert.False(t, bob.IsAdmin, "second joiner must not be admin")

	state, err := svc.GetRoomState(ctx, "room-1")
	require.NoError(t, err)
	assert.Len(t, state.Clients, 2)
	assert.Nil(t, state.Playback, "no playback before anything is selected")
}

func TestJoinRoomMembersLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MembersLimit = 2
	svc := newTestService(t, cfg)

	join(t, svc, "room-1", "alice")
	join(t, svc, "room-1", "bob")

	_, err := svc.JoinRoom(context.Background(), &JoinRoomParams{
		Conn:     &websocket.Conn{},
		RoomID:   "room-1",
		ClientID: "carol",
		Username: "carol",
	})
	assert.ErrorIs(t, err, ErrMembersLimitReached)
}

func TestPlayStampsMonotonic(t *testing.T) {
	svc := newTestService(t, testConfig())
	ctx := context.Background()

	base := time.UnixMilli(1_700_000_000_000)
	svc.now = func() time.Time { return base }

	join(t, svc, "room-1", "alice")

	_, err := svc.AddAudioSource(ctx, &AddAudioSourceParams{
		RoomID:   "room-1",
		SenderID: "alice",
		URL:      "https://cdn.example.com/track.mp3",
	})
	require.NoError(t, err)

	playResp, err := svc.Play(ctx, &PlayParams{
		RoomID:           "room-1",
		SenderID:         "alice",
		AudioSource:      "https://cdn.example.com/track.mp3",
		TrackTimeSeconds: 0,
	})
	require.NoError(t, err)
	require.NotNil(t, playResp.Message)
	assert.Equal(t, protocol.ActionPlay, playResp.Message.ScheduledAction.Type)
	assert.Equal(t, base.UnixMilli()+400, playResp.Message.ServerTimeToExecute)

	payload, ok := playResp.Message.ScheduledAction.Payload.(protocol.PlayPayload)
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/track.mp3", payload.AudioSource)

	// frozen clock: the next stamp must still advance
	pauseResp, err := svc.Pause(ctx, &PauseParams{
		RoomID:           "room-1",
		SenderID:         "alice",
		TrackTimeSeconds: 1.5,
	})
	require.NoError(t, err)
	assert.Equal(t, playResp.Message.ServerTimeToExecute+1, pauseResp.Message.ServerTimeToExecute)
}

func TestPlayUnknownSource(t *testing.T) {
	svc := newTestService(t, testConfig())

	join(t, svc, "room-1", "alice")

	_, err := svc.Play(context.Background(), &PlayParams{
		RoomID:      "room-1",
		SenderID:    "alice",
		AudioSource: "https://cdn.example.com/missing.mp3",
	})
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestNonMemberIsRejected(t *testing.T) {
	svc := newTestService(t, testConfig())
	ctx := context.Background()

	join(t, svc, "room-1", "alice")

	_, err := svc.Pause(ctx, &PauseParams{RoomID: "room-1", SenderID: "stranger"})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = svc.AddAudioSource(ctx, &AddAudioSourceParams{
		RoomID:   "room-1",
		SenderID: "stranger",
		URL:      "https://cdn.example.com/track.mp3",
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestGetRoomStateUnknownRoom(t *testing.T) {
	svc := newTestService(t, testConfig())

	_, err := svc.GetRoomState(context.Background(), "no-such-room")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestMoveOtherClientRequiresAdmin(t *testing.T) {
	svc := newTestService(t, testConfig())
	ctx := context.Background()

	join(t, svc, "room-1", "alice")
	join(t, svc, "room-1", "bob")

	// bob is not admin
	_, err := svc.MoveClient(ctx, &MoveClientParams{
		RoomID:   "room-1",
		SenderID: "bob",
		ClientID: "alice",
		Position: spatial.Position{X: 10, Y: 10},
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	// moving yourself is always allowed
	moveResp, err := svc.MoveClient(ctx, &MoveClientParams{
		RoomID:   "room-1",
		SenderID: "bob",
		ClientID: "bob",
		Position: spatial.Position{X: 10, Y: 10},
	})
	require.NoError(t, err)
	for _, client := range moveResp.Clients {
		if client.ClientID == "bob" {
			assert.Equal(t, spatial.Position{X: 10, Y: 10}, client.Position)
		}
	}

	// admin moves anyone
	_, err = svc.MoveClient(ctx, &MoveClientParams{
		RoomID:   "room-1",
		SenderID: "alice",
		ClientID: "bob",
		Position: spatial.Position{X: 20, Y: 20},
	})
	assert.NoError(t, err)
}

func TestMoveClientClampsToGrid(t *testing.T) {
	svc := newTestService(t, testConfig())

	join(t, svc, "room-1", "alice")

	moveResp, err := svc.MoveClient(context.Background(), &MoveClientParams{
		RoomID:   "room-1",
		SenderID: "alice",
		ClientID: "alice",
		Position: spatial.Position{X: -5, Y: 1000},
	})
	require.NoError(t, err)
	assert.Equal(t, spatial.Position{X: 0, Y: 100}, moveResp.Clients[0].Position)
}

func TestAddAudioSourceDuplicateAndLimit(t *testing.T) {
	cfg := testConfig()
	cfg.PlaylistLimit = 2
	svc := newTestService(t, cfg)
	ctx := context.Background()

	join(t, svc, "room-1", "alice")

	addResp, err := svc.AddAudioSource(ctx, &AddAudioSourceParams{
		RoomID: "room-1", SenderID: "alice", URL: "https://cdn.example.com/a.mp3",
	})
	require.NoError(t, err)
	assert.Len(t, addResp.Sources, 1)

	// duplicate is a no-op
	addResp, err = svc.AddAudioSource(ctx, &AddAudioSourceParams{
		RoomID: "room-1", SenderID: "alice", URL: "https://cdn.example.com/a.mp3",
	})
	require.NoError(t, err)
	assert.Len(t, addResp.Sources, 1)

	_, err = svc.AddAudioSource(ctx, &AddAudioSourceParams{
		RoomID: "room-1", SenderID: "alice", URL: "https://cdn.example.com/b.mp3",
	})
	require.NoError(t, err)

	_, err = svc.AddAudioSource(ctx, &AddAudioSourceParams{
		RoomID: "room-1", SenderID: "alice", URL: "https://cdn.example.com/c.mp3",
	})
	assert.ErrorIs(t, err, ErrPlaylistLimitReached)
}

func TestReorderAudioSources(t *testing.T) {
	svc := newTestService(t, testConfig())
	ctx := context.Background()

	join(t, svc, "room-1", "alice")

	for _, url := range []string{"a", "b", "c"} {
		_, err := svc.AddAudioSource(ctx, &AddAudioSourceParams{
			RoomID: "room-1", SenderID: "alice", URL: url,
		})
		require.NoError(t, err)
	}

	reorderResp, err := svc.ReorderAudioSources(ctx, &ReorderAudioSourcesParams{
		RoomID:   "room-1",
		SenderID: "alice",
		URLs:     []string{"c", "a", "b"},
	})
	require.NoError(t, err)
	require.Len(t, reorderResp.Sources, 3)
	assert.Equal(t, "c", reorderResp.Sources[0].URL)
	assert.Equal(t, "a", reorderResp.Sources[1].URL)
	assert.Equal(t, "b", reorderResp.Sources[2].URL)

	_, err = svc.ReorderAudioSources(ctx, &ReorderAudioSourcesParams{
		RoomID:   "room-1",
		SenderID: "alice",
		URLs:     []string{"c", "a", "x"},
	})
	assert.ErrorIs(t, err, ErrInvalidReorder)

	_, err = svc.ReorderAudioSources(ctx, &ReorderAudioSourcesParams{
		RoomID:   "room-1",
		SenderID: "alice",
		URLs:     []string{"c", "a"},
	})
	assert.ErrorIs(t, err, ErrInvalidReorder)
}

func TestRemoveSelectedYouTubeClearsSelection(t *testing.T) {
	svc := newTestService(t, testConfig())
	ctx := context.Background()

	join(t, svc, "room-1", "alice")

	_, err := svc.AddYouTubeSource(ctx, &AddYouTubeSourceParams{
		RoomID:   "room-1",
		SenderID: "alice",
		Source:   protocol.YouTubeSource{VideoID: "vid-1", Title: "first"},
	})
	require.NoError(t, err)

	_, err = svc.SetSelectedYouTube(ctx, &SetSelectedYouTubeParams{
		RoomID: "room-1", SenderID: "alice", VideoID: "vid-1",
	})
	require.NoError(t, err)

	removeResp, err := svc.RemoveYouTubeSource(ctx, &RemoveYouTubeSourceParams{
		RoomID: "room-1", SenderID: "alice", VideoID: "vid-1",
	})
	require.NoError(t, err)
	assert.True(t, removeResp.SelectionCleared)
	assert.Empty(t, removeResp.Sources)

	state, err := svc.GetRoomState(ctx, "room-1")
	require.NoError(t, err)
	assert.Empty(t, state.SelectedYouTube)
}

func TestReorderClientChangesOrderOnly(t *testing.T) {
	svc := newTestService(t, testConfig())
	ctx := context.Background()

	join(t, svc, "room-1", "alice")
	join(t, svc, "room-1", "bob")

	_, err := svc.AddAudioSource(ctx, &AddAudioSourceParams{
		RoomID: "room-1", SenderID: "alice", URL: "a",
	})
	require.NoError(t, err)
	_, err = svc.Play(ctx, &PlayParams{
		RoomID: "room-1", SenderID: "alice", AudioSource: "a", TrackTimeSeconds: 3,
	})
	require.NoError(t, err)

	reorderResp, err := svc.ReorderClient(ctx, &ReorderClientParams{
		RoomID: "room-1", SenderID: "bob", ClientID: "bob",
	})
	require.NoError(t, err)
	require.Len(t, reorderResp.Clients, 2)
	assert.Equal(t, "bob", reorderResp.Clients[0].ClientID)

	state, err := svc.GetRoomState(ctx, "room-1")
	require.NoError(t, err)
	require.NotNil(t, state.Playback)
	assert.Equal(t, "a", state.SelectedAudio, "reorder must not touch selection")
	assert.True(t, state.Playback.IsPlaying, "reorder must not touch playback")
}

func TestPauseYouTubeBeforeAnyPlayback(t *testing.T) {
	svc := newTestService(t, testConfig())
	ctx := context.Background()

	join(t, svc, "room-1", "alice")

	pauseResp, err := svc.PauseYouTube(ctx, &PauseYouTubeParams{
		RoomID: "room-1", SenderID: "alice",
	})
	require.NoError(t, err)
	require.NotNil(t, pauseResp.Message)
	assert.Equal(t, protocol.ActionPauseYouTube, pauseResp.Message.ScheduledAction.Type)

	state, err := svc.GetRoomState(ctx, "room-1")
	require.NoError(t, err)
	require.NotNil(t, state.Playback)
	assert.False(t, state.Playback.IsPlaying)
	assert.Zero(t, state.Playback.CurrentTime)
}

func TestLateJoinerGetsExtrapolatedPlayback(t *testing.T) {
	svc := newTestService(t, testConfig())
	ctx := context.Background()

	base := time.UnixMilli(1_700_000_000_000)
	now := base
	svc.now = func() time.Time { return now }

	join(t, svc, "room-1", "alice")

	_, err := svc.AddAudioSource(ctx, &AddAudioSourceParams{
		RoomID: "room-1", SenderID: "alice", URL: "a",
	})
	require.NoError(t, err)
	_, err = svc.Play(ctx, &PlayParams{
		RoomID: "room-1", SenderID: "alice", AudioSource: "a", TrackTimeSeconds: 10,
	})
	require.NoError(t, err)

	now = base.Add(2 * time.Second)

	state, err := svc.GetRoomState(ctx, "room-1")
	require.NoError(t, err)
	require.NotNil(t, state.Playback)
	assert.InDelta(t, 12.0, state.Playback.CurrentTime, 0.001)
	assert.True(t, state.Playback.IsPlaying)

	// paused position does not drift
	_, err = svc.Pause(ctx, &PauseParams{
		RoomID: "room-1", SenderID: "alice", TrackTimeSeconds: 12,
	})
	require.NoError(t, err)

	now = base.Add(10 * time.Second)

	state, err = svc.GetRoomState(ctx, "room-1")
	require.NoError(t, err)
	require.NotNil(t, state.Playback)
	assert.InDelta(t, 12.0, state.Playback.CurrentTime, 0.001)
	assert.False(t, state.Playback.IsPlaying)
}

func TestDisconnectAdminHandoff(t *testing.T) {
	svc := newTestService(t, testConfig())
	ctx := context.Background()

	join(t, svc, "room-1", "alice")
	join(t, svc, "room-1", "bob")

	disconnectResp, err := svc.DisconnectClient(ctx, &DisconnectClientParams{
		RoomID: "room-1", ClientID: "alice",
	})
	require.NoError(t, err)
	assert.False(t, disconnectResp.IsRoomEmpty)
	require.Len(t, disconnectResp.Clients, 1)
	assert.Equal(t, "bob", disconnectResp.Clients[0].ClientID)
	assert.True(t, disconnectResp.Clients[0].IsAdmin, "admin must be handed off")
}

func TestRoomDeletedAfterGracePeriod(t *testing.T) {
	svc := newTestService(t, testConfig())
	ctx := context.Background()

	join(t, svc, "room-1", "alice")

	disconnectResp, err := svc.DisconnectClient(ctx, &DisconnectClientParams{
		RoomID: "room-1", ClientID: "alice",
	})
	require.NoError(t, err)
	assert.True(t, disconnectResp.IsRoomEmpty)

	assert.Eventually(t, func() bool {
		ids, err := svc.roomRepo.GetClientIDs(ctx, "room-1")
		return err == nil && len(ids) == 0
	}, time.Second, 10*time.Millisecond)

	// fresh room after the grace period fired
	joinResp := join(t, svc, "room-1", "bob")
	assert.True(t, joinResp.Clients[0].IsAdmin)
}

// Cleanup deletes the registry entry while a caller can already be blocked
// on its mutex. The waiter must detect the orphaned entry and retry, or two
// goroutines end up holding "the" room lock at once.
func TestLockRoomRetriesAfterCleanupDeletesEntry(t *testing.T) {
	svc := newTestService(t, testConfig())

	orphan := svc.lockRoom("room-1")

	got := make(chan *roomEntry)
	go func() { got <- svc.lockRoom("room-1") }()

	// let the waiter block on the orphan's mutex
	time.Sleep(20 * time.Millisecond)

	svc.registryMu.Lock()
	delete(svc.registry, "room-1")
	svc.registryMu.Unlock()
	orphan.mu.Unlock()

	entry := <-got
	svc.registryMu.Lock()
	current := svc.registry["room-1"]
	svc.registryMu.Unlock()

	assert.NotSame(t, orphan, entry)
	assert.Same(t, current, entry, "waiter must hold the registered entry, not the orphan")
	entry.mu.Unlock()
}

func TestRejoinWithinGraceKeepsRoom(t *testing.T) {
	cfg := testConfig()
	cfg.GracePeriod = 200 * time.Millisecond
	svc := newTestService(t, cfg)
	ctx := context.Background()

	join(t, svc, "room-1", "alice")

	_, err := svc.AddAudioSource(ctx, &AddAudioSourceParams{
		RoomID: "room-1", SenderID: "alice", URL: "a",
	})
	require.NoError(t, err)

	_, err = svc.DisconnectClient(ctx, &DisconnectClientParams{
		RoomID: "room-1", ClientID: "alice",
	})
	require.NoError(t, err)

	// rejoin before the grace period elapses
	join(t, svc, "room-1", "alice")

	time.Sleep(300 * time.Millisecond)

	state, err := svc.GetRoomState(ctx, "room-1")
	require.NoError(t, err)
	require.Len(t, state.AudioSources, 1, "room state must survive a rejoin within grace")
	assert.Equal(t, "a", state.AudioSources[0].URL)
}

func TestSpatialAudioLifecycle(t *testing.T) {
	svc := newTestService(t, testConfig())
	ctx := context.Background()

	join(t, svc, "room-1", "alice")
	join(t, svc, "room-1", "bob")

	startResp, err := svc.StartSpatialAudio(ctx, &StartSpatialAudioParams{
		RoomID: "room-1", SenderID: "alice",
	})
	require.NoError(t, err)
	require.NotNil(t, startResp.Message)
	assert.Equal(t, protocol.ActionSpatialConfig, startResp.Message.ScheduledAction.Type)

	payload, ok := startResp.Message.ScheduledAction.Payload.(protocol.SpatialConfigPayload)
	require.True(t, ok)
	require.Len(t, payload.Gains, 2)
	// everyone starts at the listening source, so gain is max
	for _, gain := range payload.Gains {
		assert.InDelta(t, spatial.MaxGain, gain.Gain, 0.001)
	}

	// moving away from the source reduces the gain
	moveResp, err := svc.MoveClient(ctx, &MoveClientParams{
		RoomID:   "room-1",
		SenderID: "bob",
		ClientID: "bob",
		Position: spatial.Position{X: 100, Y: 100},
	})
	require.NoError(t, err)
	require.NotNil(t, moveResp.Spatial, "moves must rebroadcast gains while spatial is active")

	payload = moveResp.Spatial.ScheduledAction.Payload.(protocol.SpatialConfigPayload)
	assert.Less(t, payload.Gains["bob"].Gain, payload.Gains["alice"].Gain)

	stopResp, err := svc.StopSpatialAudio(ctx, &StopSpatialAudioParams{
		RoomID: "room-1", SenderID: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, protocol.ActionStopSpatialAudio, stopResp.Message.ScheduledAction.Type)

	// once stopped, moves no longer carry spatial config
	moveResp, err = svc.MoveClient(ctx, &MoveClientParams{
		RoomID:   "room-1",
		SenderID: "bob",
		ClientID: "bob",
		Position: spatial.Position{X: 50, Y: 50},
	})
	require.NoError(t, err)
	assert.Nil(t, moveResp.Spatial)
}

func TestSetListeningSource(t *testing.T) {
	svc := newTestService(t, testConfig())
	ctx := context.Background()

	join(t, svc, "room-1", "alice")

	_, err := svc.StartSpatialAudio(ctx, &StartSpatialAudioParams{
		RoomID: "room-1", SenderID: "alice",
	})
	require.NoError(t, err)

	sourceResp, err := svc.SetListeningSource(ctx, &SetListeningSourceParams{
		RoomID:   "room-1",
		SenderID: "alice",
		Position: spatial.Position{X: 0, Y: 0},
	})
	require.NoError(t, err)
	require.NotNil(t, sourceResp.Message)

	payload := sourceResp.Message.ScheduledAction.Payload.(protocol.SpatialConfigPayload)
	assert.Equal(t, spatial.Position{X: 0, Y: 0}, payload.ListeningSource)
	// alice sits at grid center, now distant from the source
	assert.Less(t, payload.Gains["alice"].Gain, spatial.MaxGain)
}

func TestRecordClockStats(t *testing.T) {
	svc := newTestService(t, testConfig())
	ctx := context.Background()

	join(t, svc, "room-1", "alice")

	svc.RecordClockStats(ctx, &RecordClockStatsParams{
		RoomID:      "room-1",
		ClientID:    "alice",
		RoundTripMs: 42.5,
		RespondedAt: 1_700_000_000_000,
	})

	state, err := svc.GetRoomState(ctx, "room-1")
	require.NoError(t, err)
	require.Len(t, state.Clients, 1)
	assert.InDelta(t, 42.5, state.Clients[0].RoundTripMs, 0.001)
	assert.Equal(t, int64(1_700_000_000_000), state.Clients[0].LastClockResponseAt)

	// stats for an unknown client are dropped, not an error
	svc.RecordClockStats(ctx, &RecordClockStatsParams{
		RoomID:      "room-1",
		ClientID:    "stranger",
		RoundTripMs: 10,
	})
}
