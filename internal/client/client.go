package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/syncroom/server/internal/protocol"
	"github.com/syncroom/server/pkg/actiontimer"
	"github.com/syncroom/server/pkg/clocksync"
)

const (
	defaultHeartbeatInterval = 2 * time.Second
	defaultHeartbeatTimeout  = 6 * time.Second
	defaultMaxReconnects     = 10

	backoffBase = 500 * time.Millisecond
	backoffCap  = 30 * time.Second
)

// Timer categories. Arming a category cancels its pending timer, so a
// superseding instruction always wins over a stale one.
const (
	categoryPlayback = "playback"
	categorySpatial  = "spatial"
)

type Config struct {
	// ServerURL is the websocket endpoint, e.g. ws://localhost:8080/api/v1/ws.
	ServerURL string
	RoomID    string
	Username  string
	// ClientID is optional. Leaving it empty lets the server assign one;
	// carrying it across reconnects preserves identity.
	ClientID string

	HeartbeatInterval    time.Duration
	HeartbeatTimeout     time.Duration
	MaxReconnectAttempts int
	WindowSize           int
}

// RoomView is the client's latest reconstruction of the room, folded from
// ROOM_EVENT messages.
type RoomView struct {
	Clients         []protocol.Client
	AudioSources    []protocol.AudioSource
	YouTubeSources  []protocol.YouTubeSource
	SelectedAudio   string
	SelectedYouTube string
	Mode            string
	Playback        *protocol.PlaybackStatePayload
}

type Client struct {
	cfg    Config
	player Player
	logger *slog.Logger

	estimator *clocksync.Estimator
	timers    *actiontimer.Scheduler
	session   *session

	mu        sync.Mutex
	conn      *websocket.Conn
	clientID  string
	lastHeard time.Time
	view      RoomView

	wmu sync.Mutex
}

func New(cfg Config, player Player, logger *slog.Logger) *Client {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = defaultMaxReconnects
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = clocksync.DefaultWindowSize
	}
	if player == nil {
		player = NopPlayer{}
	}

	return &Client{
		cfg:       cfg,
		player:    player,
		logger:    logger,
		estimator: clocksync.NewEstimator(cfg.WindowSize),
		timers:    actiontimer.New(),
		session:   newSession(),
		clientID:  cfg.ClientID,
	}
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}

// Run connects and serves the session until the context is canceled or
// the reconnect budget is exhausted. Each reconnect restarts the clock
// window from empty and drops pending action timers.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attempt++
		if attempt > c.cfg.MaxReconnectAttempts {
			return fmt.Errorf("reconnect attempts exhausted: %w", err)
		}

		delay := backoffDelay(attempt)
		c.logger.InfoContext(ctx, "reconnecting",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// backoffDelay doubles per attempt up to a cap, with jitter in the upper
// half so a fleet of clients does not reconnect in lockstep.
func backoffDelay(attempt int) time.Duration {
	d := backoffBase
	for i := 1; i < attempt && d < backoffCap; i++ {
		d *= 2
	}
	if d > backoffCap {
		d = backoffCap
	}

	return d/2 + time.Duration(rand.Int63n(int64(d/2)))
}

func (c *Client) runOnce(ctx context.Context) error {
	// stale offsets and pending actions must not survive a network change
	c.estimator.Reset()
	c.timers.CancelAll()

	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.lastHeard = time.Now()
	c.mu.Unlock()

	heartbeatDone := make(chan struct{})
	defer close(heartbeatDone)
	go c.heartbeat(ctx, conn, heartbeatDone)

	for {
		var msg wireMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read failed: %w", err)
		}

		if err := c.handleMessage(ctx, msg); err != nil {
			c.logger.DebugContext(ctx, "failed to handle message", "type", msg.Type, "error", err)
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.cfg.ServerURL)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	q.Set("room-id", c.cfg.RoomID)
	q.Set("username", c.cfg.Username)
	if id := c.ClientID(); id != "" {
		q.Set("client-id", id)
	}
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	return conn, err
}

// heartbeat drives the periodic clock probe and the staleness check. A
// probe that goes unanswered past the timeout closes the connection,
// which unblocks the read loop and triggers reconnection.
func (c *Client) heartbeat(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	c.sendNTPRequest(ctx, conn)

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			conn.Close()
			return
		case <-ticker.C:
			c.mu.Lock()
			stale := time.Since(c.lastHeard) > c.cfg.HeartbeatTimeout
			c.mu.Unlock()

			if stale {
				c.logger.WarnContext(ctx, "connection stale, closing")
				conn.Close()
				return
			}

			c.sendNTPRequest(ctx, conn)
		}
	}
}

func (c *Client) sendNTPRequest(ctx context.Context, conn *websocket.Conn) {
	t0 := nowMs()
	c.estimator.Begin(t0)

	payload := protocol.NTPRequestPayload{T0: t0}
	if c.estimator.Len() > 0 {
		payload.RoundTripMs = c.estimator.RoundTrip()
	}

	if err := c.write(conn, &protocol.Message{
		Type:    protocol.TypeNTPRequest,
		Payload: payload,
	}); err != nil {
		c.logger.DebugContext(ctx, "failed to send ntp request", "error", err)
	}
}

func (c *Client) write(conn *websocket.Conn, msg *protocol.Message) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	return conn.WriteJSON(msg)
}

// Send delivers a client command on the current connection.
func (c *Client) Send(msgType string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	return c.write(conn, &protocol.Message{Type: msgType, Payload: payload})
}

type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type wireScheduled struct {
	ScheduledAction struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	} `json:"scheduled_action"`
	ServerTimeToExecute int64 `json:"server_time_to_execute"`
}

type wireEvent struct {
	Event struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	} `json:"event"`
}

func (c *Client) handleMessage(ctx context.Context, msg wireMessage) error {
	switch msg.Type {
	case protocol.TypeSetClientID:
		var payload protocol.SetClientIDPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return err
		}
		c.mu.Lock()
		c.clientID = payload.ClientID
		c.mu.Unlock()

	case protocol.TypeNTPResponse:
		t3 := nowMs()
		var payload protocol.NTPResponsePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return err
		}
		c.estimator.Complete(clocksync.Measurement{
			T0: payload.T0,
			T1: payload.T1,
			T2: payload.T2,
			T3: t3,
		})
		c.mu.Lock()
		c.lastHeard = time.Now()
		c.mu.Unlock()

	case protocol.TypeScheduledAction:
		var scheduled wireScheduled
		if err := json.Unmarshal(msg.Payload, &scheduled); err != nil {
			return err
		}
		return c.scheduleAction(scheduled)

	case protocol.TypeRoomEvent:
		var event wireEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			return err
		}
		return c.applyRoomEvent(event)

	case protocol.TypeError:
		var payload protocol.ErrorPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return err
		}
		c.logger.WarnContext(ctx, "server error", "message", payload.Message)

	default:
		c.logger.DebugContext(ctx, "unknown message type", "type", msg.Type)
	}

	return nil
}

// scheduleAction converts the absolute server execute time into a local
// wait using the current offset estimate, then arms the category timer.
func (c *Client) scheduleAction(scheduled wireScheduled) error {
	wait := clocksync.WaitUntil(scheduled.ServerTimeToExecute, nowMs(), c.estimator.Offset())

	switch scheduled.ScheduledAction.Type {
	case protocol.ActionPlay:
		var payload protocol.PlayPayload
		if err := json.Unmarshal(scheduled.ScheduledAction.Payload, &payload); err != nil {
			return err
		}
		c.timers.Arm(categoryPlayback, wait, func() {
			c.player.Play(payload.AudioSource, payload.TrackTimeSeconds)
			c.session.transition(eventPlay)
		})

	case protocol.ActionPause:
		var payload protocol.PausePayload
		if err := json.Unmarshal(scheduled.ScheduledAction.Payload, &payload); err != nil {
			return err
		}
		c.timers.Arm(categoryPlayback, wait, func() {
			c.player.Pause(payload.TrackTimeSeconds)
			c.session.transition(eventPause)
		})

	case protocol.ActionPlayYouTube:
		var payload protocol.PlayYouTubePayload
		if err := json.Unmarshal(scheduled.ScheduledAction.Payload, &payload); err != nil {
			return err
		}
		c.timers.Arm(categoryPlayback, wait, func() {
			c.player.PlayYouTube(payload.VideoID, payload.TrackTimeSeconds)
			c.session.transition(eventPlay)
		})

	case protocol.ActionPauseYouTube:
		c.timers.Arm(categoryPlayback, wait, func() {
			c.player.PauseYouTube()
			c.session.transition(eventPause)
		})

	case protocol.ActionSeekYouTube:
		var payload protocol.SeekYouTubePayload
		if err := json.Unmarshal(scheduled.ScheduledAction.Payload, &payload); err != nil {
			return err
		}
		c.timers.Arm(categoryPlayback, wait, func() {
			c.player.SeekYouTube(payload.TrackTimeSeconds)
			c.session.transition(eventSeek)
		})

	case protocol.ActionSpatialConfig:
		var payload protocol.SpatialConfigPayload
		if err := json.Unmarshal(scheduled.ScheduledAction.Payload, &payload); err != nil {
			return err
		}
		gain, ok := payload.Gains[c.ClientID()]
		c.timers.Arm(categorySpatial, wait, func() {
			if ok {
				c.player.SetGain(gain)
			}
		})

	case protocol.ActionStopSpatialAudio:
		c.timers.Arm(categorySpatial, wait, func() {
			c.player.ResetGain()
		})

	default:
		c.logger.Debug("unknown scheduled action", "type", scheduled.ScheduledAction.Type)
	}

	return nil
}

func (c *Client) applyRoomEvent(event wireEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch event.Event.Type {
	case protocol.EventClientChange:
		var payload protocol.ClientChangePayload
		if err := json.Unmarshal(event.Event.Payload, &payload); err != nil {
			return err
		}
		c.view.Clients = payload.Clients

	case protocol.EventSetAudioSources:
		var payload protocol.SetAudioSourcesPayload
		if err := json.Unmarshal(event.Event.Payload, &payload); err != nil {
			return err
		}
		c.view.AudioSources = payload.Sources

	case protocol.EventSetYouTubeSources:
		var payload protocol.SetYouTubeSourcesPayload
		if err := json.Unmarshal(event.Event.Payload, &payload); err != nil {
			return err
		}
		c.view.YouTubeSources = payload.Sources

	case protocol.EventSelectedAudioChange:
		var payload protocol.SelectedAudioChangePayload
		if err := json.Unmarshal(event.Event.Payload, &payload); err != nil {
			return err
		}
		c.view.SelectedAudio = payload.AudioURL

	case protocol.EventSelectedYouTubeChange:
		var payload protocol.SelectedYouTubeChangePayload
		if err := json.Unmarshal(event.Event.Payload, &payload); err != nil {
			return err
		}
		c.view.SelectedYouTube = payload.VideoID

	case protocol.EventModeChange:
		var payload protocol.ModeChangePayload
		if err := json.Unmarshal(event.Event.Payload, &payload); err != nil {
			return err
		}
		c.view.Mode = payload.Mode

	case protocol.EventPlaybackState:
		var payload protocol.PlaybackStatePayload
		if err := json.Unmarshal(event.Event.Payload, &payload); err != nil {
			return err
		}
		c.view.Playback = &payload

	default:
		c.logger.Debug("unknown room event", "type", event.Event.Type)
	}

	return nil
}

// TrackEnded reports that the local track ran out. It feeds the same
// transition table as every other lifecycle change.
func (c *Client) TrackEnded() {
	c.session.transition(eventTrackEnded)
}

func (c *Client) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.clientID
}

func (c *Client) SessionState() SessionState {
	return c.session.State()
}

// Synced reports whether the clock window has filled at least once.
func (c *Client) Synced() bool {
	return c.estimator.Synced()
}

func (c *Client) Offset() float64 {
	return c.estimator.Offset()
}

// View returns a copy of the latest room reconstruction.
func (c *Client) View() RoomView {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.view
}
