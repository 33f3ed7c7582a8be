// Package protocol defines the WebSocket message unions exchanged between
// the coordination server and playback clients. Both sides share these
// shapes so the dispatch boundary stays exhaustive.
package protocol

import "github.com/syncroom/server/internal/spatial"

// Client -> server message types.
const (
	TypePlay                = "PLAY"
	TypePause               = "PAUSE"
	TypePlayYouTube         = "PLAY_YOUTUBE"
	TypePauseYouTube        = "PAUSE_YOUTUBE"
	TypeSeekYouTube         = "SEEK_YOUTUBE"
	TypeNTPRequest          = "NTP_REQUEST"
	TypeStartSpatialAudio   = "START_SPATIAL_AUDIO"
	TypeStopSpatialAudio    = "STOP_SPATIAL_AUDIO"
	TypeSetListeningSource  = "SET_LISTENING_SOURCE"
	TypeMoveClient          = "MOVE_CLIENT"
	TypeReorderClient       = "REORDER_CLIENT"
	TypeSetMode             = "SET_MODE"
	TypeAddAudioSource      = "ADD_AUDIO_SOURCE"
	TypeReorderAudioSources = "REORDER_AUDIO_SOURCES"
	TypeAddYouTubeSource    = "ADD_YOUTUBE_SOURCE"
	TypeRemoveYouTubeSource = "REMOVE_YOUTUBE_SOURCE"
	TypeSetSelectedAudio    = "SET_SELECTED_AUDIO"
	TypeSetSelectedYouTube  = "SET_SELECTED_YOUTUBE"
	TypeSync                = "SYNC"
	TypeSetAdmin            = "SET_ADMIN"
)

// Server -> client message types.
const (
	TypeSetClientID     = "SET_CLIENT_ID"
	TypeNTPResponse     = "NTP_RESPONSE"
	TypeScheduledAction = "SCHEDULED_ACTION"
	TypeRoomEvent       = "ROOM_EVENT"
	TypeError           = "ERROR"
)

// Scheduled action variants.
const (
	ActionPlay             = "PLAY"
	ActionPause            = "PAUSE"
	ActionPlayYouTube      = "PLAY_YOUTUBE"
	ActionPauseYouTube     = "PAUSE_YOUTUBE"
	ActionSeekYouTube      = "SEEK_YOUTUBE"
	ActionSpatialConfig    = "SPATIAL_CONFIG"
	ActionStopSpatialAudio = "STOP_SPATIAL_AUDIO"
)

// Room event variants.
const (
	EventClientChange          = "CLIENT_CHANGE"
	EventSetAudioSources       = "SET_AUDIO_SOURCES"
	EventSetYouTubeSources     = "SET_YOUTUBE_SOURCES"
	EventSelectedAudioChange   = "SELECTED_AUDIO_CHANGE"
	EventSelectedYouTubeChange = "SELECTED_YOUTUBE_CHANGE"
	EventPlaybackState         = "PLAYBACK_STATE"
	EventModeChange            = "MODE_CHANGE"
)

// Playback modes.
const (
	ModeLibrary = "library"
	ModeYouTube = "youtube"
)

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type Client struct {
	ClientID            string           `json:"client_id"`
	Username            string           `json:"username"`
	Position            spatial.Position `json:"position"`
	RoundTripMs         float64          `json:"round_trip_ms"`
	LastClockResponseAt int64            `json:"last_clock_response_at"`
	IsAdmin             bool             `json:"is_admin"`
}

type AudioSource struct {
	URL string `json:"url"`
}

type YouTubeSource struct {
	VideoID         string  `json:"video_id"`
	Title           string  `json:"title"`
	Thumbnail       string  `json:"thumbnail,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Channel         string  `json:"channel,omitempty"`
	AddedAt         int64   `json:"added_at"`
	AddedBy         string  `json:"added_by"`
}

// ScheduledAction is the broadcast instruction carrying an absolute server
// execution time. Each client converts it to a local wait with its own
// offset estimate.
type ScheduledAction struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type ScheduledActionMessage struct {
	ScheduledAction     ScheduledAction `json:"scheduled_action"`
	ServerTimeToExecute int64           `json:"server_time_to_execute"`
}

type PlayPayload struct {
	TrackTimeSeconds float64 `json:"track_time_seconds"`
	AudioSource      string  `json:"audio_source"`
}

type PausePayload struct {
	TrackTimeSeconds float64 `json:"track_time_seconds"`
}

type PlayYouTubePayload struct {
	VideoID          string  `json:"video_id"`
	TrackTimeSeconds float64 `json:"track_time_seconds"`
}

type SeekYouTubePayload struct {
	TrackTimeSeconds float64 `json:"track_time_seconds"`
}

type SpatialConfigPayload struct {
	Gains           map[string]spatial.Gain `json:"gains"`
	ListeningSource spatial.Position        `json:"listening_source"`
}

type RoomEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type RoomEventMessage struct {
	Event RoomEvent `json:"event"`
}

type ClientChangePayload struct {
	Clients []Client `json:"clients"`
}

type SetAudioSourcesPayload struct {
	Sources []AudioSource `json:"sources"`
}

type SetYouTubeSourcesPayload struct {
	Sources []YouTubeSource `json:"sources"`
}

type SelectedAudioChangePayload struct {
	AudioURL string `json:"audio_url"`
}

type SelectedYouTubeChangePayload struct {
	VideoID string `json:"video_id"`
}

type PlaybackStatePayload struct {
	IsPlaying       bool    `json:"is_playing"`
	CurrentTime     float64 `json:"current_time"`
	LastUpdated     int64   `json:"last_updated"`
	SelectedAudioID string  `json:"selected_audio_id,omitempty"`
	SelectedYTID    string  `json:"selected_youtube_id,omitempty"`
}

type ModeChangePayload struct {
	Mode string `json:"mode"`
}

type SetClientIDPayload struct {
	ClientID string `json:"client_id"`
}

type NTPRequestPayload struct {
	T0          int64   `json:"t0"`
	RoundTripMs float64 `json:"round_trip_ms,omitempty"`
}

type NTPResponsePayload struct {
	T0 int64 `json:"t0"`
	T1 int64 `json:"t1"`
	T2 int64 `json:"t2"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
