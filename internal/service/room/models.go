package room

import "github.com/syncroom/server/internal/protocol"

// RoomState is the reconstructed authoritative view sent to a late joiner.
// It carries everything a client needs to converge without replaying
// history.
type RoomState struct {
	Clients         []protocol.Client              `json:"clients"`
	AudioSources    []protocol.AudioSource         `json:"audio_sources"`
	YouTubeSources  []protocol.YouTubeSource       `json:"youtube_sources"`
	SelectedAudio   string                         `json:"selected_audio,omitempty"`
	SelectedYouTube string                         `json:"selected_youtube,omitempty"`
	Mode            string                         `json:"mode,omitempty"`
	Playback        *protocol.PlaybackStatePayload `json:"playback,omitempty"`
}
