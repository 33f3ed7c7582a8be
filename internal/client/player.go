package client

import "github.com/syncroom/server/internal/spatial"

// Player is the local playback surface a scheduled action lands on.
// Implementations own decoding and output; the client only tells them
// what to do and when.
type Player interface {
	Play(audioSource string, trackTimeSeconds float64)
	Pause(trackTimeSeconds float64)
	PlayYouTube(videoID string, trackTimeSeconds float64)
	PauseYouTube()
	SeekYouTube(trackTimeSeconds float64)
	// SetGain ramps the output level for spatial audio.
	SetGain(gain spatial.Gain)
	// ResetGain cancels any in-flight ramp and restores full volume.
	ResetGain()
}

// NopPlayer discards every instruction. Useful for clients that only
// observe room state.
type NopPlayer struct{}

func (NopPlayer) Play(string, float64)        {}
func (NopPlayer) Pause(float64)               {}
func (NopPlayer) PlayYouTube(string, float64) {}
func (NopPlayer) PauseYouTube()               {}
func (NopPlayer) SeekYouTube(float64)         {}
func (NopPlayer) SetGain(spatial.Gain)        {}
func (NopPlayer) ResetGain()                  {}
