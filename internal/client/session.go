package client

import "sync"

// SessionState is the local playback lifecycle.
type SessionState string

const (
	StateIdle    SessionState = "idle"
	StatePlaying SessionState = "playing"
	StatePaused  SessionState = "paused"
	StateEnded   SessionState = "ended"
)

type sessionEvent string

const (
	eventPlay       sessionEvent = "play"
	eventPause      sessionEvent = "pause"
	eventSeek       sessionEvent = "seek"
	eventTrackEnded sessionEvent = "track_ended"
	eventStop       sessionEvent = "stop"
)

// transitions is the whole state machine. Every lifecycle change,
// including track-ended, goes through this table; an event missing for
// the current state leaves the state unchanged.
var transitions = map[SessionState]map[sessionEvent]SessionState{
	StateIdle: {
		eventPlay: StatePlaying,
	},
	StatePlaying: {
		eventPause:      StatePaused,
		eventSeek:       StatePlaying,
		eventTrackEnded: StateEnded,
		eventStop:       StateIdle,
	},
	StatePaused: {
		eventPlay: StatePlaying,
		eventSeek: StatePaused,
		eventStop: StateIdle,
	},
	StateEnded: {
		eventPlay: StatePlaying,
		eventStop: StateIdle,
	},
}

type session struct {
	mu    sync.Mutex
	state SessionState
}

func newSession() *session {
	return &session{state: StateIdle}
}

func (s *session) transition(event sessionEvent) SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if next, ok := transitions[s.state][event]; ok {
		s.state = next
	}

	return s.state
}

func (s *session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}
