package room

import "errors"

var (
	ErrClientNotFound      = errors.New("client not found")
	ErrSourceNotFound      = errors.New("source not found")
	ErrSourceAlreadyExists = errors.New("source already exists")
	ErrPlaybackNeverSet    = errors.New("playback state never set")
	ErrSelectionNotSet     = errors.New("selection not set")
)
