package room

type SetClientParams struct {
	RoomID   string
	ClientID string
	Username string
	X        float64
	Y        float64
}

type GetClientParams struct {
	RoomID   string
	ClientID string
}

type RemoveClientParams struct {
	RoomID   string
	ClientID string
}

type UpdateClientPositionParams struct {
	RoomID   string
	ClientID string
	X        float64
	Y        float64
}

type UpdateClientClockStatsParams struct {
	RoomID              string
	ClientID            string
	RoundTripMs         float64
	LastClockResponseAt int64
}

type AddYouTubeSourceParams struct {
	RoomID string
	Source YouTubeSource
}

type RemoveYouTubeSourceParams struct {
	RoomID  string
	VideoID string
}

type SetPlaybackParams struct {
	RoomID      string
	IsPlaying   bool
	CurrentTime float64
	UpdatedAt   int64
}

type SetListeningSourceParams struct {
	RoomID string
	X      float64
	Y      float64
}
