package room

type Client struct {
	Username            string  `redis:"username"`
	X                   float64 `redis:"x"`
	Y                   float64 `redis:"y"`
	RoundTripMs         float64 `redis:"round_trip_ms"`
	LastClockResponseAt int64   `redis:"last_clock_response_at"`
}

type YouTubeSource struct {
	VideoID         string  `redis:"video_id"`
	Title           string  `redis:"title"`
	Thumbnail       string  `redis:"thumbnail"`
	DurationSeconds float64 `redis:"duration_seconds"`
	Channel         string  `redis:"channel"`
	AddedAt         int64   `redis:"added_at"`
	AddedBy         string  `redis:"added_by"`
}

type Playback struct {
	IsPlaying   bool    `redis:"is_playing"`
	CurrentTime float64 `redis:"current_time"`
	UpdatedAt   int64   `redis:"updated_at"`
}

type ListeningSource struct {
	X float64 `redis:"x"`
	Y float64 `redis:"y"`
}
