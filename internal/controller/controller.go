package controller

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/syncroom/server/internal/service/room"
	"github.com/syncroom/server/internal/spatial"
	"github.com/syncroom/server/pkg/validator"
	"github.com/syncroom/server/pkg/wsrouter"
)

type iRoomService interface {
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	DisconnectClient(context.Context, *room.DisconnectClientParams) (room.DisconnectClientResponse, error)
	GetRoomState(ctx context.Context, roomID string) (room.RoomState, error)
	// playback
	Play(context.Context, *room.PlayParams) (room.ScheduledActionResponse, error)
	Pause(context.Context, *room.PauseParams) (room.ScheduledActionResponse, error)
	PlayYouTube(context.Context, *room.PlayYouTubeParams) (room.ScheduledActionResponse, error)
	PauseYouTube(context.Context, *room.PauseYouTubeParams) (room.ScheduledActionResponse, error)
	SeekYouTube(context.Context, *room.SeekYouTubeParams) (room.ScheduledActionResponse, error)
	// sources and selection
	AddAudioSource(context.Context, *room.AddAudioSourceParams) (room.AudioSourcesResponse, error)
	ReorderAudioSources(context.Context, *room.ReorderAudioSourcesParams) (room.AudioSourcesResponse, error)
	AddYouTubeSource(context.Context, *room.AddYouTubeSourceParams) (room.YouTubeSourcesResponse, error)
	RemoveYouTubeSource(context.Context, *room.RemoveYouTubeSourceParams) (room.YouTubeSourcesResponse, error)
	SetSelectedAudio(context.Context, *room.SetSelectedAudioParams) (room.SelectionResponse, error)
	SetSelectedYouTube(context.Context, *room.SetSelectedYouTubeParams) (room.SelectionResponse, error)
	SetMode(context.Context, *room.SetModeParams) (room.SelectionResponse, error)
	// membership
	MoveClient(context.Context, *room.MoveClientParams) (room.MoveClientResponse, error)
	ReorderClient(context.Context, *room.ReorderClientParams) (room.ReorderClientResponse, error)
	SetAdmin(context.Context, *room.SetAdminParams) (room.SetAdminResponse, error)
	// spatial
	StartSpatialAudio(context.Context, *room.StartSpatialAudioParams) (room.ScheduledActionResponse, error)
	StopSpatialAudio(context.Context, *room.StopSpatialAudioParams) (room.ScheduledActionResponse, error)
	SetListeningSource(context.Context, *room.SetListeningSourceParams) (room.ScheduledActionResponse, error)
	// clock
	RecordClockStats(context.Context, *room.RecordClockStatsParams)
}

type controller struct {
	roomService iRoomService
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	wsmux       *wsrouter.WSRouter
	// writeLocks serializes writes per connection: broadcasts for the same
	// room run on different goroutines and the websocket allows only one
	// concurrent writer.
	writeLocks *sync.Map
	logger     *slog.Logger
}

func NewController(roomService iRoomService, logger *slog.Logger) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		validate:    validator.NewValidator(),
		writeLocks:  &sync.Map{},
		logger:      logger,
	}
	c.wsmux = c.getWSRouter()

	return c
}

func (c controller) nowMs() int64 {
	return time.Now().UnixMilli()
}

func (c controller) generateTimeBasedID() string {
	return strconv.FormatInt(time.Now().UnixNano(), 36)
}

// positionInput is the nested {x,y} shape of the MOVE_CLIENT payload.
type positionInput struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p positionInput) toPosition() spatial.Position {
	return spatial.Position{X: p.X, Y: p.Y}
}
