package room

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/syncroom/server/internal/repository/room"
	"github.com/syncroom/server/internal/spatial"
)

var (
	ErrRoomNotFound         = errors.New("room not found")
	ErrClientNotFound       = errors.New("client not found")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrMembersLimitReached  = errors.New("members limit reached")
	ErrPlaylistLimitReached = errors.New("playlist limit reached")
	ErrSourceNotFound       = errors.New("source not found")
	ErrInvalidReorder       = errors.New("reorder must be a permutation of the current sources")
)

type iRoomRepo interface {
	// client
	SetClient(context.Context, *room.SetClientParams) error
	GetClient(context.Context, *room.GetClientParams) (room.Client, error)
	GetClientIDs(ctx context.Context, roomID string) ([]string, error)
	RemoveClient(context.Context, *room.RemoveClientParams) error
	MoveClientToFront(ctx context.Context, roomID, clientID string) error
	UpdateClientPosition(context.Context, *room.UpdateClientPositionParams) error
	UpdateClientClockStats(context.Context, *room.UpdateClientClockStatsParams) error
	// sources
	AddAudioSource(ctx context.Context, roomID, url string) error
	GetAudioSources(ctx context.Context, roomID string) ([]string, error)
	SetAudioSources(ctx context.Context, roomID string, urls []string) error
	AddYouTubeSource(context.Context, *room.AddYouTubeSourceParams) error
	RemoveYouTubeSource(context.Context, *room.RemoveYouTubeSourceParams) error
	GetYouTubeSource(ctx context.Context, roomID, videoID string) (room.YouTubeSource, error)
	GetYouTubeSourceIDs(ctx context.Context, roomID string) ([]string, error)
	// playback and selection
	SetPlayback(context.Context, *room.SetPlaybackParams) error
	GetPlayback(ctx context.Context, roomID string) (room.Playback, error)
	SetSelectedAudio(ctx context.Context, roomID, url string) error
	GetSelectedAudio(ctx context.Context, roomID string) (string, error)
	SetSelectedYouTube(ctx context.Context, roomID, videoID string) error
	GetSelectedYouTube(ctx context.Context, roomID string) (string, error)
	SetMode(ctx context.Context, roomID, mode string) error
	GetMode(ctx context.Context, roomID string) (string, error)
	SetAdmin(ctx context.Context, roomID, clientID string) error
	GetAdmin(ctx context.Context, roomID string) (string, error)
	// spatial
	SetListeningSource(context.Context, *room.SetListeningSourceParams) error
	GetListeningSource(ctx context.Context, roomID string) (room.ListeningSource, error)
	SetSpatialActive(ctx context.Context, roomID string, active bool) error
	IsSpatialActive(ctx context.Context, roomID string) (bool, error)
	// room
	DeleteRoom(ctx context.Context, roomID string) error
}

type iConnRepo interface {
	Add(conn *websocket.Conn, roomID, clientID string) error
	RemoveByClientID(clientID string) (*websocket.Conn, error)
	GetRoomConns(roomID string) []*websocket.Conn
	CountRoomConns(roomID string) int
}

type Config struct {
	MembersLimit  int
	PlaylistLimit int
	ScheduleDelay time.Duration
	GracePeriod   time.Duration
	GridSize      float64
	GainCurve     spatial.Curve
}

// roomEntry serializes mutations for a single room and carries its
// deferred cleanup timer plus the execute-time high-water mark.
type roomEntry struct {
	mu            sync.Mutex
	cleanup       *time.Timer
	lastExecuteAt int64
}

type service struct {
	roomRepo iRoomRepo
	connRepo iConnRepo
	engine   *spatial.Engine
	logger   *slog.Logger
	cfg      Config

	registryMu sync.Mutex
	registry   map[string]*roomEntry

	now func() time.Time
}

func NewService(roomRepo iRoomRepo, connRepo iConnRepo, cfg Config, logger *slog.Logger) (*service, error) {
	engine, err := spatial.NewEngine(cfg.GridSize, cfg.GainCurve)
	if err != nil {
		return nil, err
	}

	return &service{
		roomRepo: roomRepo,
		connRepo: connRepo,
		engine:   engine,
		logger:   logger,
		cfg:      cfg,
		registry: make(map[string]*roomEntry),
		now:      time.Now,
	}, nil
}

func (s *service) nowMs() int64 {
	return s.now().UnixMilli()
}

// lockRoom takes the room's mutation lock, creating the registry entry
// lazily. Every state mutation for a room runs under this lock, which is
// what makes the room a single-writer aggregate. Cleanup can delete the
// entry while a caller is blocked on its mutex, so the entry is re-checked
// against the registry after locking and the lookup retried if it went
// stale; otherwise two callers could hold "the" room lock at once.
func (s *service) lockRoom(roomID string) *roomEntry {
	for {
		s.registryMu.Lock()
		entry, ok := s.registry[roomID]
		if !ok {
			entry = &roomEntry{}
			s.registry[roomID] = entry
		}
		s.registryMu.Unlock()

		entry.mu.Lock()

		s.registryMu.Lock()
		current := s.registry[roomID]
		s.registryMu.Unlock()
		if current == entry {
			return entry
		}

		entry.mu.Unlock()
	}
}

// cancelCleanup stops a pending room deletion. Must hold the room lock.
func (s *service) cancelCleanup(entry *roomEntry) {
	if entry.cleanup != nil {
		entry.cleanup.Stop()
		entry.cleanup = nil
	}
}

// scheduleCleanup arms room deletion after the grace period. Must hold the
// room lock. The timer re-checks live connections under the room lock, so
// a rejoin that lands before it fires always wins.
func (s *service) scheduleCleanup(roomID string, entry *roomEntry) {
	s.cancelCleanup(entry)
	entry.cleanup = time.AfterFunc(s.cfg.GracePeriod, func() {
		entry.mu.Lock()
		defer entry.mu.Unlock()

		if s.connRepo.CountRoomConns(roomID) > 0 {
			return
		}

		ctx := context.Background()
		if err := s.roomRepo.DeleteRoom(ctx, roomID); err != nil {
			s.logger.WarnContext(ctx, "failed to delete room", "room_id", roomID, "error", err)
			return
		}

		s.registryMu.Lock()
		delete(s.registry, roomID)
		s.registryMu.Unlock()

		s.logger.InfoContext(ctx, "room deleted after grace period", "room_id", roomID)
	})
}

// requireMember gates mutations on room membership. Callers that are not
// in the room are rejected before any state changes.
func (s *service) requireMember(ctx context.Context, roomID, clientID string) error {
	if _, err := s.roomRepo.GetClient(ctx, &room.GetClientParams{RoomID: roomID, ClientID: clientID}); err != nil {
		if errors.Is(err, room.ErrClientNotFound) {
			return ErrPermissionDenied
		}
		return err
	}

	return nil
}

// requireAdmin gates admin-only mutations.
func (s *service) requireAdmin(ctx context.Context, roomID, clientID string) error {
	if err := s.requireMember(ctx, roomID, clientID); err != nil {
		return err
	}

	admin, err := s.roomRepo.GetAdmin(ctx, roomID)
	if err != nil {
		if errors.Is(err, room.ErrSelectionNotSet) {
			return ErrPermissionDenied
		}
		return err
	}

	if admin != clientID {
		return ErrPermissionDenied
	}

	return nil
}
