package inmemory

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/syncroom/server/internal/repository/connection"
)

// repo tracks live websocket connections: conn <-> client id, plus the
// room each client is connected to so a room's subscribers can be listed
// without touching the state store.
type repo struct {
	connList map[*websocket.Conn]string
	idList   map[string]*websocket.Conn
	roomList map[string]string
	logger   *slog.Logger
	mu       sync.RWMutex
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		connList: make(map[*websocket.Conn]string),
		idList:   make(map[string]*websocket.Conn),
		roomList: make(map[string]string),
		logger:   logger,
	}
}

func (r *repo) Add(conn *websocket.Conn, roomID, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.connList[conn] != "" || r.idList[clientID] != nil {
		r.logger.Debug("connection.inmemory.Add", "error", connection.ErrAlreadyExists, "client_id", clientID)
		return connection.ErrAlreadyExists
	}

	r.connList[conn] = clientID
	r.idList[clientID] = conn
	r.roomList[clientID] = roomID

	return nil
}

func (r *repo) RemoveByClientID(clientID string) (*websocket.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.idList[clientID]
	if !ok {
		return nil, connection.ErrNotFound
	}

	delete(r.connList, conn)
	delete(r.idList, clientID)
	delete(r.roomList, clientID)

	return conn, nil
}

func (r *repo) RemoveByConn(conn *websocket.Conn) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	clientID, ok := r.connList[conn]
	if !ok {
		return "", connection.ErrNotFound
	}

	delete(r.connList, conn)
	delete(r.idList, clientID)
	delete(r.roomList, clientID)

	return clientID, nil
}

func (r *repo) GetClientID(conn *websocket.Conn) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clientID, ok := r.connList[conn]
	if !ok {
		return "", connection.ErrNotFound
	}

	return clientID, nil
}

func (r *repo) GetConn(clientID string) (*websocket.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.idList[clientID]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return conn, nil
}

// GetRoomConns returns every live connection subscribed to the room.
func (r *repo) GetRoomConns(roomID string) []*websocket.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*websocket.Conn, 0)
	for clientID, id := range r.roomList {
		if id != roomID {
			continue
		}
		if conn, ok := r.idList[clientID]; ok {
			conns = append(conns, conn)
		}
	}

	return conns
}

// CountRoomConns returns the number of live connections in the room.
func (r *repo) CountRoomConns(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, id := range r.roomList {
		if id == roomID {
			count++
		}
	}

	return count
}
