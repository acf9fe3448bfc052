package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"sidequest/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const roomShards = 64

// ChatHub tracks which connections sit in which chat room and delivers room
// events to them. Each connection is in at most one room at a time.
type ChatHub struct {
	mu sync.RWMutex

	// roomID -> clients subscribed to it
	rooms map[uint]map[*Client]struct{}

	// client -> its current room
	clientRoom map[*Client]uint

	clients map[*Client]struct{}

	notifier *Notifier
	wired    atomic.Bool
	logger   *slog.Logger

	shards [roomShards]sync.Mutex
}

// NewChatHub creates a hub. notifier may be nil, in which case events are
// delivered only to this instance's connections.
func NewChatHub(notifier *Notifier, logger *slog.Logger) *ChatHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHub{
		rooms:      make(map[uint]map[*Client]struct{}),
		clientRoom: make(map[*Client]uint),
		clients:    make(map[*Client]struct{}),
		notifier:   notifier,
		logger:     logger,
	}
}

// Name returns a human-readable identifier for this hub.
func (h *ChatHub) Name() string { return "chat hub" }

// Register adds a connection for userID.
func (h *ChatHub) Register(userID uint, conn *websocket.Conn) *Client {
	client := NewClient(h, conn, userID)
	client.logger = h.logger
	h.add(client)
	return client
}

func (h *ChatHub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	observability.WebSocketConnectionsTotal.Inc()
}

// UnregisterClient drops the client from its room and closes its outbound queue.
func (h *ChatHub) UnregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	h.leaveLocked(client)
	h.mu.Unlock()

	client.close()
	observability.WebSocketConnectionsTotal.Dec()
}

// Join moves client into roomID, leaving any room it was in.
func (h *ChatHub) Join(client *Client, roomID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	h.leaveLocked(client)
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][client] = struct{}{}
	h.clientRoom[client] = roomID
}

// Leave takes client out of its room.
func (h *ChatHub) Leave(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client)
}

func (h *ChatHub) leaveLocked(client *Client) {
	roomID, ok := h.clientRoom[client]
	if !ok {
		return
	}
	delete(h.clientRoom, client)
	if members, ok := h.rooms[roomID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// RoomOf returns the room client is in.
func (h *ChatHub) RoomOf(client *Client) (uint, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, ok := h.clientRoom[client]
	return id, ok
}

// RoomSize returns how many local connections are in roomID.
func (h *ChatHub) RoomSize(roomID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Deliver hands payload to every local connection in roomID.
func (h *ChatHub) Deliver(roomID uint, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[roomID] {
		client.TrySend(payload)
	}
}

// Broadcast sends payload to roomID on every instance. Once wired to Redis
// the event goes out through pub/sub and comes back via the subscriber;
// otherwise it is delivered locally.
func (h *ChatHub) Broadcast(ctx context.Context, roomID uint, payload []byte) error {
	if h.wired.Load() {
		return h.notifier.PublishRoom(ctx, roomID, payload)
	}
	h.Deliver(roomID, payload)
	return nil
}

// StartWiring subscribes the hub to Redis room channels. Without Redis it
// does nothing and Broadcast stays local.
func (h *ChatHub) StartWiring(ctx context.Context) error {
	if !h.notifier.Enabled() {
		return nil
	}
	err := h.notifier.StartRoomSubscriber(ctx, func(channel, payload string) {
		var roomID uint
		if _, err := fmt.Sscanf(channel, "chat:room:%d", &roomID); err != nil {
			h.logger.Warn("invalid room channel", slog.String("channel", channel))
			return
		}
		h.Deliver(roomID, []byte(payload))
	})
	if err != nil {
		return err
	}
	h.wired.Store(true)
	return nil
}

// LockRoom serialises work on roomID across this instance's goroutines and
// returns the unlock func. Rooms hash onto a fixed set of mutexes.
func (h *ChatHub) LockRoom(roomID uint) func() {
	m := &h.shards[roomID%roomShards]
	m.Lock()
	return m.Unlock
}

// Shutdown tells every connection the server is going away and closes it.
func (h *ChatHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*Client]struct{})
	h.rooms = make(map[uint]map[*Client]struct{})
	h.clientRoom = make(map[*Client]uint)
	h.mu.Unlock()

	notice := FailureFrame("Server is shutting down")
	for _, c := range clients {
		c.TrySend(notice)
		c.close()
		observability.WebSocketConnectionsTotal.Dec()
	}
	return nil
}
