package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/mx-space/wiki/internal/pkg/metrics"
	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

// NewHub builds the socket.io server. bus may be nil for a single instance.
func NewHub(bus Bus, logger *zap.Logger, m *metrics.Metrics, isAdmin AdminChecker) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		clients:    make(map[string]bool),
		roomCount:  make(map[string]int),
		sidRooms:   make(map[string]map[string]struct{}),
		broadcast:  make(chan Message, broadcastBuffer),
		register:   make(chan clientMeta, broadcastBuffer),
		unregister: make(chan clientMeta, broadcastBuffer),
		origin:     uuid.NewString(),
		bus:        bus,
		logger:     logger.Named("Gateway"),
		metrics:    m,
		sio:        socketio.NewServer(nil, nil),
		isAdmin:    isAdmin,
	}
	h.registerNamespaces()
	return h
}

// Run starts the hub loop and bus subscriber until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	if h.bus != nil {
		go h.subscribeBus(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.sio.Close(nil)
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.sid] = c.admin
			h.mu.Unlock()

		case c := <-h.unregister:
			h.dropClient(c.sid)

		case msg := <-h.broadcast:
			h.deliver(msg)
			if h.bus == nil {
				continue
			}
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := h.bus.Publish(ctx, data); err != nil {
				h.logger.Warn("gateway publish failed", zap.String("event", msg.Event), zap.Error(err))
			}
		}
	}
}

func (h *Hub) dropClient(sid string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, sid)
	for room := range h.sidRooms[sid] {
		if h.roomCount[room] > 0 {
			h.roomCount[room]--
		}
		if h.roomCount[room] == 0 {
			delete(h.roomCount, room)
		}
	}
	delete(h.sidRooms, sid)
}

func (h *Hub) joinRoom(sid, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rooms, ok := h.sidRooms[sid]
	if !ok {
		rooms = make(map[string]struct{})
		h.sidRooms[sid] = rooms
	}
	if _, joined := rooms[room]; joined {
		return
	}
	rooms[room] = struct{}{}
	h.roomCount[room]++
}

func (h *Hub) leaveRoom(sid, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rooms := h.sidRooms[sid]
	if _, joined := rooms[room]; !joined {
		return
	}
	delete(rooms, room)
	h.roomCount[room]--
	if h.roomCount[room] <= 0 {
		delete(h.roomCount, room)
	}
}

// Broadcast queues an event for a room ("" for everyone, "admin",
// "public" or "post:<id>"). It never blocks; when the queue is full the
// event is dropped, since clients refetch on the next one anyway.
func (h *Hub) Broadcast(event string, payload interface{}, room string) {
	select {
	case h.broadcast <- Message{Event: event, Payload: payload, Room: room, Origin: h.origin}:
	default:
		h.logger.Warn("gateway queue full, event dropped", zap.String("event", event))
	}
}

// Stats is the snapshot returned by /gateway/stats.
type Stats struct {
	Web   int            `json:"web"`
	Admin int            `json:"admin"`
	Total int            `json:"total"`
	Rooms map[string]int `json:"rooms"`
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := Stats{Rooms: make(map[string]int, len(h.roomCount))}
	for _, admin := range h.clients {
		if admin {
			s.Admin++
		} else {
			s.Web++
		}
	}
	s.Total = len(h.clients)
	for room, n := range h.roomCount {
		s.Rooms[room] = n
	}
	return s
}

// Handler returns the socket.io HTTP handler mounted at /socket.io.
func (h *Hub) Handler() http.Handler {
	return h.sio.ServeHandler(nil)
}
