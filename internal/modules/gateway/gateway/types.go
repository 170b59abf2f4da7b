package gateway

import (
	"sync"

	"github.com/mx-space/wiki/internal/modules/gateway/notify"
	"github.com/mx-space/wiki/internal/pkg/metrics"
	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

const (
	namespaceAdmin = "/admin"
	namespaceWeb   = "/web"
	redisChannel   = "wiki:gateway:events"

	messageJoin  = "join"
	messageLeave = "leave"

	broadcastBuffer = 256
)

// Message is the envelope used by hub broadcasts and Redis fan-out. Origin
// identifies the instance that produced it so it is not delivered twice.
type Message struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
	Room    string      `json:"room,omitempty"`
	Origin  string      `json:"origin"`
}

type gatewayPayload struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type clientMeta struct {
	sid   string
	admin bool
}

// AdminChecker reports whether a bearer token belongs to an admin.
type AdminChecker func(token string) bool

// Hub manages socket.io namespaces and cross-instance fan-out.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]bool // sid -> admin
	roomCount map[string]int
	sidRooms  map[string]map[string]struct{}

	broadcast  chan Message
	register   chan clientMeta
	unregister chan clientMeta

	origin  string
	bus     Bus
	logger  *zap.Logger
	metrics *metrics.Metrics
	sio     *socketio.Server
	isAdmin AdminChecker
}

var _ notify.Notifier = (*Hub)(nil)
