package gateway

import (
	"strings"

	"github.com/mx-space/wiki/internal/middleware"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

func (h *Hub) registerNamespaces() {
	webNS := h.sio.Of(namespaceWeb, nil)
	_ = webNS.On("connection", func(args ...any) {
		client, ok := args[0].(*socketio.Socket)
		if !ok {
			return
		}
		sid := string(client.Id())
		h.register <- clientMeta{sid: sid}
		_ = client.Emit("message", formatMessage("GATEWAY_CONNECT", "WebSocket connected"))

		_ = client.On("message", func(eventArgs ...any) {
			msg, ok := parseInbound(eventArgs...)
			if !ok {
				return
			}
			room := roomName(msg.Payload)
			if room == "" {
				return
			}
			switch msg.Type {
			case messageJoin:
				client.Join(socketio.Room(room))
				h.joinRoom(sid, room)
			case messageLeave:
				client.Leave(socketio.Room(room))
				h.leaveRoom(sid, room)
			}
		})

		_ = client.On("disconnect", func(_ ...any) {
			h.unregister <- clientMeta{sid: sid}
		})
	})

	adminNS := h.sio.Of(namespaceAdmin, nil)
	_ = adminNS.On("connection", func(args ...any) {
		client, ok := args[0].(*socketio.Socket)
		if !ok {
			return
		}

		token := middleware.NormalizeToken(handshakeToken(client))
		if token == "" || h.isAdmin == nil || !h.isAdmin(token) {
			_ = client.Emit("message", formatMessage("AUTH_FAILED", "auth failed"))
			client.Disconnect(true)
			return
		}

		sid := string(client.Id())
		h.register <- clientMeta{sid: sid, admin: true}
		_ = client.Emit("message", formatMessage("GATEWAY_CONNECT", "WebSocket connected"))

		_ = client.On("message", func(eventArgs ...any) {
			msg, ok := parseInbound(eventArgs...)
			if !ok || msg.Type != messageJoin {
				return
			}
			if room := roomName(msg.Payload); room != "" {
				client.Join(socketio.Room(room))
				h.joinRoom(sid, room)
			}
		})

		_ = client.On("disconnect", func(_ ...any) {
			h.unregister <- clientMeta{sid: sid, admin: true}
		})
	})
}

func handshakeToken(client *socketio.Socket) string {
	handshake := client.Handshake()
	if handshake == nil {
		return ""
	}
	if token := firstValue(handshake.Query, "token"); token != "" {
		return token
	}
	return firstValue(handshake.Headers, "authorization")
}

func firstValue(values map[string][]string, key string) string {
	for k, list := range values {
		if !strings.EqualFold(strings.TrimSpace(k), key) || len(list) == 0 {
			continue
		}
		if v := strings.TrimSpace(list[0]); v != "" {
			return v
		}
	}
	return ""
}
