package gateway

import (
	"context"
	"encoding/json"
	"strings"

	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

func formatMessage(event string, payload interface{}) gatewayPayload {
	return gatewayPayload{Type: event, Data: payload}
}

// targets maps a room to the namespaces and socket.io room that should
// receive it. An empty sioRoom means the whole namespace.
func targets(room string) (namespaces []string, sioRoom string) {
	switch {
	case room == "":
		return []string{namespaceAdmin, namespaceWeb}, ""
	case room == "admin":
		return []string{namespaceAdmin}, ""
	case room == "public":
		return []string{namespaceWeb}, ""
	case strings.HasPrefix(room, "post:"):
		return []string{namespaceWeb, namespaceAdmin}, room
	default:
		return []string{namespaceWeb}, room
	}
}

func (h *Hub) deliver(msg Message) {
	namespaces, room := targets(msg.Room)
	payload := formatMessage(msg.Event, msg.Payload)
	for _, nsp := range namespaces {
		ns := h.sio.Of(nsp, nil)
		var err error
		if room == "" {
			err = ns.Emit("message", payload)
		} else {
			err = ns.To(socketio.Room(room)).Emit("message", payload)
		}
		if err != nil {
			h.logger.Debug("gateway emit failed", zap.String("nsp", nsp), zap.Error(err))
		}
	}
	if h.metrics != nil {
		h.metrics.Realtime.WithLabelValues(msg.Event).Inc()
	}
}

// subscribeBus delivers messages produced by other instances.
func (h *Hub) subscribeBus(ctx context.Context) {
	ch, err := h.bus.Subscribe(ctx)
	if err != nil {
		h.logger.Warn("gateway subscribe failed, running single instance", zap.Error(err))
		return
	}
	for data := range ch {
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Origin == h.origin {
			continue
		}
		h.deliver(msg)
	}
}

type inboundMessage struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

func parseInbound(args ...any) (inboundMessage, bool) {
	if len(args) == 0 || args[0] == nil {
		return inboundMessage{}, false
	}

	var msg inboundMessage
	switch raw := args[0].(type) {
	case map[string]interface{}:
		msg.Type, _ = raw["type"].(string)
		msg.Payload, _ = raw["payload"].(map[string]interface{})
	case string:
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return inboundMessage{}, false
		}
	case []byte:
		if err := json.Unmarshal(raw, &msg); err != nil {
			return inboundMessage{}, false
		}
	default:
		return inboundMessage{}, false
	}

	msg.Type = strings.TrimSpace(msg.Type)
	if msg.Type == "" {
		return inboundMessage{}, false
	}
	if msg.Payload == nil {
		msg.Payload = map[string]interface{}{}
	}
	return msg, true
}

func roomName(payload map[string]interface{}) string {
	for _, key := range []string{"roomName", "room_name"} {
		if v, ok := payload[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
