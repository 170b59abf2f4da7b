// Package notify names the realtime events the wiki emits and the narrow
// interface services use to emit them.
package notify

import "sync"

// Events.
const (
	EventPostCreate    = "POST_CREATE"
	EventPostUpdate    = "POST_UPDATE"
	EventPostDelete    = "POST_DELETE"
	EventCommentCreate = "COMMENT_CREATE"
	EventCommentDelete = "COMMENT_DELETE"
	EventProfileUpdate = "PROFILE_UPDATE"
)

// Rooms. An empty room reaches every client.
const (
	RoomAll    = ""
	RoomAdmin  = "admin"
	RoomPublic = "public"
)

// PostRoom is the room of clients reading one post.
func PostRoom(postID string) string { return "post:" + postID }

// Notifier broadcasts an event to a room.
type Notifier interface {
	Broadcast(event string, payload interface{}, room string)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Broadcast(string, interface{}, string) {}

// Event is one recorded broadcast.
type Event struct {
	Name    string
	Payload interface{}
	Room    string
}

// Recorder keeps broadcasts in memory. It is meant for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Broadcast(event string, payload interface{}, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Name: event, Payload: payload, Room: room})
}

// Events returns a copy of what was broadcast so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Names returns the event names in order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Name
	}
	return out
}
