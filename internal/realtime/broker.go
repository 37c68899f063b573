// Package realtime fans events out to rooms. Delivery is best effort: a
// subscriber whose buffer is full misses the event.
package realtime

import (
	"log"
	"sync"
	"time"
)

// Broadcast is the room every connected client joins.
const (
	Broadcast = "broadcast"
)

func UserRoom(id string) string    { return "user:" + id }
func TeamRoom(id string) string    { return "team:" + id }
func ProjectRoom(id string) string { return "project:" + id }
func ChatRoom(id string) string    { return "chat:" + id }

// Event names.
const (
	TeamUpdated        = "team:updated"
	TeamDeleted        = "team:deleted"
	TeamMemberAdded    = "team:member-added"
	TeamMemberRemoved  = "team:member-removed"
	TeamJoinRequest    = "team:join-request"
	TeamRequestHandled = "team:join-request-handled"
	ProjectCreated     = "project:created"
	ProjectUpdated     = "project:updated"
	ProjectDeleted     = "project:deleted"
	TaskCreated        = "task:created"
	TaskUpdated        = "task:updated"
	TaskDeleted        = "task:deleted"
	TaskCommented      = "task:commented"
	PostCreated        = "post:created"
	PostUpdated        = "post:updated"
	PostDeleted        = "post:deleted"
	ChatCreated        = "chat:created"
	MessageCreated     = "message:created"
)

// Sink publishes an event to every subscriber of room. It must not block.
type Sink interface {
	Publish(room, event string, payload any)
}

type NopSink struct{}

func (NopSink) Publish(string, string, any) {}

type Event struct {
	Room    string    `json:"room"`
	Name    string    `json:"event"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

type Broker struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Subscription]struct{}
	buffer int
}

func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 32
	}
	return &Broker{rooms: make(map[string]map[*Subscription]struct{}), buffer: buffer}
}

func (b *Broker) Publish(room, event string, payload any) {
	ev := Event{Room: room, Name: event, Payload: payload, At: time.Now().UTC()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.rooms[room] {
		select {
		case sub.ch <- ev:
		default:
			log.Printf("[WARN] realtime: subscriber buffer full, dropped %s on %s", event, room)
		}
	}
}

// Subscribe joins rooms. The caller must Close the subscription.
func (b *Broker) Subscribe(rooms ...string) *Subscription {
	sub := &Subscription{broker: b, rooms: rooms, ch: make(chan Event, b.buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, room := range rooms {
		if b.rooms[room] == nil {
			b.rooms[room] = make(map[*Subscription]struct{})
		}
		b.rooms[room][sub] = struct{}{}
	}
	return sub
}

// Subscribers reports how many subscriptions currently hold room.
func (b *Broker) Subscribers(room string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[room])
}

type Subscription struct {
	broker *Broker
	rooms  []string
	ch     chan Event
	once   sync.Once
}

func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) Rooms() []string {
	return s.rooms
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		b := s.broker
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, room := range s.rooms {
			delete(b.rooms[room], s)
			if len(b.rooms[room]) == 0 {
				delete(b.rooms, room)
			}
		}
		close(s.ch)
	})
}
