// README: In-memory session registry: topic fan-out to connected clients with at-most-once delivery.
package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"leafline/internal/logger"
	"leafline/internal/types"
)

const (
	TopicDrivers = "drivers"
	TopicAdmins  = "admins"

	// sessionBuffer bounds each session's pending queue. A client that
	// falls this far behind starts losing events rather than stalling
	// the publisher.
	sessionBuffer = 16
)

func TopicUser(id types.ID) string {
	return "user:" + string(id)
}

// Event is the envelope pushed to connected clients.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
	At   time.Time      `json:"at"`
}

func NewEvent(eventType string, data map[string]any) Event {
	return Event{Type: eventType, Data: data, At: time.Now()}
}

// Session is one live client connection. Events arrive on the Events
// channel; the registry closes it on Disconnect.
type Session struct {
	ID      string
	ActorID types.ID
	Role    types.Role
	Events  chan Event
	topics  []string
}

// Registry tracks live sessions and routes events by topic. Delivery is
// at-most-once: a full session buffer drops the event for that session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	topics   map[string]map[string]*Session

	onDriverGone func(actorID types.ID)
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		topics:   make(map[string]map[string]*Session),
	}
}

// OnDriverDisconnect registers the hook invoked when a driver's last
// session goes away. Must be called before sessions connect.
func (r *Registry) OnDriverDisconnect(fn func(actorID types.ID)) {
	r.onDriverGone = fn
}

// Connect registers a session subscribed to the actor's personal topic
// plus the role-wide topic where one exists.
func (r *Registry) Connect(actorID types.ID, role types.Role) *Session {
	topics := []string{TopicUser(actorID)}
	switch {
	case role == types.RoleDriver:
		topics = append(topics, TopicDrivers)
	case role.IsOperator():
		topics = append(topics, TopicAdmins)
	}

	s := &Session{
		ID:      uuid.NewString(),
		ActorID: actorID,
		Role:    role,
		Events:  make(chan Event, sessionBuffer),
		topics:  topics,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	for _, t := range topics {
		if r.topics[t] == nil {
			r.topics[t] = make(map[string]*Session)
		}
		r.topics[t][s.ID] = s
	}
	return s
}

// Disconnect removes the session and closes its channel. When a driver's
// last session disappears the driver-disconnect hook fires.
func (r *Registry) Disconnect(s *Session) {
	r.mu.Lock()
	if _, ok := r.sessions[s.ID]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, s.ID)
	for _, t := range s.topics {
		delete(r.topics[t], s.ID)
		if len(r.topics[t]) == 0 {
			delete(r.topics, t)
		}
	}
	lastDriverSession := s.Role == types.RoleDriver && !r.connectedLocked(s.ActorID)
	hook := r.onDriverGone
	r.mu.Unlock()

	close(s.Events)
	if lastDriverSession && hook != nil {
		hook(s.ActorID)
	}
}

// Publish delivers the event to every session on the topic and returns
// the number of sessions it reached. Sessions with full buffers are
// skipped.
func (r *Registry) Publish(topic string, ev Event) int {
	// Sends stay under the read lock: Disconnect holds the write lock
	// while closing a session's channel, so no send can hit a closed
	// channel. Sends never block, so the lock is held only briefly.
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for _, s := range r.topics[topic] {
		select {
		case s.Events <- ev:
			delivered++
		default:
			logger.Log.Warn("realtime: session buffer full, dropping event",
				zap.String("session", s.ID),
				zap.String("actor", string(s.ActorID)),
				zap.String("event", ev.Type))
		}
	}
	return delivered
}

// IsConnected reports whether the actor has at least one live session.
func (r *Registry) IsConnected(actorID types.ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connectedLocked(actorID)
}

func (r *Registry) connectedLocked(actorID types.ID) bool {
	_, ok := r.topics[TopicUser(actorID)]
	return ok
}
