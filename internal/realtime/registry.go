// Package realtime tracks live push channels per user and per role and fans
// events out to them. Push delivery is a best-effort accelerant: the durable
// notification record is always the source of truth, so every failure here is
// logged and swallowed.
package realtime

import (
	"log/slog"
	"sync"
)

// Event names pushed to connected clients
const (
	EventConnected        = "connected"
	EventNotificationNew  = "notification:new"
	EventNotificationRead = "notification:read"
	EventAllRead          = "notification:all-read"
)

// Event is a server-to-client push message
type Event struct {
	Name string      `json:"event"`
	Data interface{} `json:"data,omitempty"`
}

// Channel is a single live connection belonging to one user. Send must not
// block; implementations drop the event and return an error when the peer
// cannot keep up.
type Channel interface {
	ID() string
	Send(Event) error
}

type registration struct {
	userID uint
	role   string
}

// Registry maps users and roles to their live channels. It is constructed
// explicitly and injected wherever pushes originate; there is no package-level
// instance. A user may hold many channels at once (multiple tabs/devices) and
// registration lifetime is bound to the connection lifetime.
type Registry struct {
	mu       sync.RWMutex
	closed   bool
	byUser   map[uint]map[string]Channel
	byRole   map[string]map[string]Channel
	handles  map[string]registration
	channels map[string]Channel
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		byUser:   make(map[uint]map[string]Channel),
		byRole:   make(map[string]map[string]Channel),
		handles:  make(map[string]registration),
		channels: make(map[string]Channel),
	}
}

// Register adds a channel to the user's and role's channel sets. Registering
// the same handle twice is a no-op.
func (r *Registry) Register(userID uint, role string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		slog.Warn("channel registered after registry shutdown, ignoring",
			slog.String("handle", ch.ID()),
			slog.String("module", "realtime"),
		)
		return
	}
	if _, ok := r.handles[ch.ID()]; ok {
		return
	}

	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[string]Channel)
	}
	r.byUser[userID][ch.ID()] = ch

	if role != "" {
		if r.byRole[role] == nil {
			r.byRole[role] = make(map[string]Channel)
		}
		r.byRole[role][ch.ID()] = ch
	}

	r.handles[ch.ID()] = registration{userID: userID, role: role}
	r.channels[ch.ID()] = ch
}

// Unregister removes a channel from every set it belongs to. Unknown handles
// are ignored.
func (r *Registry) Unregister(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.handles[handle]
	if !ok {
		return
	}
	delete(r.handles, handle)
	delete(r.channels, handle)

	if set := r.byUser[reg.userID]; set != nil {
		delete(set, handle)
		if len(set) == 0 {
			delete(r.byUser, reg.userID)
		}
	}
	if set := r.byRole[reg.role]; set != nil {
		delete(set, handle)
		if len(set) == 0 {
			delete(r.byRole, reg.role)
		}
	}
}

// PushToUser delivers the event to every live channel of the user and returns
// the number of channels reached. Zero is not an error.
func (r *Registry) PushToUser(userID uint, event Event) int {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		slog.Warn("push after registry shutdown",
			slog.String("event", event.Name),
			slog.String("module", "realtime"),
		)
		return 0
	}
	targets := make([]Channel, 0, len(r.byUser[userID]))
	for _, ch := range r.byUser[userID] {
		targets = append(targets, ch)
	}
	r.mu.RUnlock()

	return r.send(targets, event)
}

// PushToRole delivers the event to every live channel registered under the role
func (r *Registry) PushToRole(role string, event Event) int {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		slog.Warn("push after registry shutdown",
			slog.String("event", event.Name),
			slog.String("module", "realtime"),
		)
		return 0
	}
	targets := make([]Channel, 0, len(r.byRole[role]))
	for _, ch := range r.byRole[role] {
		targets = append(targets, ch)
	}
	r.mu.RUnlock()

	return r.send(targets, event)
}

func (r *Registry) send(targets []Channel, event Event) int {
	reached := 0
	for _, ch := range targets {
		if err := ch.Send(event); err != nil {
			slog.Warn("push delivery failed",
				slog.String("handle", ch.ID()),
				slog.String("event", event.Name),
				slog.String("error", err.Error()),
				slog.String("module", "realtime"),
			)
			continue
		}
		reached++
	}
	return reached
}

// ChannelCount reports the number of live channels
func (r *Registry) ChannelCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// Shutdown drops every registration. Subsequent pushes fail soft and return
// zero reached.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.byUser = make(map[uint]map[string]Channel)
	r.byRole = make(map[string]map[string]Channel)
	r.handles = make(map[string]registration)
	r.channels = make(map[string]Channel)
}
