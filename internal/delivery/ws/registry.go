package ws

import (
	"strconv"
	"sync"

	"github.com/avolkov/tidechat/internal/domain"
	"github.com/avolkov/tidechat/internal/metrics"
)

// ChannelRoom returns the room identifier for a channel.
func ChannelRoom(channelID int64) string {
	return domain.RoomPrefixChannel + strconv.FormatInt(channelID, 10)
}

// ThreadRoom returns the room identifier for a thread, keyed by the
// parent message id.
func ThreadRoom(parentID int64) string {
	return domain.RoomPrefixThread + strconv.FormatInt(parentID, 10)
}

// UserRoom returns the per-user presence/DM room identifier.
func UserRoom(userID int64) string {
	return domain.RoomPrefixUser + strconv.FormatInt(userID, 10)
}

// Registry tracks which connections are subscribed to which rooms and
// answers room-scoped broadcasts. Purely in-memory; rooms with no
// members are absent from the map.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*Client
	joined map[string]map[string]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]map[string]*Client),
		joined: make(map[string]map[string]struct{}),
	}
}

// Join subscribes a connection to a room. Idempotent.
func (r *Registry) Join(c *Client, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		r.rooms[room] = members
	}
	members[c.ID] = c

	joined, ok := r.joined[c.ID]
	if !ok {
		joined = make(map[string]struct{})
		r.joined[c.ID] = joined
	}
	joined[room] = struct{}{}
}

// Leave unsubscribes a connection from a room. No-op when absent.
func (r *Registry) Leave(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, room)
}

// LeaveAll removes a connection from every room it belongs to. Invoked
// on disconnect so membership never leaks.
func (r *Registry) LeaveAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.joined[connID] {
		r.leaveLocked(connID, room)
	}
	delete(r.joined, connID)
}

func (r *Registry) leaveLocked(connID, room string) {
	if members, ok := r.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	if joined, ok := r.joined[connID]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(r.joined, connID)
		}
	}
}

// Broadcast delivers an event to every connection currently in room,
// optionally excluding one connection id (the sender). Membership is
// snapshotted at broadcast time; an empty room is a no-op, not an
// error. Returns the number of connections the event was handed to.
func (r *Registry) Broadcast(room string, t domain.EventType, payload any, exclude string) (int, error) {
	data, err := domain.Encode(t, payload)
	if err != nil {
		return 0, err
	}

	r.mu.RLock()
	members := make([]*Client, 0, len(r.rooms[room]))
	for id, c := range r.rooms[room] {
		if id == exclude {
			continue
		}
		members = append(members, c)
	}
	r.mu.RUnlock()

	for _, c := range members {
		c.Send(data)
	}
	metrics.BroadcastDeliveriesTotal.Add(float64(len(members)))
	return len(members), nil
}

// MemberCount returns the number of connections in room.
func (r *Registry) MemberCount(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// Rooms returns the rooms a connection is currently joined to.
func (r *Registry) Rooms(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.joined[connID]))
	for room := range r.joined[connID] {
		out = append(out, room)
	}
	return out
}
