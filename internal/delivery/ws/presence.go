package ws

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avolkov/tidechat/internal/domain"
	"github.com/avolkov/tidechat/internal/storage"
)

// Broadcaster delivers an event to every live connection. Presence
// changes are global: any user's sidebar may show any other user's
// status, so the fan-out is not room-scoped.
type Broadcaster interface {
	BroadcastAll(t domain.EventType, payload any) (int, error)
}

// Tracker binds connections to authenticated users and drives
// online/offline transitions. Binding state is mutex-serialized and is
// never held across storage calls.
type Tracker struct {
	mu    sync.RWMutex
	conns map[string]int64 // connection id -> user id

	store    storage.Store
	registry *Registry
	all      Broadcaster
	log      *slog.Logger
}

// NewTracker creates a Tracker backed by the given store.
func NewTracker(store storage.Store, registry *Registry, all Broadcaster, log *slog.Logger) *Tracker {
	return &Tracker{
		conns:    make(map[string]int64),
		store:    store,
		registry: registry,
		all:      all,
		log:      log,
	}
}

// Authenticate binds a connection to a user, marks the user online,
// joins the connection to its user room and broadcasts the presence
// change to all connections.
func (t *Tracker) Authenticate(ctx context.Context, c *Client, userID int64) error {
	user, err := t.store.UpdateUserStatus(ctx, userID, domain.StatusOnline, time.Now())
	if err != nil {
		return fmt.Errorf("authenticate user %d: %w", userID, err)
	}

	t.mu.Lock()
	t.conns[c.ID] = userID
	t.mu.Unlock()

	t.registry.Join(c, UserRoom(userID))
	t.broadcastStatus(user)
	return nil
}

// Disconnect releases a connection's user binding. When the departing
// connection was the user's last live one, the user goes offline and
// the change is broadcast. Unauthenticated connections are a no-op.
func (t *Tracker) Disconnect(ctx context.Context, connID string) {
	t.mu.Lock()
	userID, ok := t.conns[connID]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(t.conns, connID)
	remaining := t.boundLocked(userID)
	t.mu.Unlock()

	if remaining {
		return
	}

	user, err := t.store.UpdateUserStatus(ctx, userID, domain.StatusOffline, time.Now())
	if err != nil {
		t.log.Error("presence offline update failed", "user_id", userID, "error", err)
		return
	}

	// The user may have reconnected and re-authenticated while the
	// offline write was in flight, in which case it stomped the fresh
	// online status. Undo it and let online win.
	t.mu.Lock()
	reconnected := t.boundLocked(userID)
	t.mu.Unlock()
	if reconnected {
		user, err = t.store.UpdateUserStatus(ctx, userID, domain.StatusOnline, time.Now())
		if err != nil {
			t.log.Error("presence online restore failed", "user_id", userID, "error", err)
			return
		}
	}
	t.broadcastStatus(user)
}

// boundLocked reports whether any live connection is bound to userID.
// Caller holds t.mu.
func (t *Tracker) boundLocked(userID int64) bool {
	for _, other := range t.conns {
		if other == userID {
			return true
		}
	}
	return false
}

// UpdateStatus applies an explicit status change requested by the user.
// Only the four defined status values are accepted; anything else is
// rejected without touching persisted state.
func (t *Tracker) UpdateStatus(ctx context.Context, userID int64, status domain.PresenceStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	user, err := t.store.UpdateUserStatus(ctx, userID, status, time.Now())
	if err != nil {
		return fmt.Errorf("update status for user %d: %w", userID, err)
	}
	t.broadcastStatus(user)
	return nil
}

// UserFor returns the user bound to a connection, if any.
func (t *Tracker) UserFor(connID string) (int64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	userID, ok := t.conns[connID]
	return userID, ok
}

func (t *Tracker) broadcastStatus(user *domain.User) {
	_, err := t.all.BroadcastAll(domain.EventUserStatus, domain.UserStatusPayload{
		UserID:   user.ID,
		Status:   user.Status,
		LastSeen: user.LastSeen,
	})
	if err != nil {
		t.log.Error("presence broadcast failed", "user_id", user.ID, "error", err)
	}
}
