package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/tidechat/internal/domain"
	"github.com/avolkov/tidechat/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient creates a client without an actual websocket connection.
func newTestClient(hub *Hub) *Client {
	return &Client{
		ID:   uuid.New().String(),
		hub:  hub,
		send: make(chan []byte, 64),
	}
}

// recvEvent pops one queued event from a test client, failing the test
// when nothing arrives in time.
func recvEvent(t *testing.T, c *Client) domain.Envelope {
	t.Helper()
	select {
	case data := <-c.send:
		var env domain.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("malformed envelope: %v", err)
		}
		return env
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return domain.Envelope{}
	}
}

// expectNoEvent asserts a test client's queue stays empty.
func expectNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected event: %s", data)
	default:
	}
}

// fakeStore is an in-memory storage.Store for router and presence tests.
// Error fields, when set, make the corresponding insert fail.
type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	unique bool

	users     map[int64]*domain.User
	messages  map[int64]*domain.Message
	reactions []domain.Reaction

	insertMessageErr  error
	insertReactionErr error
	insertDMErr       error
	updateStatusErr   error

	// updateStatusHook, when set, runs once at the start of the next
	// UpdateUserStatus call, before the write applies. Lets tests
	// interleave tracker calls with an in-flight status write.
	updateStatusHook func(userID int64, status domain.PresenceStatus)
}

var _ storage.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[int64]*domain.User),
		messages: make(map[int64]*domain.Message),
	}
}

func (f *fakeStore) addUser(id int64, username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = &domain.User{
		ID:       id,
		Username: username,
		Status:   domain.StatusOffline,
	}
}

func (f *fakeStore) addMessage(id, channelID int64, parentID *int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[id] = &domain.Message{
		ID:        id,
		ChannelID: channelID,
		ParentID:  parentID,
		Content:   fmt.Sprintf("message %d", id),
	}
	if id > f.nextID {
		f.nextID = id
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) InsertMessage(ctx context.Context, nm storage.NewMessage) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertMessageErr != nil {
		return nil, f.insertMessageErr
	}
	m := &domain.Message{
		ID:        f.id(),
		Content:   nm.Content,
		ChannelID: nm.ChannelID,
		UserID:    nm.UserID,
		ParentID:  nm.ParentID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if nm.Attachment != nil {
		m.Attachment = &domain.FileAttachment{
			ID:        f.id(),
			FileName:  nm.Attachment.FileName,
			FileURL:   nm.Attachment.FileURL,
			FileType:  nm.Attachment.FileType,
			MessageID: m.ID,
		}
	}
	f.messages[m.ID] = m
	return m, nil
}

func (f *fakeStore) GetMessage(ctx context.Context, id int64) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %d: %w", id, storage.ErrNotFound)
	}
	enriched := *m
	if u, ok := f.users[m.UserID]; ok {
		ref := u.Ref()
		enriched.User = &ref
	}
	for _, r := range f.reactions {
		if r.MessageID == id {
			enriched.Reactions = append(enriched.Reactions, r)
		}
	}
	return &enriched, nil
}

func (f *fakeStore) InsertReaction(ctx context.Context, nr storage.NewReaction) (*domain.Reaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertReactionErr != nil {
		return nil, f.insertReactionErr
	}
	if _, ok := f.messages[nr.MessageID]; !ok {
		return nil, fmt.Errorf("message %d: %w", nr.MessageID, storage.ErrNotFound)
	}
	if f.unique {
		for _, r := range f.reactions {
			if r.MessageID == nr.MessageID && r.UserID == nr.UserID && r.Emoji == nr.Emoji {
				return nil, fmt.Errorf("reaction: %w", storage.ErrDuplicate)
			}
		}
	}
	r := domain.Reaction{
		ID:        f.id(),
		Emoji:     nr.Emoji,
		MessageID: nr.MessageID,
		UserID:    nr.UserID,
		CreatedAt: time.Now(),
	}
	if u, ok := f.users[nr.UserID]; ok {
		ref := u.Ref()
		r.User = &ref
	}
	f.reactions = append(f.reactions, r)
	return &r, nil
}

func (f *fakeStore) InsertDirectMessage(ctx context.Context, ndm storage.NewDirectMessage) (*domain.DirectMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertDMErr != nil {
		return nil, f.insertDMErr
	}
	sender, ok := f.users[ndm.SenderID]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", ndm.SenderID, storage.ErrNotFound)
	}
	receiver, ok := f.users[ndm.ReceiverID]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", ndm.ReceiverID, storage.ErrNotFound)
	}
	senderRef := sender.Ref()
	receiverRef := receiver.Ref()
	return &domain.DirectMessage{
		ID:         f.id(),
		Content:    ndm.Content,
		SenderID:   ndm.SenderID,
		ReceiverID: ndm.ReceiverID,
		CreatedAt:  time.Now(),
		Sender:     &senderRef,
		Receiver:   &receiverRef,
	}, nil
}

func (f *fakeStore) UpdateUserStatus(ctx context.Context, userID int64, status domain.PresenceStatus, lastSeen time.Time) (*domain.User, error) {
	f.mu.Lock()
	hook := f.updateStatusHook
	f.updateStatusHook = nil
	f.mu.Unlock()
	if hook != nil {
		hook(userID, status)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateStatusErr != nil {
		return nil, f.updateStatusErr
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", userID, storage.ErrNotFound)
	}
	u.Status = status
	u.LastSeen = lastSeen
	copied := *u
	return &copied, nil
}

func (f *fakeStore) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) CreateUser(ctx context.Context, nu storage.NewUser) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &domain.User{ID: f.id(), Username: nu.Username, Status: domain.StatusOffline}
	f.users[u.ID] = u
	copied := *u
	return &copied, nil
}

func (f *fakeStore) CreateChannel(ctx context.Context, nc storage.NewChannel) (*domain.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &domain.Channel{ID: f.id(), Name: nc.Name}, nil
}

func (f *fakeStore) ListChannels(ctx context.Context) ([]domain.Channel, error) {
	return nil, nil
}

func (f *fakeStore) ListChannelMessages(ctx context.Context, channelID int64, limit int) ([]domain.Message, error) {
	return nil, nil
}

func (f *fakeStore) Close() error { return nil }

// newTestCore wires a registry, hub, tracker and router over a fake store.
func newTestCore(store *fakeStore) (*Registry, *Hub, *Tracker, *Router) {
	log := testLogger()
	registry := NewRegistry()
	hub := NewHub(registry, log)
	presence := NewTracker(store, registry, hub, log)
	hub.SetPresence(presence)
	router := NewRouter(store, registry, presence, log)
	return registry, hub, presence, router
}
