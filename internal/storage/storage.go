// Package storage defines the persistence gateway consumed by the
// real-time router and the HTTP handlers. Implementations live in
// subpackages; the router only sees this interface.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/avolkov/tidechat/internal/domain"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrDuplicate is returned when an insert violates a uniqueness
	// constraint, e.g. repeated identical reactions when the unique
	// reactions option is enabled.
	ErrDuplicate = errors.New("storage: duplicate")
)

// NewMessage holds the fields for a message insert. Attachment, when
// set, is written in the same transaction as the message row.
type NewMessage struct {
	Content    string
	ChannelID  int64
	UserID     int64
	ParentID   *int64
	Attachment *domain.AttachmentUpload
}

// NewReaction holds the fields for a reaction insert.
type NewReaction struct {
	MessageID int64
	UserID    int64
	Emoji     string
}

// NewDirectMessage holds the fields for a direct message insert.
type NewDirectMessage struct {
	Content    string
	SenderID   int64
	ReceiverID int64
}

// NewUser holds the fields for a user insert.
type NewUser struct {
	Username  string
	AvatarURL string
	IsGuest   bool
}

// NewChannel holds the fields for a channel insert. When CreatorID is
// set the creator is added as a channel admin in the same transaction.
type NewChannel struct {
	Name        string
	Description string
	IsPrivate   bool
	CreatorID   int64
}

// Store is the persistence gateway. All calls are context-bound; a
// storage failure surfaces as an error, never as a panic.
type Store interface {
	// InsertMessage persists a message (and its attachment, if any) and
	// returns the bare persisted row.
	InsertMessage(ctx context.Context, m NewMessage) (*domain.Message, error)

	// GetMessage returns the message joined with its author, attachment
	// and aggregated reactions. Returns ErrNotFound for unknown ids.
	GetMessage(ctx context.Context, id int64) (*domain.Message, error)

	// InsertReaction persists a reaction and returns it enriched with
	// the reacting user. The target message must exist.
	InsertReaction(ctx context.Context, r NewReaction) (*domain.Reaction, error)

	// InsertDirectMessage persists a direct message and returns it
	// enriched with sender and receiver identities.
	InsertDirectMessage(ctx context.Context, dm NewDirectMessage) (*domain.DirectMessage, error)

	// UpdateUserStatus sets a user's presence status and last-seen
	// timestamp, returning the updated user row.
	UpdateUserStatus(ctx context.Context, userID int64, status domain.PresenceStatus, lastSeen time.Time) (*domain.User, error)

	GetUser(ctx context.Context, id int64) (*domain.User, error)
	CreateUser(ctx context.Context, u NewUser) (*domain.User, error)

	CreateChannel(ctx context.Context, c NewChannel) (*domain.Channel, error)
	ListChannels(ctx context.Context) ([]domain.Channel, error)

	// ListChannelMessages returns the latest messages in a channel,
	// newest first, enriched with author identity.
	ListChannelMessages(ctx context.Context, channelID int64, limit int) ([]domain.Message, error)

	Close() error
}
