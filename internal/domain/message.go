package domain

import "time"

// Channel is a named conversation scope.
type Channel struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsPrivate   bool      `json:"isPrivate"`
	CreatedAt   time.Time `json:"createdAt"`
}

// FileAttachment is a file linked to a single message.
type FileAttachment struct {
	ID        int64     `json:"id"`
	FileName  string    `json:"fileName"`
	FileURL   string    `json:"fileUrl"`
	FileType  string    `json:"fileType"`
	MessageID int64     `json:"messageId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is a persisted channel message. ParentID is nil for top-level
// messages and set to the parent message id for thread replies.
type Message struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	ChannelID int64     `json:"channelId"`
	UserID    int64     `json:"userId"`
	ParentID  *int64    `json:"parentId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Enrichment, populated on reads joined with related rows.
	User       *UserRef        `json:"user,omitempty"`
	Attachment *FileAttachment `json:"fileAttachment,omitempty"`
	Reactions  []Reaction      `json:"reactions,omitempty"`
}

// Reaction is a single emoji reaction on a message.
type Reaction struct {
	ID        int64     `json:"id"`
	Emoji     string    `json:"emoji"`
	MessageID int64     `json:"messageId"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`

	User *UserRef `json:"user,omitempty"`
}

// DirectMessage is a persisted two-party message. It has no room of its
// own; delivery targets each participant's user room.
type DirectMessage struct {
	ID         int64     `json:"id"`
	Content    string    `json:"content"`
	SenderID   int64     `json:"senderId"`
	ReceiverID int64     `json:"receiverId"`
	CreatedAt  time.Time `json:"createdAt"`

	Sender   *UserRef `json:"sender,omitempty"`
	Receiver *UserRef `json:"receiver,omitempty"`
}
