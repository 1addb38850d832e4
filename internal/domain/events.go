package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType tags a wire envelope.
type EventType string

// Inbound event types (client to server).
const (
	EventJoinChannel   EventType = "join_channel"
	EventLeaveChannel  EventType = "leave_channel"
	EventJoinThread    EventType = "join_thread"
	EventLeaveThread   EventType = "leave_thread"
	EventAuthenticate  EventType = "authenticate"
	EventMessage       EventType = "message"
	EventReaction      EventType = "reaction"
	EventDirectMessage EventType = "direct_message"
	EventTyping        EventType = "typing"
	EventStatusUpdate  EventType = "status_update"
)

// Outbound event types (server to client).
const (
	EventThreadMessage      EventType = "thread_message"
	EventUserStatus         EventType = "user_status"
	EventMessageError       EventType = "message_error"
	EventReactionError      EventType = "reaction_error"
	EventDirectMessageError EventType = "direct_message_error"
	EventStatusError        EventType = "status_error"
)

// Envelope is the wire framing for every event in both directions.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode marshals an outbound envelope for the given event type and payload.
func Encode(t EventType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, Payload: raw})
}

// JoinChannel subscribes the connection to a channel room.
type JoinChannel struct {
	ChannelID int64 `json:"channelId"`
}

// LeaveChannel unsubscribes the connection from a channel room.
type LeaveChannel struct {
	ChannelID int64 `json:"channelId"`
}

// JoinThread subscribes the connection to a thread room keyed by the
// parent message id.
type JoinThread struct {
	ThreadID int64 `json:"threadId"`
}

// LeaveThread unsubscribes the connection from a thread room.
type LeaveThread struct {
	ThreadID int64 `json:"threadId"`
}

// Authenticate binds the connection to a user.
type Authenticate struct {
	UserID int64 `json:"userId"`
}

// AttachmentUpload describes a previously uploaded file referenced by a
// new message.
type AttachmentUpload struct {
	FileName string `json:"fileName"`
	FileURL  string `json:"fileUrl"`
	FileType string `json:"fileType"`
}

// MessageEvent posts a message to a channel, optionally as a thread reply.
type MessageEvent struct {
	Content        string            `json:"content"`
	ChannelID      int64             `json:"channelId"`
	UserID         int64             `json:"userId"`
	ParentID       *int64            `json:"parentId,omitempty"`
	FileAttachment *AttachmentUpload `json:"fileAttachment,omitempty"`
}

// ReactionEvent adds an emoji reaction to an existing message.
type ReactionEvent struct {
	MessageID int64  `json:"messageId"`
	UserID    int64  `json:"userId"`
	Emoji     string `json:"emoji"`
}

// DirectMessageEvent sends a private message between two users.
type DirectMessageEvent struct {
	Content    string `json:"content"`
	SenderID   int64  `json:"senderId"`
	ReceiverID int64  `json:"receiverId"`
}

// TypingEvent is the ephemeral typing indicator. Never persisted.
type TypingEvent struct {
	ChannelID int64  `json:"channelId"`
	ThreadID  *int64 `json:"threadId,omitempty"`
	Username  string `json:"username"`
}

// StatusUpdateEvent is an explicit presence change requested by the user.
type StatusUpdateEvent struct {
	Status PresenceStatus `json:"status"`
}

// ReactionBroadcast is the outbound payload for a persisted reaction.
type ReactionBroadcast struct {
	MessageID int64    `json:"messageId"`
	Reaction  Reaction `json:"reaction"`
}

// UserStatusPayload is the outbound payload for presence changes.
type UserStatusPayload struct {
	UserID   int64          `json:"userId"`
	Status   PresenceStatus `json:"status"`
	LastSeen time.Time      `json:"lastSeen"`
}

// ErrorPayload is unicast to the originating connection when an event
// fails validation or persistence.
type ErrorPayload struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ParseEvent decodes a wire envelope into its typed inbound event. The
// returned value is one of the pointer types above; the router dispatches
// on it with a type switch.
func ParseEvent(data []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var ev any
	switch env.Type {
	case EventJoinChannel:
		ev = &JoinChannel{}
	case EventLeaveChannel:
		ev = &LeaveChannel{}
	case EventJoinThread:
		ev = &JoinThread{}
	case EventLeaveThread:
		ev = &LeaveThread{}
	case EventAuthenticate:
		ev = &Authenticate{}
	case EventMessage:
		ev = &MessageEvent{}
	case EventReaction:
		ev = &ReactionEvent{}
	case EventDirectMessage:
		ev = &DirectMessageEvent{}
	case EventTyping:
		ev = &TypingEvent{}
	case EventStatusUpdate:
		ev = &StatusUpdateEvent{}
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}

	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, ev); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
	}
	return ev, nil
}
