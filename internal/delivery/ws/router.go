package ws

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/avolkov/tidechat/internal/domain"
	"github.com/avolkov/tidechat/internal/metrics"
	"github.com/avolkov/tidechat/internal/storage"
)

// Router validates, persists and fans out each inbound event. It keeps
// no state of its own between events; everything cross-event lives in
// the registry, the tracker or the store.
//
// Messages and reactions follow persist-then-enrich-then-broadcast: no
// speculative data is ever broadcast, so anything a client saw live is
// already durable if it re-fetches history after a reconnect.
type Router struct {
	store    storage.Store
	registry *Registry
	presence *Tracker
	log      *slog.Logger
}

// NewRouter creates a Router over the given collaborators.
func NewRouter(store storage.Store, registry *Registry, presence *Tracker, log *slog.Logger) *Router {
	return &Router{
		store:    store,
		registry: registry,
		presence: presence,
		log:      log,
	}
}

// Dispatch decodes one wire event and routes it to its handler. Every
// handler is fault-isolated: a failure ends as a typed error unicast to
// the originating connection and never as a crash or a partial
// broadcast to other connections.
func (r *Router) Dispatch(ctx context.Context, c *Client, data []byte) {
	ev, err := domain.ParseEvent(data)
	if err != nil {
		r.log.Warn("dropping malformed event", "conn_id", c.ID, "error", err)
		return
	}

	switch ev := ev.(type) {
	case *domain.JoinChannel:
		metrics.EventsTotal.WithLabelValues(string(domain.EventJoinChannel)).Inc()
		r.registry.Join(c, ChannelRoom(ev.ChannelID))
	case *domain.LeaveChannel:
		metrics.EventsTotal.WithLabelValues(string(domain.EventLeaveChannel)).Inc()
		r.registry.Leave(c.ID, ChannelRoom(ev.ChannelID))
	case *domain.JoinThread:
		metrics.EventsTotal.WithLabelValues(string(domain.EventJoinThread)).Inc()
		r.registry.Join(c, ThreadRoom(ev.ThreadID))
	case *domain.LeaveThread:
		metrics.EventsTotal.WithLabelValues(string(domain.EventLeaveThread)).Inc()
		r.registry.Leave(c.ID, ThreadRoom(ev.ThreadID))
	case *domain.Authenticate:
		metrics.EventsTotal.WithLabelValues(string(domain.EventAuthenticate)).Inc()
		r.handleAuthenticate(ctx, c, ev)
	case *domain.MessageEvent:
		metrics.EventsTotal.WithLabelValues(string(domain.EventMessage)).Inc()
		r.handleMessage(ctx, c, ev)
	case *domain.ReactionEvent:
		metrics.EventsTotal.WithLabelValues(string(domain.EventReaction)).Inc()
		r.handleReaction(ctx, c, ev)
	case *domain.DirectMessageEvent:
		metrics.EventsTotal.WithLabelValues(string(domain.EventDirectMessage)).Inc()
		r.handleDirectMessage(ctx, c, ev)
	case *domain.TypingEvent:
		metrics.EventsTotal.WithLabelValues(string(domain.EventTyping)).Inc()
		r.handleTyping(c, ev)
	case *domain.StatusUpdateEvent:
		metrics.EventsTotal.WithLabelValues(string(domain.EventStatusUpdate)).Inc()
		r.handleStatusUpdate(ctx, c, ev)
	}
}

func (r *Router) handleAuthenticate(ctx context.Context, c *Client, ev *domain.Authenticate) {
	if err := r.presence.Authenticate(ctx, c, ev.UserID); err != nil {
		r.fail(c, domain.EventAuthenticate, domain.EventStatusError, "authentication failed", err)
	}
}

func (r *Router) handleMessage(ctx context.Context, c *Client, ev *domain.MessageEvent) {
	if strings.TrimSpace(ev.Content) == "" && ev.FileAttachment == nil {
		r.reject(c, domain.EventMessage, domain.EventMessageError,
			"message must include content or a file attachment")
		return
	}

	inserted, err := r.store.InsertMessage(ctx, storage.NewMessage{
		Content:    ev.Content,
		ChannelID:  ev.ChannelID,
		UserID:     ev.UserID,
		ParentID:   ev.ParentID,
		Attachment: ev.FileAttachment,
	})
	if err != nil {
		r.fail(c, domain.EventMessage, domain.EventMessageError, "failed to save message", err)
		return
	}

	enriched, err := r.store.GetMessage(ctx, inserted.ID)
	if err != nil {
		r.fail(c, domain.EventMessage, domain.EventMessageError, "failed to load saved message", err)
		return
	}

	r.broadcast(ChannelRoom(ev.ChannelID), domain.EventMessage, enriched, "")
	if ev.ParentID != nil {
		r.broadcast(ThreadRoom(*ev.ParentID), domain.EventThreadMessage, enriched, "")
	}
}

func (r *Router) handleReaction(ctx context.Context, c *Client, ev *domain.ReactionEvent) {
	if strings.TrimSpace(ev.Emoji) == "" {
		r.reject(c, domain.EventReaction, domain.EventReactionError, "emoji is required")
		return
	}

	reaction, err := r.store.InsertReaction(ctx, storage.NewReaction{
		MessageID: ev.MessageID,
		UserID:    ev.UserID,
		Emoji:     ev.Emoji,
	})
	switch {
	case errors.Is(err, storage.ErrNotFound):
		r.fail(c, domain.EventReaction, domain.EventReactionError, "message not found", err)
		return
	case errors.Is(err, storage.ErrDuplicate):
		r.fail(c, domain.EventReaction, domain.EventReactionError, "duplicate reaction", err)
		return
	case err != nil:
		r.fail(c, domain.EventReaction, domain.EventReactionError, "failed to save reaction", err)
		return
	}

	// The owning message decides where the reaction fans out: its
	// channel room always, and its thread room when it is a reply.
	msg, err := r.store.GetMessage(ctx, ev.MessageID)
	if err != nil {
		r.fail(c, domain.EventReaction, domain.EventReactionError, "failed to load reacted message", err)
		return
	}

	payload := domain.ReactionBroadcast{MessageID: msg.ID, Reaction: *reaction}
	r.broadcast(ChannelRoom(msg.ChannelID), domain.EventReaction, payload, "")
	if msg.ParentID != nil {
		r.broadcast(ThreadRoom(*msg.ParentID), domain.EventReaction, payload, "")
	}
}

func (r *Router) handleDirectMessage(ctx context.Context, c *Client, ev *domain.DirectMessageEvent) {
	if strings.TrimSpace(ev.Content) == "" {
		r.reject(c, domain.EventDirectMessage, domain.EventDirectMessageError, "content is required")
		return
	}

	dm, err := r.store.InsertDirectMessage(ctx, storage.NewDirectMessage{
		Content:    ev.Content,
		SenderID:   ev.SenderID,
		ReceiverID: ev.ReceiverID,
	})
	switch {
	case errors.Is(err, storage.ErrNotFound):
		r.fail(c, domain.EventDirectMessage, domain.EventDirectMessageError, "recipient not found", err)
		return
	case err != nil:
		r.fail(c, domain.EventDirectMessage, domain.EventDirectMessageError, "failed to save direct message", err)
		return
	}

	// The persisted row doubles as the delivery acknowledgment: the
	// sender sees its own copy arrive in its user room, or an explicit
	// error above. No timers involved.
	r.broadcast(UserRoom(ev.SenderID), domain.EventDirectMessage, dm, "")
	if ev.ReceiverID != ev.SenderID {
		r.broadcast(UserRoom(ev.ReceiverID), domain.EventDirectMessage, dm, "")
	}
}

func (r *Router) handleTyping(c *Client, ev *domain.TypingEvent) {
	room := ChannelRoom(ev.ChannelID)
	if ev.ThreadID != nil {
		room = ThreadRoom(*ev.ThreadID)
	}
	// Ephemeral: never persisted, and the sender already knows.
	r.broadcast(room, domain.EventTyping, ev, c.ID)
}

func (r *Router) handleStatusUpdate(ctx context.Context, c *Client, ev *domain.StatusUpdateEvent) {
	if !ev.Status.Valid() {
		r.reject(c, domain.EventStatusUpdate, domain.EventStatusError, "invalid status value")
		return
	}

	userID, ok := r.presence.UserFor(c.ID)
	if !ok {
		r.reject(c, domain.EventStatusUpdate, domain.EventStatusError, "connection is not authenticated")
		return
	}

	if err := r.presence.UpdateStatus(ctx, userID, ev.Status); err != nil {
		r.fail(c, domain.EventStatusUpdate, domain.EventStatusError, "failed to update status", err)
	}
}

func (r *Router) broadcast(room string, t domain.EventType, payload any, exclude string) {
	if _, err := r.registry.Broadcast(room, t, payload, exclude); err != nil {
		r.log.Error("broadcast failed", "room", room, "event", t, "error", err)
	}
}

// reject unicasts a validation error before any persistence attempt.
func (r *Router) reject(c *Client, event, errEvent domain.EventType, msg string) {
	metrics.EventErrorsTotal.WithLabelValues(string(event)).Inc()
	r.log.Warn("event rejected", "conn_id", c.ID, "event", event, "reason", msg)
	if err := c.SendEvent(errEvent, domain.ErrorPayload{Error: msg}); err != nil {
		r.log.Error("error unicast failed", "conn_id", c.ID, "error", err)
	}
}

// fail unicasts a typed error for an event that failed after validation.
// The error never reaches other connections and nothing is retried.
func (r *Router) fail(c *Client, event, errEvent domain.EventType, msg string, cause error) {
	metrics.EventErrorsTotal.WithLabelValues(string(event)).Inc()
	r.log.Error("event failed", "conn_id", c.ID, "event", event, "reason", msg, "error", cause)
	payload := domain.ErrorPayload{Error: msg}
	if cause != nil {
		payload.Details = cause.Error()
	}
	if err := c.SendEvent(errEvent, payload); err != nil {
		r.log.Error("error unicast failed", "conn_id", c.ID, "error", err)
	}
}
