// Package http provides the thin request/response surface around the
// real-time core: the websocket upgrade endpoint, health, metrics and
// minimal channel/message JSON routes.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/avolkov/tidechat/internal/delivery/ws"
	"github.com/avolkov/tidechat/internal/storage"
)

// Handler carries the dependencies shared by all HTTP endpoints.
type Handler struct {
	hub      *ws.Hub
	router   *ws.Router
	store    storage.Store
	origins  []string
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a Handler. allowedOrigins gates websocket upgrades;
// "*" allows any origin.
func NewHandler(hub *ws.Hub, router *ws.Router, store storage.Store, allowedOrigins []string, log *slog.Logger) *Handler {
	h := &Handler{
		hub:     hub,
		router:  router,
		store:   store,
		origins: allowedOrigins,
		log:     log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return h.originAllowed(r.Header.Get("Origin"))
		},
	}
	return h
}

func (h *Handler) originAllowed(origin string) bool {
	// Empty origin is allowed (same-origin and non-browser clients)
	if origin == "" {
		return true
	}
	for _, allowed := range h.origins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}
	return false
}

// HandleWebSocket upgrades the connection and starts its pumps.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := ws.NewClient(h.hub, h.router, conn)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// HandleHealth reports liveness and the current connection count.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": h.hub.ClientCount(),
	})
}

// HandleListChannels serves GET /api/channels.
func (h *Handler) HandleListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.store.ListChannels(r.Context())
	if err != nil {
		h.log.Error("list channels failed", "error", err)
		http.Error(w, "Error fetching channels", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

// HandleCreateChannel serves POST /api/channels.
func (h *Handler) HandleCreateChannel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		IsPrivate   bool   `json:"isPrivate"`
		CreatorID   int64  `json:"creatorId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	channel, err := h.store.CreateChannel(r.Context(), storage.NewChannel{
		Name:        req.Name,
		Description: req.Description,
		IsPrivate:   req.IsPrivate,
		CreatorID:   req.CreatorID,
	})
	if err != nil {
		h.log.Error("create channel failed", "error", err)
		http.Error(w, "Error creating channel", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, channel)
}

// HandleChannelMessages serves GET /api/channels/{id}/messages: the
// latest 50 messages, newest first, enriched with author identity.
func (h *Handler) HandleChannelMessages(w http.ResponseWriter, r *http.Request) {
	channelID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid channel id", http.StatusBadRequest)
		return
	}

	messages, err := h.store.ListChannelMessages(r.Context(), channelID, 50)
	if err != nil {
		h.log.Error("list messages failed", "channel_id", channelID, "error", err)
		http.Error(w, "Error fetching messages", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// HandleCreateUser serves POST /api/users. Sessions and passwords are
// handled by the auth service in front of this one; this endpoint only
// provisions the user row the real-time core references.
func (h *Handler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username  string `json:"username"`
		AvatarURL string `json:"avatarUrl"`
		IsGuest   bool   `json:"isGuest"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.store.CreateUser(r.Context(), storage.NewUser{
		Username:  req.Username,
		AvatarURL: req.AvatarURL,
		IsGuest:   req.IsGuest,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			http.Error(w, "Username already taken", http.StatusConflict)
			return
		}
		h.log.Error("create user failed", "error", err)
		http.Error(w, "Error creating user", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
