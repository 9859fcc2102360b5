package hub

import (
	"sync"

	"github.com/rhayalcantara/proyectos-sub001/internal/config"
	"github.com/rhayalcantara/proyectos-sub001/internal/domain"
	"github.com/rhayalcantara/proyectos-sub001/pkg/log"
)

// Hub owns the per-process user -> connection map and the chat broadcast
// groups. One connection slot per user: a newer connection for the same
// user replaces the previous one (single-device semantics). Both maps are
// ephemeral and never persisted.
type Hub struct {
	users      map[string]*Client            // userID -> client
	chats      map[string]map[string]*Client // chatID -> userID -> client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *chatBroadcast
	mu         sync.RWMutex
	config     config.WebSocketConfig
}

type chatBroadcast struct {
	ChatID        string
	Message       []byte
	ExcludeUserID string
}

func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		users:      make(map[string]*Client),
		chats:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *chatBroadcast, 256),
		config:     cfg,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			prev := h.users[client.UserID]
			h.users[client.UserID] = client
			h.mu.Unlock()
			if prev != nil && prev != client {
				// Last write wins: the replaced connection is torn down and
				// its own unregister will clean up its group subscriptions.
				prev.closeConn()
				l := log.L()
				l.Info().Str(log.FieldUserID, client.UserID).Msg("existing connection replaced")
			}
			l := log.L()
			l.Debug().Str(log.FieldUserID, client.UserID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			for chatID, members := range h.chats {
				if members[client.UserID] == client {
					delete(members, client.UserID)
					if len(members) == 0 {
						delete(h.chats, chatID)
					}
				}
			}
			// Remove the slot only if it still points at this client, so a
			// replaced connection's teardown cannot evict its successor.
			if h.users[client.UserID] == client {
				delete(h.users, client.UserID)
			}
			h.mu.Unlock()
			client.closeSend()
			l := log.L()
			l.Debug().Str(log.FieldUserID, client.UserID).Msg("client unregistered")

		case msg := <-h.broadcast:
			h.mu.RLock()
			for userID, client := range h.chats[msg.ChatID] {
				if userID == msg.ExcludeUserID {
					continue
				}
				if !client.trySend(msg.Message) {
					// Best-effort relay: drop for a slow or gone
					// consumer rather than block the fan-out.
					l := log.L()
					l.Warn().Str(log.FieldUserID, userID).Str(log.FieldChatID, msg.ChatID).Msg("send buffer full, event dropped")
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// JoinChat subscribes the client to a chat's broadcast group. Idempotent.
func (h *Hub) JoinChat(client *Client, chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.chats[chatID]; !ok {
		h.chats[chatID] = make(map[string]*Client)
	}
	h.chats[chatID][client.UserID] = client
}

// LeaveChat removes the client from a chat's broadcast group.
func (h *Hub) LeaveChat(client *Client, chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.chats[chatID]; ok {
		if members[client.UserID] == client {
			delete(members, client.UserID)
			if len(members) == 0 {
				delete(h.chats, chatID)
			}
		}
	}
}

// BroadcastToChat relays an event frame to every current subscriber of the
// chat group, optionally excluding one user.
func (h *Hub) BroadcastToChat(chatID string, frame *domain.Frame, excludeUserID string) error {
	data, err := frame.Encode()
	if err != nil {
		return err
	}

	h.broadcast <- &chatBroadcast{
		ChatID:        chatID,
		Message:       data,
		ExcludeUserID: excludeUserID,
	}
	return nil
}

// SendToUser relays an event frame to a user's live connection. Returns
// false when the user has no connection; the caller decides whether that
// is a silent drop or a fallback path.
func (h *Hub) SendToUser(userID string, frame *domain.Frame) bool {
	h.mu.RLock()
	client, ok := h.users[userID]
	h.mu.RUnlock()

	if !ok {
		return false
	}

	if err := client.SendFrame(frame); err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("failed to send frame")
		return false
	}
	return true
}

// Connection returns the live connection for a user, if any.
func (h *Hub) Connection(userID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.users[userID]
	return client, ok
}

// IsUserOnline reports whether the user has a live connection right now.
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.users[userID]
	return ok
}

// ChatMemberCount returns the current subscriber count of a chat group.
func (h *Hub) ChatMemberCount(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.chats[chatID])
}
