package ws

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/base43/calicanto/internal/chat"
	"github.com/base43/calicanto/internal/models"
)

// presenceGroup is the implicit global group every open connection joins.
const presenceGroup = "online_users"

// channelGroup names the broadcast group for one chat channel.
func channelGroup(channelID int) string {
	return fmt.Sprintf("chat_%d", channelID)
}

// Notifier is the push hook invoked after a message fan-out.
type Notifier interface {
	NotifyChannelMessage(channelID, senderID int, senderName, channelName string, onlineUserIDs []int)
}

type presenceEntry struct {
	user  UserSummary
	conns int
}

// Hub owns the named broadcast groups and the live presence registry.
// Groups map a name to the set of connections registered under it; fan-out
// is a publish into that set, never a connection-to-connection call.
type Hub struct {
	groups     map[string]map[*Client]bool
	online     map[int]*presenceEntry
	register   chan *Client
	unregister chan *Client
	db         *sql.DB
	pipeline   *chat.Pipeline
	notifier   Notifier
	mu         sync.RWMutex
}

func NewHub(db *sql.DB, storageRoot string) *Hub {
	return &Hub{
		groups:     make(map[string]map[*Client]bool),
		online:     make(map[int]*presenceEntry),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		db:         db,
		pipeline:   chat.NewPipeline(db, storageRoot),
	}
}

// SetNotifier installs the push notifier. A nil notifier disables push.
func (h *Hub) SetNotifier(n Notifier) {
	h.notifier = n
}

// Run processes connection lifecycle events. Group joins and broadcasts
// are mutex-guarded methods called from connection goroutines; only
// register/unregister bookkeeping flows through here.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			entry, ok := h.online[client.user.ID]
			if !ok {
				entry = &presenceEntry{user: summarize(client.user)}
				h.online[client.user.ID] = entry
			}
			entry.conns++
			first := entry.conns == 1
			total := len(h.online)
			h.mu.Unlock()

			if first {
				h.BroadcastExcept(presenceGroup, &UserOnlineEvent{
					Type:       "user_online",
					UserID:     client.user.ID,
					UserName:   client.user.Name(),
					UserAvatar: client.user.AvatarURL,
				}, client)
			}
			log.Printf("User %d connected (online: %d)", client.user.ID, total)

		case client := <-h.unregister:
			h.mu.Lock()
			for name, members := range h.groups {
				if members[client] {
					delete(members, client)
					if len(members) == 0 {
						delete(h.groups, name)
					}
				}
			}
			last := false
			if entry, ok := h.online[client.user.ID]; ok {
				entry.conns--
				if entry.conns <= 0 {
					delete(h.online, client.user.ID)
					last = true
				}
			}
			total := len(h.online)
			close(client.send)
			h.mu.Unlock()

			if last {
				h.Broadcast(presenceGroup, &UserOfflineEvent{
					Type:   "user_offline",
					UserID: client.user.ID,
				})
			}
			log.Printf("User %d disconnected (online: %d)", client.user.ID, total)
		}
	}
}

// Join registers a connection under a named group.
func (h *Hub) Join(group string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Client]bool)
		h.groups[group] = members
	}
	members[c] = true
}

// Leave removes a connection from a named group.
func (h *Hub) Leave(group string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.groups[group]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}

// Broadcast delivers an event to every connection in the group.
func (h *Hub) Broadcast(group string, event interface{}) {
	h.BroadcastExcept(group, event, nil)
}

// BroadcastExcept delivers an event to every connection in the group
// except the given one. A full send buffer drops the event for that
// connection rather than blocking the fan-out.
func (h *Hub) BroadcastExcept(group string, event interface{}, except *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.groups[group] {
		if client == except {
			continue
		}
		select {
		case client.send <- event:
		default:
			log.Printf("Send channel full for user %d, dropping event", client.user.ID)
		}
	}
}

// IsUserOnline checks if a user has at least one open connection.
func (h *Hub) IsUserOnline(userID int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.online[userID]
	return ok
}

// OnlineUserIDs returns the ids of all currently connected users.
func (h *Hub) OnlineUserIDs() []int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]int, 0, len(h.online))
	for id := range h.online {
		ids = append(ids, id)
	}
	return ids
}

// OnlineUsers returns profile summaries for all connected users. The
// roster is best-effort: it reflects live connections only and is never
// persisted.
func (h *Hub) OnlineUsers() []UserSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	users := make([]UserSummary, 0, len(h.online))
	for _, entry := range h.online {
		users = append(users, entry.user)
	}
	return users
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, validate origin
		return true
	},
}

// HandleWebSocket upgrades an authenticated request to a chat connection.
// Unauthenticated attempts are refused before the upgrade with no payload
// beyond the status.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	user := &models.User{}
	err := h.db.QueryRow(
		"SELECT id, username, display_name, avatar_url, created_at FROM users WHERE id = ?",
		userID.(int),
	).Scan(&user.ID, &user.Username, &user.DisplayName, &user.AvatarURL, &user.CreatedAt)
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Upgrade error: %v", err)
		return
	}

	client := &Client{
		user: user,
		conn: conn,
		hub:  h,
		send: make(chan interface{}, 256),
	}

	h.register <- client

	go client.writePump()
	go client.run()
}
