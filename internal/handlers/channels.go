package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/base43/calicanto/internal/chat"
)

// PresenceTracker exposes the hub's live connection registry.
type PresenceTracker interface {
	IsUserOnline(userID int) bool
	OnlineUserIDs() []int
}

type ChatHandler struct {
	db       *sql.DB
	pipeline *chat.Pipeline
	presence PresenceTracker
}

func NewChatHandler(db *sql.DB, presence PresenceTracker, storageRoot string) *ChatHandler {
	return &ChatHandler{
		db:       db,
		pipeline: chat.NewPipeline(db, storageRoot),
		presence: presence,
	}
}

type userResponse struct {
	ID     int     `json:"id"`
	Name   string  `json:"name"`
	Avatar *string `json:"avatar"`
}

type fileResponse struct {
	URL  string `json:"url"`
	Type string `json:"type"`
	Name string `json:"name"`
}

type messageResponse struct {
	ID        int           `json:"id"`
	ChannelID int           `json:"channel_id"`
	User      *userResponse `json:"user"`
	Content   string        `json:"content"`
	File      *fileResponse `json:"file"`
	CreatedAt time.Time     `json:"created_at"`
	EditedAt  *time.Time    `json:"edited_at,omitempty"`
	IsDeleted bool          `json:"is_deleted"`
}

// ListChannels returns active channels with the caller's unread counts.
func (h *ChatHandler) ListChannels(c *gin.Context) {
	userID := c.GetInt("user_id")

	snapshot, err := chat.UnreadSnapshot(h.db, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": __("failed to fetch channels")})
		return
	}

	c.JSON(http.StatusOK, gin.H{"channels": snapshot})
}

// GetChannel returns one active channel.
func (h *ChatHandler) GetChannel(c *gin.Context) {
	channelID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("invalid channel id")})
		return
	}

	var (
		name, description string
		createdAt         time.Time
		createdBy         *int
	)
	err = h.db.QueryRow(
		"SELECT name, description, created_by, created_at FROM channels WHERE id = ? AND is_active = 1",
		channelID,
	).Scan(&name, &description, &createdBy, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": __("channel not found")})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": __("failed to fetch channels")})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":          channelID,
		"name":        name,
		"description": description,
		"created_by":  createdBy,
		"created_at":  createdAt,
	})
}

// GetChannelMessages returns the last 100 messages of a channel in
// chronological order and marks the channel read for the caller.
func (h *ChatHandler) GetChannelMessages(c *gin.Context) {
	userID := c.GetInt("user_id")

	channelID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("invalid channel id")})
		return
	}

	if !h.channelActive(channelID) {
		c.JSON(http.StatusNotFound, gin.H{"error": __("channel not found")})
		return
	}

	// Viewing the history marks the channel read
	if err := chat.MarkRead(h.db, userID, channelID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": __("failed to mark as read")})
		return
	}

	rows, err := h.db.Query(`
		SELECT m.id, m.channel_id, m.user_id, m.content, m.file_path, m.file_type, m.file_name,
		       m.created_at, m.edited_at, m.is_deleted,
		       u.username, u.display_name, u.avatar_url
		FROM messages m
		LEFT JOIN users u ON u.id = m.user_id
		WHERE m.channel_id = ?
		ORDER BY m.created_at DESC
		LIMIT 100
	`, channelID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": __("failed to fetch messages")})
		return
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": __("failed to scan message")})
		return
	}

	// Reverse to get oldest first
	for i := len(messages)/2 - 1; i >= 0; i-- {
		opp := len(messages) - 1 - i
		messages[i], messages[opp] = messages[opp], messages[i]
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// MarkChannelRead advances the caller's read cursor for a channel.
func (h *ChatHandler) MarkChannelRead(c *gin.Context) {
	userID := c.GetInt("user_id")

	channelID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("invalid channel id")})
		return
	}

	if !h.channelActive(channelID) {
		c.JSON(http.StatusNotFound, gin.H{"error": __("channel not found")})
		return
	}

	if err := chat.MarkRead(h.db, userID, channelID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": __("failed to mark as read")})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

type editMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// EditMessage updates the caller's own message content.
func (h *ChatHandler) EditMessage(c *gin.Context) {
	userID := c.GetInt("user_id")

	messageID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("invalid message id")})
		return
	}

	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("invalid request")})
		return
	}

	msg, err := h.pipeline.Edit(userID, messageID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrMessageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": __("message not found")})
		case errors.Is(err, chat.ErrNotAuthor):
			c.JSON(http.StatusForbidden, gin.H{"error": __("can only edit own messages")})
		case errors.Is(err, chat.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": __("message content required")})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": __("failed to update message")})
		}
		return
	}

	c.JSON(http.StatusOK, msg)
}

// DeleteMessage soft-deletes the caller's own message.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	userID := c.GetInt("user_id")

	messageID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("invalid message id")})
		return
	}

	if _, err := h.pipeline.SoftDelete(userID, messageID); err != nil {
		switch {
		case errors.Is(err, chat.ErrMessageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": __("message not found")})
		case errors.Is(err, chat.ErrNotAuthor):
			c.JSON(http.StatusForbidden, gin.H{"error": __("can only delete own messages")})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": __("failed to delete message")})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// SearchMessages searches content and author names across active channels.
func (h *ChatHandler) SearchMessages(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusOK, gin.H{"results": []messageResponse{}})
		return
	}

	pattern := "%" + query + "%"
	rows, err := h.db.Query(`
		SELECT m.id, m.channel_id, m.user_id, m.content, m.file_path, m.file_type, m.file_name,
		       m.created_at, m.edited_at, m.is_deleted,
		       u.username, u.display_name, u.avatar_url
		FROM messages m
		JOIN channels ch ON ch.id = m.channel_id AND ch.is_active = 1
		LEFT JOIN users u ON u.id = m.user_id
		WHERE m.is_deleted = 0
		  AND (m.content LIKE ? OR u.username LIKE ? OR u.display_name LIKE ?)
		ORDER BY m.created_at DESC
		LIMIT 50
	`, pattern, pattern, pattern)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": __("failed to fetch messages")})
		return
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": __("failed to scan message")})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": messages})
}

// OnlineUsers returns the best-effort roster of connected users.
func (h *ChatHandler) OnlineUsers(c *gin.Context) {
	ids := h.presence.OnlineUserIDs()
	users := make([]userResponse, 0, len(ids))

	for _, id := range ids {
		var username string
		var displayName, avatarURL *string
		err := h.db.QueryRow(
			"SELECT username, display_name, avatar_url FROM users WHERE id = ?", id,
		).Scan(&username, &displayName, &avatarURL)
		if err != nil {
			continue
		}
		name := username
		if displayName != nil && *displayName != "" {
			name = *displayName
		}
		users = append(users, userResponse{ID: id, Name: name, Avatar: avatarURL})
	}

	c.JSON(http.StatusOK, gin.H{"online_users": users})
}

type pushSubscribeRequest struct {
	Endpoint  string `json:"endpoint" binding:"required"`
	KeyP256dh string `json:"p256dh" binding:"required"`
	KeyAuth   string `json:"auth" binding:"required"`
}

// PushSubscribe stores a Web Push subscription for the caller.
func (h *ChatHandler) PushSubscribe(c *gin.Context) {
	userID := c.GetInt("user_id")

	var req pushSubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("invalid subscription")})
		return
	}

	_, err := h.db.Exec(`
		INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (endpoint) DO UPDATE SET user_id = excluded.user_id,
			p256dh = excluded.p256dh, auth = excluded.auth, revoked_at = NULL
	`, userID, req.Endpoint, req.KeyP256dh, req.KeyAuth)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": __("failed to save subscription")})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success"})
}

type pushUnsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// PushUnsubscribe removes a stored subscription of the caller.
func (h *ChatHandler) PushUnsubscribe(c *gin.Context) {
	userID := c.GetInt("user_id")

	var req pushUnsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("invalid subscription")})
		return
	}

	if _, err := h.db.Exec(
		"DELETE FROM push_subscriptions WHERE user_id = ? AND endpoint = ?",
		userID, req.Endpoint,
	); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": __("failed to remove subscription")})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *ChatHandler) channelActive(channelID int) bool {
	var exists bool
	h.db.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM channels WHERE id = ? AND is_active = 1)", channelID,
	).Scan(&exists)
	return exists
}

func scanMessages(rows *sql.Rows) ([]messageResponse, error) {
	var messages []messageResponse
	for rows.Next() {
		var (
			resp                  messageResponse
			userID                *int
			filePath              sql.NullString
			fileType, fileName    string
			username, displayName *string
			avatarURL             *string
		)
		if err := rows.Scan(
			&resp.ID, &resp.ChannelID, &userID, &resp.Content,
			&filePath, &fileType, &fileName,
			&resp.CreatedAt, &resp.EditedAt, &resp.IsDeleted,
			&username, &displayName, &avatarURL,
		); err != nil {
			return nil, err
		}

		if userID != nil {
			name := ""
			if username != nil {
				name = *username
			}
			if displayName != nil && *displayName != "" {
				name = *displayName
			}
			resp.User = &userResponse{ID: *userID, Name: name, Avatar: avatarURL}
		} else {
			resp.User = &userResponse{Name: "Usuario eliminado"}
		}

		if filePath.Valid {
			resp.File = &fileResponse{
				URL:  "/media/" + filePath.String,
				Type: fileType,
				Name: fileName,
			}
		}

		messages = append(messages, resp)
	}
	return messages, rows.Err()
}
