package ws

import (
	"time"

	"github.com/base43/calicanto/internal/chat"
	"github.com/base43/calicanto/internal/models"
)

// UserSummary is the profile slice attached to presence and message events.
type UserSummary struct {
	ID     int     `json:"id"`
	Name   string  `json:"name"`
	Avatar *string `json:"avatar"`
}

func summarize(u *models.User) UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name(), Avatar: u.AvatarURL}
}

// FileInfo describes a message attachment as sent to clients.
type FileInfo struct {
	URL  string `json:"url"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// MessagePayload is the wire shape of a chat message.
type MessagePayload struct {
	ID        int          `json:"id"`
	ChannelID int          `json:"channel_id"`
	User      *UserSummary `json:"user"`
	Content   string       `json:"content"`
	File      *FileInfo    `json:"file"`
	CreatedAt time.Time    `json:"created_at"`
	IsDeleted bool         `json:"is_deleted"`
}

type InitialDataEvent struct {
	Type        string               `json:"type"` // "initial_data"
	Channels    []chat.ChannelUnread `json:"channels"`
	OnlineUsers []UserSummary        `json:"online_users"`
	CurrentUser UserSummary          `json:"current_user"`
}

type NewMessageEvent struct {
	Type    string         `json:"type"` // "new_message"
	Message MessagePayload `json:"message"`
}

type UserOnlineEvent struct {
	Type       string  `json:"type"` // "user_online"
	UserID     int     `json:"user_id"`
	UserName   string  `json:"user_name"`
	UserAvatar *string `json:"user_avatar"`
}

type UserOfflineEvent struct {
	Type   string `json:"type"` // "user_offline"
	UserID int    `json:"user_id"`
}

type UserTypingEvent struct {
	Type      string `json:"type"` // "user_typing"
	UserID    int    `json:"user_id"`
	UserName  string `json:"user_name"`
	ChannelID int    `json:"channel_id"`
	IsTyping  bool   `json:"is_typing"`
}

type MessageDeletedEvent struct {
	Type      string `json:"type"` // "message_deleted"
	MessageID int    `json:"message_id"`
	ChannelID int    `json:"channel_id"`
}

type MarkedAsReadEvent struct {
	Type      string `json:"type"` // "marked_as_read"
	ChannelID int    `json:"channel_id"`
}

type ErrorEvent struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

func messagePayload(msg *models.Message, author *UserSummary) MessagePayload {
	payload := MessagePayload{
		ID:        msg.ID,
		ChannelID: msg.ChannelID,
		User:      author,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
		IsDeleted: msg.IsDeleted,
	}
	if msg.FilePath != nil {
		payload.File = &FileInfo{
			URL:  "/media/" + *msg.FilePath,
			Type: msg.FileType,
			Name: msg.FileName,
		}
	}
	return payload
}
