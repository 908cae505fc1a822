package models

import "time"

// DeletedMessagePlaceholder replaces the content of soft-deleted messages.
const DeletedMessagePlaceholder = "[Mensaje eliminado]"

type User struct {
	ID          int       `json:"id"`
	Username    string    `json:"username"`
	DisplayName *string   `json:"display_name,omitempty"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Name returns the display name, falling back to the username.
func (u *User) Name() string {
	if u.DisplayName != nil && *u.DisplayName != "" {
		return *u.DisplayName
	}
	return u.Username
}

type Channel struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   *int      `json:"created_by,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type Message struct {
	ID        int        `json:"id"`
	ChannelID int        `json:"channel_id"`
	UserID    *int       `json:"user_id,omitempty"` // nil once the author is deleted
	Content   string     `json:"content"`
	FilePath  *string    `json:"-"`
	FileType  string     `json:"file_type,omitempty"` // "image" or "document"
	FileName  string     `json:"file_name,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	IsDeleted bool       `json:"is_deleted"`
}

// ChannelMembership is the per-user read cursor for a channel,
// created lazily on first interaction.
type ChannelMembership struct {
	ID         int       `json:"id"`
	UserID     int       `json:"user_id"`
	ChannelID  int       `json:"channel_id"`
	LastReadAt time.Time `json:"last_read_at"`
	JoinedAt   time.Time `json:"joined_at"`
}

type PushSubscription struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	KeyP256dh string    `json:"p256dh"`
	KeyAuth   string    `json:"auth"`
	CreatedAt time.Time `json:"created_at"`
}
