package chat

import (
	"database/sql"
	"fmt"
	"time"
)

// MarkRead advances the (user, channel) read cursor to now, creating the
// membership row on first touch. The single-statement upsert keeps
// concurrent first-touch by the same user race-free: the unique index on
// (user_id, channel_id) turns the losing insert into an update.
func MarkRead(db *sql.DB, userID, channelID int) error {
	_, err := db.Exec(`
		INSERT INTO channel_memberships (user_id, channel_id, last_read_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, channel_id) DO UPDATE SET last_read_at = excluded.last_read_at
	`, userID, channelID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark as read: %w", err)
	}
	return nil
}

// EnsureMembership creates the membership row if absent without moving an
// existing read cursor.
func EnsureMembership(db *sql.DB, userID, channelID int) error {
	_, err := db.Exec(`
		INSERT INTO channel_memberships (user_id, channel_id, last_read_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, channel_id) DO NOTHING
	`, userID, channelID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to create membership: %w", err)
	}
	return nil
}

// UnreadCount counts messages in the channel newer than the user's read
// cursor, excluding the user's own messages and soft-deleted ones.
// Messages whose author was deleted still count as unread.
func UnreadCount(db *sql.DB, userID, channelID int) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*)
		FROM messages m
		JOIN channel_memberships cm ON cm.channel_id = m.channel_id
		WHERE cm.user_id = ? AND cm.channel_id = ?
		  AND m.created_at > cm.last_read_at
		  AND (m.user_id IS NULL OR m.user_id != cm.user_id)
		  AND m.is_deleted = 0
	`, userID, channelID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}
