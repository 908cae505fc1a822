package chat

import (
	"database/sql"
	"fmt"

	"github.com/base43/calicanto/internal/models"
)

// ChannelUnread is one row of a user's channel snapshot.
type ChannelUnread struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UnreadCount int    `json:"unread_count"`
}

// ListActive returns all active channels ordered by name. Every
// authenticated user is implicitly a member of every active channel;
// there is no channel-level access control.
func ListActive(db *sql.DB) ([]models.Channel, error) {
	rows, err := db.Query(`
		SELECT id, name, description, created_by, is_active, created_at
		FROM channels WHERE is_active = 1 ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch channels: %w", err)
	}
	defer rows.Close()

	var channels []models.Channel
	for rows.Next() {
		var ch models.Channel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Description, &ch.CreatedBy, &ch.IsActive, &ch.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

// UnreadSnapshot lazily ensures a membership per active channel and
// returns each channel with the user's unread count.
func UnreadSnapshot(db *sql.DB, userID int) ([]ChannelUnread, error) {
	channels, err := ListActive(db)
	if err != nil {
		return nil, err
	}

	snapshot := make([]ChannelUnread, 0, len(channels))
	for _, ch := range channels {
		if err := EnsureMembership(db, userID, ch.ID); err != nil {
			return nil, err
		}
		count, err := UnreadCount(db, userID, ch.ID)
		if err != nil {
			return nil, err
		}
		snapshot = append(snapshot, ChannelUnread{
			ID:          ch.ID,
			Name:        ch.Name,
			Description: ch.Description,
			UnreadCount: count,
		})
	}
	return snapshot, nil
}
