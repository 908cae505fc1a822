package chat

import (
	"testing"
	"time"
)

func TestMarkReadCreatesMembership(t *testing.T) {
	conn := setupTestDB(t)

	if err := MarkRead(conn, 1, 1); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	var count int
	conn.QueryRow("SELECT COUNT(*) FROM channel_memberships WHERE user_id = 1 AND channel_id = 1").Scan(&count)
	if count != 1 {
		t.Fatalf("Expected one membership row, got %d", count)
	}

	// Calling again updates in place rather than inserting a second row
	if err := MarkRead(conn, 1, 1); err != nil {
		t.Fatalf("Second MarkRead failed: %v", err)
	}
	conn.QueryRow("SELECT COUNT(*) FROM channel_memberships WHERE user_id = 1 AND channel_id = 1").Scan(&count)
	if count != 1 {
		t.Errorf("Expected one membership row after repeat, got %d", count)
	}
}

func TestMarkReadAdvancesCursor(t *testing.T) {
	conn := setupTestDB(t)

	if err := MarkRead(conn, 1, 1); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	var first time.Time
	conn.QueryRow("SELECT last_read_at FROM channel_memberships WHERE user_id = 1 AND channel_id = 1").Scan(&first)

	time.Sleep(5 * time.Millisecond)

	if err := MarkRead(conn, 1, 1); err != nil {
		t.Fatalf("Second MarkRead failed: %v", err)
	}
	var second time.Time
	conn.QueryRow("SELECT last_read_at FROM channel_memberships WHERE user_id = 1 AND channel_id = 1").Scan(&second)

	if !second.After(first) {
		t.Errorf("Cursor did not advance: %v -> %v", first, second)
	}
}

func TestUnreadCountAfterMarkRead(t *testing.T) {
	conn := setupTestDB(t)

	// An older message from another user
	conn.Exec(
		"INSERT INTO messages (channel_id, user_id, content, created_at) VALUES (1, 2, 'vieja', ?)",
		time.Now().UTC().Add(-time.Minute),
	)

	if err := MarkRead(conn, 1, 1); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	count, err := UnreadCount(conn, 1, 1)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("Unread count after MarkRead = %d, want 0", count)
	}

	// A newer message from another user becomes unread
	conn.Exec(
		"INSERT INTO messages (channel_id, user_id, content, created_at) VALUES (1, 2, 'nueva', ?)",
		time.Now().UTC().Add(time.Minute),
	)

	count, err = UnreadCount(conn, 1, 1)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Unread count with one new message = %d, want 1", count)
	}
}

func TestUnreadCountExcludesOwnMessages(t *testing.T) {
	conn := setupTestDB(t)

	MarkRead(conn, 1, 1)

	conn.Exec(
		"INSERT INTO messages (channel_id, user_id, content, created_at) VALUES (1, 1, 'propia', ?)",
		time.Now().UTC().Add(time.Minute),
	)

	count, err := UnreadCount(conn, 1, 1)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Own message counted as unread: %d", count)
	}
}

func TestUnreadCountExcludesDeletedMessages(t *testing.T) {
	conn := setupTestDB(t)

	MarkRead(conn, 1, 1)

	conn.Exec(
		"INSERT INTO messages (channel_id, user_id, content, created_at, is_deleted) VALUES (1, 2, 'x', ?, 1)",
		time.Now().UTC().Add(time.Minute),
	)

	count, err := UnreadCount(conn, 1, 1)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Deleted message counted as unread: %d", count)
	}
}

func TestUnreadCountIncludesOrphanedAuthors(t *testing.T) {
	conn := setupTestDB(t)

	MarkRead(conn, 1, 1)

	// Author deleted, user_id NULL: still unread for everyone else
	conn.Exec(
		"INSERT INTO messages (channel_id, user_id, content, created_at) VALUES (1, NULL, 'huérfana', ?)",
		time.Now().UTC().Add(time.Minute),
	)

	count, err := UnreadCount(conn, 1, 1)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Orphaned-author message not counted: %d", count)
	}
}

func TestEnsureMembershipKeepsCursor(t *testing.T) {
	conn := setupTestDB(t)

	MarkRead(conn, 1, 1)
	var before time.Time
	conn.QueryRow("SELECT last_read_at FROM channel_memberships WHERE user_id = 1 AND channel_id = 1").Scan(&before)

	time.Sleep(5 * time.Millisecond)

	if err := EnsureMembership(conn, 1, 1); err != nil {
		t.Fatalf("EnsureMembership failed: %v", err)
	}

	var after time.Time
	conn.QueryRow("SELECT last_read_at FROM channel_memberships WHERE user_id = 1 AND channel_id = 1").Scan(&after)

	if !after.Equal(before) {
		t.Errorf("EnsureMembership moved the cursor: %v -> %v", before, after)
	}
}

func TestUnreadSnapshotCreatesMemberships(t *testing.T) {
	conn := setupTestDB(t)

	conn.Exec(
		"INSERT INTO messages (channel_id, user_id, content, created_at) VALUES (1, 2, 'hola', ?)",
		time.Now().UTC().Add(time.Minute),
	)

	snapshot, err := UnreadSnapshot(conn, 1)
	if err != nil {
		t.Fatalf("UnreadSnapshot failed: %v", err)
	}

	// Only the active channel appears
	if len(snapshot) != 1 {
		t.Fatalf("Snapshot has %d channels, want 1 (inactive excluded)", len(snapshot))
	}
	if snapshot[0].Name != "general" {
		t.Errorf("Snapshot channel = %q, want general", snapshot[0].Name)
	}

	var count int
	conn.QueryRow("SELECT COUNT(*) FROM channel_memberships WHERE user_id = 1").Scan(&count)
	if count != 1 {
		t.Errorf("Memberships created = %d, want 1", count)
	}
}

func TestListActiveExcludesInactive(t *testing.T) {
	conn := setupTestDB(t)

	channels, err := ListActive(conn)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}

	for _, ch := range channels {
		if !ch.IsActive {
			t.Errorf("Inactive channel %q listed", ch.Name)
		}
	}
	if len(channels) != 1 {
		t.Errorf("ListActive returned %d channels, want 1", len(channels))
	}
}
