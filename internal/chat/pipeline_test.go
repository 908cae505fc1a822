package chat

import (
	"database/sql"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/base43/calicanto/internal/db"
	"github.com/base43/calicanto/internal/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	conn := database.GetConn()
	conn.Exec("INSERT INTO users (id, username, password_hash) VALUES (1, 'ana', 'hash1')")
	conn.Exec("INSERT INTO users (id, username, password_hash) VALUES (2, 'bruno', 'hash2')")
	conn.Exec("INSERT INTO channels (id, name, is_active) VALUES (1, 'general', 1)")
	conn.Exec("INSERT INTO channels (id, name, is_active) VALUES (2, 'archivado', 0)")

	return conn
}

func TestSendEmptyMessageFails(t *testing.T) {
	conn := setupTestDB(t)
	p := NewPipeline(conn, t.TempDir())

	_, err := p.Send(1, SendRequest{ChannelID: 1, Content: "   "})
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("Expected ErrEmptyMessage, got %v", err)
	}

	var count int
	conn.QueryRow("SELECT COUNT(*) FROM messages").Scan(&count)
	if count != 0 {
		t.Errorf("Expected no message rows, got %d", count)
	}
}

func TestSendChannelNotFound(t *testing.T) {
	conn := setupTestDB(t)
	p := NewPipeline(conn, t.TempDir())

	if _, err := p.Send(1, SendRequest{ChannelID: 99, Content: "hola"}); !errors.Is(err, ErrChannelNotFound) {
		t.Fatalf("Expected ErrChannelNotFound, got %v", err)
	}
}

func TestSendInactiveChannelFails(t *testing.T) {
	conn := setupTestDB(t)
	p := NewPipeline(conn, t.TempDir())

	if _, err := p.Send(1, SendRequest{ChannelID: 2, Content: "hola"}); !errors.Is(err, ErrChannelNotFound) {
		t.Fatalf("Expected ErrChannelNotFound for inactive channel, got %v", err)
	}
}

func TestSendPersistsSanitizedContent(t *testing.T) {
	conn := setupTestDB(t)
	p := NewPipeline(conn, t.TempDir())

	msg, err := p.Send(1, SendRequest{ChannelID: 1, Content: "**hola** <script>x</script>"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if !strings.Contains(msg.Content, "<strong>hola</strong>") {
		t.Errorf("Expected sanitized markdown, got %q", msg.Content)
	}
	if strings.Contains(msg.Content, "script") {
		t.Errorf("Script survived sanitization: %q", msg.Content)
	}

	var stored string
	conn.QueryRow("SELECT content FROM messages WHERE id = ?", msg.ID).Scan(&stored)
	if stored != msg.Content {
		t.Errorf("Stored content %q differs from returned %q", stored, msg.Content)
	}
}

func TestSendMarksChannelRead(t *testing.T) {
	conn := setupTestDB(t)
	p := NewPipeline(conn, t.TempDir())

	msg, err := p.Send(1, SendRequest{ChannelID: 1, Content: "hola"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	var lastRead time.Time
	err = conn.QueryRow(
		"SELECT last_read_at FROM channel_memberships WHERE user_id = 1 AND channel_id = 1",
	).Scan(&lastRead)
	if err != nil {
		t.Fatalf("Membership row was not created: %v", err)
	}

	count, err := UnreadCount(conn, 1, 1)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Sender's unread count after sending = %d, want 0 (message id %d)", count, msg.ID)
	}
}

func TestSendFileTooLarge(t *testing.T) {
	conn := setupTestDB(t)
	p := NewPipeline(conn, t.TempDir())

	big := base64.StdEncoding.EncodeToString(make([]byte, MaxFileSize+1))
	_, err := p.Send(2, SendRequest{
		ChannelID: 1,
		File:      &FilePayload{Name: "informe.pdf", Content: big},
	})
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("Expected ErrFileTooLarge, got %v", err)
	}

	var count int
	conn.QueryRow("SELECT COUNT(*) FROM messages").Scan(&count)
	if count != 0 {
		t.Errorf("Expected no message rows after oversized upload, got %d", count)
	}
}

func TestSendFileExtensionNotAllowed(t *testing.T) {
	conn := setupTestDB(t)
	p := NewPipeline(conn, t.TempDir())

	payload := base64.StdEncoding.EncodeToString([]byte("#!/bin/sh"))
	_, err := p.Send(1, SendRequest{
		ChannelID: 1,
		File:      &FilePayload{Name: "script.sh", Content: payload},
	})
	if !errors.Is(err, ErrFileNotAllowed) {
		t.Fatalf("Expected ErrFileNotAllowed, got %v", err)
	}
}

func TestSendFileStoredAndClassified(t *testing.T) {
	conn := setupTestDB(t)
	root := t.TempDir()
	p := NewPipeline(conn, root)

	payload := base64.StdEncoding.EncodeToString([]byte("fake image bytes"))
	msg, err := p.Send(1, SendRequest{
		ChannelID: 1,
		File:      &FilePayload{Name: "foto.PNG", Content: payload},
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if msg.FileType != "image" {
		t.Errorf("FileType = %q, want image", msg.FileType)
	}
	if msg.FileName != "foto.PNG" {
		t.Errorf("FileName = %q, want original name", msg.FileName)
	}
	if msg.FilePath == nil {
		t.Fatal("FilePath is nil")
	}
	if !strings.HasPrefix(*msg.FilePath, "1/") {
		t.Errorf("FilePath %q not under channel directory", *msg.FilePath)
	}

	data, err := os.ReadFile(filepath.Join(root, *msg.FilePath))
	if err != nil {
		t.Fatalf("Stored file unreadable: %v", err)
	}
	if string(data) != "fake image bytes" {
		t.Errorf("Stored bytes mismatch: %q", data)
	}
}

func TestFileTypeFor(t *testing.T) {
	cases := map[string]string{
		"a.png":  "image",
		"b.JPG":  "image",
		"c.jpeg": "image",
		"d.gif":  "image",
		"e.pdf":  "document",
		"f.docx": "document",
		"g.xls":  "document",
		"h.exe":  "",
		"noext":  "",
	}
	for name, want := range cases {
		if got := FileTypeFor(name); got != want {
			t.Errorf("FileTypeFor(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestSoftDeleteByAuthor(t *testing.T) {
	conn := setupTestDB(t)
	p := NewPipeline(conn, t.TempDir())

	msg, err := p.Send(1, SendRequest{ChannelID: 1, Content: "borrame"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	deleted, err := p.SoftDelete(1, msg.ID)
	if err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	if !deleted.IsDeleted {
		t.Error("Message not marked deleted")
	}
	if deleted.Content != models.DeletedMessagePlaceholder {
		t.Errorf("Content = %q, want placeholder", deleted.Content)
	}

	// The row survives
	var count int
	conn.QueryRow("SELECT COUNT(*) FROM messages WHERE id = ?", msg.ID).Scan(&count)
	if count != 1 {
		t.Errorf("Message row was hard-deleted")
	}
}

func TestSoftDeleteIdempotent(t *testing.T) {
	conn := setupTestDB(t)
	p := NewPipeline(conn, t.TempDir())

	msg, _ := p.Send(1, SendRequest{ChannelID: 1, Content: "dos veces"})

	if _, err := p.SoftDelete(1, msg.ID); err != nil {
		t.Fatalf("First SoftDelete failed: %v", err)
	}
	again, err := p.SoftDelete(1, msg.ID)
	if err != nil {
		t.Fatalf("Second SoftDelete failed: %v", err)
	}

	if again.Content != models.DeletedMessagePlaceholder || !again.IsDeleted {
		t.Errorf("Second delete changed the end state: %+v", again)
	}
}

func TestSoftDeleteRejectsNonAuthor(t *testing.T) {
	conn := setupTestDB(t)
	p := NewPipeline(conn, t.TempDir())

	msg, _ := p.Send(1, SendRequest{ChannelID: 1, Content: "mío"})

	if _, err := p.SoftDelete(2, msg.ID); !errors.Is(err, ErrNotAuthor) {
		t.Fatalf("Expected ErrNotAuthor, got %v", err)
	}

	var isDeleted bool
	conn.QueryRow("SELECT is_deleted FROM messages WHERE id = ?", msg.ID).Scan(&isDeleted)
	if isDeleted {
		t.Error("Non-author delete mutated the message")
	}
}

func TestSoftDeleteClearsAttachment(t *testing.T) {
	conn := setupTestDB(t)
	root := t.TempDir()
	p := NewPipeline(conn, root)

	payload := base64.StdEncoding.EncodeToString([]byte("bytes"))
	msg, err := p.Send(1, SendRequest{
		ChannelID: 1,
		Content:   "con archivo",
		File:      &FilePayload{Name: "doc.pdf", Content: payload},
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	storedPath := filepath.Join(root, *msg.FilePath)

	deleted, err := p.SoftDelete(1, msg.ID)
	if err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	if deleted.FilePath != nil || deleted.FileName != "" || deleted.FileType != "" {
		t.Errorf("Attachment fields not cleared: %+v", deleted)
	}
	if _, err := os.Stat(storedPath); !os.IsNotExist(err) {
		t.Errorf("Stored file still present after delete")
	}
}

func TestEditMessage(t *testing.T) {
	conn := setupTestDB(t)
	p := NewPipeline(conn, t.TempDir())

	msg, _ := p.Send(1, SendRequest{ChannelID: 1, Content: "antes"})

	edited, err := p.Edit(1, msg.ID, "*después*")
	if err != nil {
		t.Fatalf("Edit failed: %v", err)
	}

	if !strings.Contains(edited.Content, "<em>después</em>") {
		t.Errorf("Edited content not re-sanitized: %q", edited.Content)
	}
	if edited.EditedAt == nil {
		t.Error("EditedAt not set")
	}

	if _, err := p.Edit(2, msg.ID, "ajeno"); !errors.Is(err, ErrNotAuthor) {
		t.Errorf("Expected ErrNotAuthor for non-author edit, got %v", err)
	}
}
