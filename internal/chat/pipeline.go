package chat

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/base43/calicanto/internal/models"
)

var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrEmptyMessage    = errors.New("channel and content or file required")
	ErrFileTooLarge    = errors.New("file too large")
	ErrFileNotAllowed  = errors.New("file type not allowed")
	ErrInvalidFile     = errors.New("invalid file data")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotAuthor       = errors.New("not the message author")
)

// IsValidationError reports whether err should be surfaced to the sender
// as a validation failure rather than a backend error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrChannelNotFound) ||
		errors.Is(err, ErrEmptyMessage) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrFileNotAllowed) ||
		errors.Is(err, ErrInvalidFile)
}

// Pipeline turns raw send requests into persisted, sanitized messages.
type Pipeline struct {
	db          *sql.DB
	storageRoot string
}

func NewPipeline(db *sql.DB, storageRoot string) *Pipeline {
	return &Pipeline{db: db, storageRoot: storageRoot}
}

// SendRequest is a raw message submission before validation.
type SendRequest struct {
	ChannelID int
	Content   string
	File      *FilePayload
}

// Send validates, sanitizes, persists and returns a new message. On
// success the sender's read cursor for the channel is advanced, since
// sending implicitly marks the channel read.
func (p *Pipeline) Send(userID int, req SendRequest) (*models.Message, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" && req.File == nil {
		return nil, ErrEmptyMessage
	}

	var exists bool
	err := p.db.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM channels WHERE id = ? AND is_active = 1)",
		req.ChannelID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check channel: %w", err)
	}
	if !exists {
		return nil, ErrChannelNotFound
	}

	if content != "" {
		content, err = RenderContent(content)
		if err != nil {
			return nil, err
		}
	}

	var attachment *Attachment
	if req.File != nil {
		attachment, err = storeFile(p.storageRoot, req.ChannelID, userID, req.File)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()

	msg := &models.Message{
		ChannelID: req.ChannelID,
		UserID:    &userID,
		Content:   content,
		CreatedAt: now,
	}

	var filePath sql.NullString
	if attachment != nil {
		filePath = sql.NullString{String: attachment.Path, Valid: true}
		msg.FilePath = &attachment.Path
		msg.FileType = attachment.FileType
		msg.FileName = attachment.Name
	}

	result, err := p.db.Exec(`
		INSERT INTO messages (channel_id, user_id, content, file_path, file_type, file_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, req.ChannelID, userID, content, filePath, msg.FileType, msg.FileName, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get message id: %w", err)
	}
	msg.ID = int(id)

	if err := MarkRead(p.db, userID, req.ChannelID); err != nil {
		// The message is already persisted; a stale cursor only costs
		// the sender a phantom unread count.
		return msg, nil
	}

	return msg, nil
}

// GetMessage fetches a single message by id.
func (p *Pipeline) GetMessage(messageID int) (*models.Message, error) {
	msg := &models.Message{}
	var filePath sql.NullString
	err := p.db.QueryRow(`
		SELECT id, channel_id, user_id, content, file_path, file_type, file_name, created_at, edited_at, is_deleted
		FROM messages WHERE id = ?
	`, messageID).Scan(
		&msg.ID, &msg.ChannelID, &msg.UserID, &msg.Content,
		&filePath, &msg.FileType, &msg.FileName,
		&msg.CreatedAt, &msg.EditedAt, &msg.IsDeleted,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to fetch message: %w", err)
	}
	if filePath.Valid {
		msg.FilePath = &filePath.String
	}
	return msg, nil
}

// SoftDelete marks a message deleted, replaces its content with the
// placeholder and clears the attachment. Only the author may delete;
// deleting twice leaves the same end state.
func (p *Pipeline) SoftDelete(userID, messageID int) (*models.Message, error) {
	msg, err := p.GetMessage(messageID)
	if err != nil {
		return nil, err
	}
	if msg.UserID == nil || *msg.UserID != userID {
		return nil, ErrNotAuthor
	}

	if _, err := p.db.Exec(`
		UPDATE messages
		SET is_deleted = 1, content = ?, file_path = NULL, file_type = '', file_name = ''
		WHERE id = ? AND user_id = ?
	`, models.DeletedMessagePlaceholder, messageID, userID); err != nil {
		return nil, fmt.Errorf("failed to delete message: %w", err)
	}

	if msg.FilePath != nil {
		os.Remove(filepath.Join(p.storageRoot, *msg.FilePath))
	}

	msg.IsDeleted = true
	msg.Content = models.DeletedMessagePlaceholder
	msg.FilePath = nil
	msg.FileType = ""
	msg.FileName = ""
	return msg, nil
}

// Edit replaces a message's content (re-sanitized) and stamps edited_at.
// Only the author may edit.
func (p *Pipeline) Edit(userID, messageID int, content string) (*models.Message, error) {
	msg, err := p.GetMessage(messageID)
	if err != nil {
		return nil, err
	}
	if msg.UserID == nil || *msg.UserID != userID {
		return nil, ErrNotAuthor
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	rendered, err := RenderContent(content)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := p.db.Exec(
		"UPDATE messages SET content = ?, edited_at = ? WHERE id = ? AND user_id = ?",
		rendered, now, messageID, userID,
	); err != nil {
		return nil, fmt.Errorf("failed to update message: %w", err)
	}

	msg.Content = rendered
	msg.EditedAt = &now
	return msg, nil
}
