package chat

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MaxFileSize caps message attachments at 20MB.
const MaxFileSize = 20 * 1024 * 1024

var allowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
	"pdf":  true,
	"docx": true,
	"xlsx": true,
	"doc":  true,
	"xls":  true,
}

var imageExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
}

// FilePayload is an inline attachment as received over the socket:
// the original filename plus base64-encoded bytes.
type FilePayload struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Attachment is a stored message file.
type Attachment struct {
	Path     string // relative to the storage root
	Name     string // original filename
	FileType string // "image" or "document"
}

// FileTypeFor classifies a filename as image or document by extension.
// Returns "" for extensions outside the allow-list.
func FileTypeFor(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if !allowedExtensions[ext] {
		return ""
	}
	if imageExtensions[ext] {
		return "image"
	}
	return "document"
}

// storeFile decodes and writes an attachment under
// <root>/<channelID>/<userID>_<timestamp>.<ext>, keyed so concurrent
// uploads by the same user in the same channel cannot collide.
func storeFile(root string, channelID, userID int, payload *FilePayload) (*Attachment, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(payload.Name), "."))
	if !allowedExtensions[ext] {
		return nil, ErrFileNotAllowed
	}

	data, err := base64.StdEncoding.DecodeString(payload.Content)
	if err != nil {
		return nil, ErrInvalidFile
	}

	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	dir := filepath.Join(root, fmt.Sprintf("%d", channelID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	filename := fmt.Sprintf("%d_%d.%s", userID, time.Now().UnixNano(), ext)
	if err := os.WriteFile(filepath.Join(dir, filename), data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &Attachment{
		Path:     filepath.Join(fmt.Sprintf("%d", channelID), filename),
		Name:     filepath.Base(payload.Name),
		FileType: FileTypeFor(payload.Name),
	}, nil
}
