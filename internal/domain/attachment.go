package domain

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// AttachmentKind classifies an attached file by its content category.
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentDocument AttachmentKind = "document"
	AttachmentVideo    AttachmentKind = "video"
	AttachmentAudio    AttachmentKind = "audio"
	AttachmentCode     AttachmentKind = "code"
	AttachmentOther    AttachmentKind = "other"
)

// Attachment references a file the user attached to a conversation.
// The file itself stays on disk; only metadata is carried here.
type Attachment struct {
	ID           string         `json:"id"`
	FilePath     string         `json:"file_path"`
	OriginalName string         `json:"original_name"`
	FileSize     int64          `json:"file_size"`
	MimeType     string         `json:"mime_type"`
	Kind         AttachmentKind `json:"attachment_type"`
	UploadedAt   time.Time      `json:"uploaded_at"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Exists reports whether the referenced file is still on disk.
func (a Attachment) Exists() bool {
	_, err := os.Stat(a.FilePath)
	return err == nil
}

// Ext returns the lowercase file extension of the original name.
func (a Attachment) Ext() string {
	return strings.ToLower(filepath.Ext(a.OriginalName))
}

// HumanSize formats the file size for display.
func (a Attachment) HumanSize() string {
	size := float64(a.FileSize)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024.0 {
			return fmt.Sprintf("%.1f%s", size, unit)
		}
		size /= 1024.0
	}
	return fmt.Sprintf("%.1fTB", size)
}
