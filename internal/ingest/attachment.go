// Package ingest turns external inputs (files, URLs) into attachment
// metadata for conversations. The file itself is never copied; only
// metadata is recorded.
package ingest

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lin/qichat/internal/domain"
)

var kindByExt = map[string]domain.AttachmentKind{
	".jpg": domain.AttachmentImage, ".jpeg": domain.AttachmentImage,
	".png": domain.AttachmentImage, ".gif": domain.AttachmentImage,
	".bmp": domain.AttachmentImage, ".webp": domain.AttachmentImage,

	".mp4": domain.AttachmentVideo, ".avi": domain.AttachmentVideo,
	".mov": domain.AttachmentVideo, ".mkv": domain.AttachmentVideo,
	".wmv": domain.AttachmentVideo,

	".mp3": domain.AttachmentAudio, ".wav": domain.AttachmentAudio,
	".flac": domain.AttachmentAudio, ".aac": domain.AttachmentAudio,
	".ogg": domain.AttachmentAudio,

	".py": domain.AttachmentCode, ".js": domain.AttachmentCode,
	".html": domain.AttachmentCode, ".css": domain.AttachmentCode,
	".cpp": domain.AttachmentCode, ".java": domain.AttachmentCode,
	".go": domain.AttachmentCode, ".rs": domain.AttachmentCode,

	".pdf": domain.AttachmentDocument, ".doc": domain.AttachmentDocument,
	".docx": domain.AttachmentDocument, ".txt": domain.AttachmentDocument,
	".md": domain.AttachmentDocument, ".rtf": domain.AttachmentDocument,
}

// AttachmentFromFile builds an attachment record for an existing file.
func AttachmentFromFile(path string) (domain.Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("stat %s: %w", path, err)
	}

	name := filepath.Base(path)
	return domain.Attachment{
		ID:           "attach_" + uuid.NewString(),
		FilePath:     path,
		OriginalName: name,
		FileSize:     info.Size(),
		MimeType:     GuessMimeType(path),
		Kind:         GuessKind(path),
		UploadedAt:   time.Now(),
	}, nil
}

// GuessMimeType resolves the mime type from the file extension, falling
// back to application/octet-stream.
func GuessMimeType(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		// TypeByExtension may append parameters ("text/plain; charset=utf-8").
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = strings.TrimSpace(t[:i])
		}
		return t
	}
	return "application/octet-stream"
}

// GuessKind classifies a file by extension.
func GuessKind(path string) domain.AttachmentKind {
	ext := strings.ToLower(filepath.Ext(path))
	if kind, ok := kindByExt[ext]; ok {
		return kind
	}
	return domain.AttachmentOther
}
