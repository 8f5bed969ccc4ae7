package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lin/qichat/internal/domain"
)

func TestAttachmentFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 stub"), 0644))

	att, err := AttachmentFromFile(path)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(att.ID, "attach_"))
	assert.Equal(t, path, att.FilePath)
	assert.Equal(t, "report.pdf", att.OriginalName)
	assert.Equal(t, int64(13), att.FileSize)
	assert.Equal(t, "application/pdf", att.MimeType)
	assert.Equal(t, domain.AttachmentDocument, att.Kind)
	assert.False(t, att.UploadedAt.IsZero())
}

func TestAttachmentFromMissingFile(t *testing.T) {
	_, err := AttachmentFromFile(filepath.Join(t.TempDir(), "gone.txt"))
	assert.Error(t, err)
}

func TestGuessKind(t *testing.T) {
	tests := []struct {
		path string
		want domain.AttachmentKind
	}{
		{"photo.JPG", domain.AttachmentImage},
		{"clip.mp4", domain.AttachmentVideo},
		{"song.flac", domain.AttachmentAudio},
		{"main.go", domain.AttachmentCode},
		{"notes.md", domain.AttachmentDocument},
		{"data.bin", domain.AttachmentOther},
		{"noext", domain.AttachmentOther},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, GuessKind(tt.path))
		})
	}
}

func TestGuessMimeTypeFallback(t *testing.T) {
	assert.Equal(t, "application/octet-stream", GuessMimeType("weird.zzz"))
}

func TestGuessMimeTypeStripsParams(t *testing.T) {
	got := GuessMimeType("readme.txt")
	assert.Equal(t, "text/plain", got)
}
