package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lin/qichat/internal/domain"
)

func tempFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))
	return path
}

func TestParseCommandArgsExistingFile(t *testing.T) {
	path := tempFile(t, "notes.txt")

	p := ParseCommandArgs([]string{"qichat", path})

	require.NotNil(t, p)
	assert.Equal(t, domain.PayloadFile, p.Type)
	assert.Equal(t, path, p.Source)
}

func TestParseCommandArgsURL(t *testing.T) {
	tests := []string{
		"http://example.com/page",
		"https://example.com/page",
	}
	for _, url := range tests {
		p := ParseCommandArgs([]string{"qichat", url})
		require.NotNil(t, p, url)
		assert.Equal(t, domain.PayloadURL, p.Type)
		assert.Equal(t, url, p.Source)
	}
}

func TestParseCommandArgsText(t *testing.T) {
	p := ParseCommandArgs([]string{"qichat", "hello world"})

	require.NotNil(t, p)
	assert.Equal(t, domain.PayloadText, p.Type)
	assert.Equal(t, "hello world", p.Source)
}

func TestParseCommandArgsNoArgs(t *testing.T) {
	assert.Nil(t, ParseCommandArgs([]string{"qichat"}))
	assert.Nil(t, ParseCommandArgs(nil))
}

func TestParseCommandArgsAllBlank(t *testing.T) {
	assert.Nil(t, ParseCommandArgs([]string{"qichat", "", "   "}))
}

func TestParseCommandArgsFirstQualifyingWins(t *testing.T) {
	// Only the first qualifying argument is used; the rest are ignored.
	p := ParseCommandArgs([]string{"qichat", "first text", "https://example.com"})

	require.NotNil(t, p)
	assert.Equal(t, domain.PayloadText, p.Type)
	assert.Equal(t, "first text", p.Source)
}

func TestParseCommandArgsSkipsBlankBeforeQualifying(t *testing.T) {
	p := ParseCommandArgs([]string{"qichat", "  ", "https://example.com"})

	require.NotNil(t, p)
	assert.Equal(t, domain.PayloadURL, p.Type)
}

func TestParseFileDropKeepsAllValidFiles(t *testing.T) {
	a := tempFile(t, "a.txt")
	b := tempFile(t, "b.txt")
	missing := filepath.Join(t.TempDir(), "gone.txt")

	p := ParseFileDrop([]string{missing, a, b})

	require.NotNil(t, p)
	assert.Equal(t, domain.PayloadFile, p.Type)
	assert.Equal(t, a, p.Source)
	assert.Equal(t, []string{a, b}, p.AllFiles())
}

func TestParseFileDropEmpty(t *testing.T) {
	assert.Nil(t, ParseFileDrop(nil))
	assert.Nil(t, ParseFileDrop([]string{}))
}

func TestParseFileDropNoneExist(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone.txt")
	assert.Nil(t, ParseFileDrop([]string{missing}))
}

func TestNewTextPayload(t *testing.T) {
	p := NewTextPayload("raw input")

	assert.Equal(t, domain.PayloadText, p.Type)
	assert.Equal(t, "raw input", p.Source)
	assert.NotNil(t, p.Meta)
}
