// Package history persists conversations as one JSON file per conversation
// under the history directory. Files may be nested in subdirectories, so
// listing scans recursively. Folder organization and starring live in a
// separate index file (folders.go) and never move the records.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/lin/qichat/internal/domain"
	"github.com/lin/qichat/internal/logging"
)

// schemaVersion is written into every record for forward migration.
const schemaVersion = 1

// Store is a file-backed ConversationStore. The mutex guards the folder
// index; record files are written atomically and need no lock.
type Store struct {
	dir string
	mu  sync.Mutex
	log *logging.Logger
}

var _ domain.ConversationStore = (*Store)(nil)

// NewStore creates the history directory if needed and returns a store.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return &Store{dir: dir, log: logging.New("history")}, nil
}

// record is the persisted shape: the conversation plus a schema marker.
type record struct {
	SchemaVersion int `json:"schema_version"`
	*domain.Conversation
}

// Save writes the conversation atomically: temp file in the same directory,
// then rename.
func (s *Store) Save(ctx context.Context, conv *domain.Conversation) error {
	data, err := json.MarshalIndent(record{SchemaVersion: schemaVersion, Conversation: conv}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal conversation %s: %w", conv.ID, err)
	}

	// A re-save must land on the record's current location, or a
	// conversation filed under a folder would fork into a second flat copy.
	path, err := s.find(conv.ID)
	if domain.IsNotFound(err) {
		path = s.pathFor(conv.ID)
	} else if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), conv.ID+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write conversation %s: %w", conv.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// Load reads one conversation. Returns a NotFoundError when no file exists
// for the id.
func (s *Store) Load(ctx context.Context, id string) (*domain.Conversation, error) {
	path, err := s.find(id)
	if err != nil {
		return nil, err
	}
	return s.loadFile(path)
}

// Delete removes the record for the id. Deleting an id that was never saved
// is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	path, err := s.find(id)
	if domain.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	return nil
}

// List returns all conversations ordered by UpdatedAt descending. Corrupt
// files are skipped with a warning rather than failing the whole listing.
func (s *Store) List(ctx context.Context) ([]*domain.Conversation, error) {
	paths, err := s.scan()
	if err != nil {
		return nil, err
	}

	convs := make([]*domain.Conversation, 0, len(paths))
	for _, path := range paths {
		conv, err := s.loadFile(path)
		if err != nil {
			s.log.Warn("skip_unreadable_record", map[string]any{"path": path}, err)
			continue
		}
		convs = append(convs, conv)
	}

	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	return convs, nil
}

// Search returns conversations whose title or message content contains the
// query, case-insensitive, most recent first.
func (s *Store) Search(ctx context.Context, query string) ([]*domain.Conversation, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	var out []*domain.Conversation
	for _, conv := range all {
		if matches(conv, needle) {
			out = append(out, conv)
		}
	}
	return out, nil
}

// Rename sets a new title and saves.
func (s *Store) Rename(ctx context.Context, id, title string) error {
	conv, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	conv.Title = title
	return s.Save(ctx, conv)
}

func matches(conv *domain.Conversation, needle string) bool {
	if strings.Contains(strings.ToLower(conv.Title), needle) {
		return true
	}
	for _, msg := range conv.Messages {
		if strings.Contains(strings.ToLower(msg.Content), needle) {
			return true
		}
	}
	return false
}

func (s *Store) pathFor(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// find locates the file for an id, checking the flat path first and falling
// back to the recursive scan for records filed under folders.
func (s *Store) find(id string) (string, error) {
	flat := s.pathFor(id)
	if _, err := os.Stat(flat); err == nil {
		return flat, nil
	}

	paths, err := s.scan()
	if err != nil {
		return "", err
	}
	want := id + ".json"
	for _, p := range paths {
		if filepath.Base(p) == want {
			return p, nil
		}
	}
	return "", &domain.NotFoundError{ID: id}
}

func (s *Store) scan() ([]string, error) {
	rel, err := doublestar.Glob(os.DirFS(s.dir), "**/*.json")
	if err != nil {
		return nil, fmt.Errorf("scan history dir: %w", err)
	}

	paths := make([]string, 0, len(rel))
	for _, r := range rel {
		if filepath.Base(r) == folderIndexFile {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, r))
	}
	return paths, nil
}

func (s *Store) loadFile(path string) (*domain.Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &domain.NotFoundError{ID: strings.TrimSuffix(filepath.Base(path), ".json")}
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var rec record
	rec.Conversation = &domain.Conversation{}
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if rec.Conversation.ID == "" {
		return nil, fmt.Errorf("parse %s: record has no id", path)
	}
	return rec.Conversation, nil
}
