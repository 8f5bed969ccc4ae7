package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/oklog/ulid/v2"
)

// Folders group conversations without touching their record files:
// membership lives in an index file next to the records. The starred folder
// is built in and backs the star toggle.

const (
	folderIndexFile = "folders.json"

	// StarredFolder is the id of the built-in folder holding starred chats.
	StarredFolder = "starred"
)

// ErrFolderNotFound indicates an operation against an unknown folder id.
var ErrFolderNotFound = errors.New("folder not found")

// Folder is one named group of conversation ids.
type Folder struct {
	ID    string   `json:"-"`
	Name  string   `json:"name"`
	Chats []string `json:"chats"`
}

// Folders returns every folder: the starred one first, the rest sorted by
// name.
func (s *Store) Folders(ctx context.Context) ([]Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.loadFolderIndex()

	out := []Folder{*idx[StarredFolder]}
	rest := make([]Folder, 0, len(idx)-1)
	for id, f := range idx {
		if id != StarredFolder {
			rest = append(rest, *f)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].Name < rest[j].Name })
	return append(out, rest...), nil
}

// CreateFolder adds an empty folder and returns its id.
func (s *Store) CreateFolder(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.loadFolderIndex()
	id := ulid.Make().String()
	idx[id] = &Folder{ID: id, Name: name}

	if err := s.saveFolderIndex(idx); err != nil {
		return "", err
	}
	return id, nil
}

// RenameFolder sets a new display name.
func (s *Store) RenameFolder(ctx context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.loadFolderIndex()
	f, ok := idx[id]
	if !ok {
		return fmt.Errorf("rename folder %s: %w", id, ErrFolderNotFound)
	}
	f.Name = name
	return s.saveFolderIndex(idx)
}

// DeleteFolder removes a folder. The conversations filed in it keep their
// records; only the grouping disappears. The starred folder cannot be
// deleted.
func (s *Store) DeleteFolder(ctx context.Context, id string) error {
	if id == StarredFolder {
		return errors.New("the starred folder is built in")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.loadFolderIndex()
	if _, ok := idx[id]; !ok {
		return fmt.Errorf("delete folder %s: %w", id, ErrFolderNotFound)
	}
	delete(idx, id)
	return s.saveFolderIndex(idx)
}

// AddToFolder files a conversation into a folder. Filing it twice is a no-op.
func (s *Store) AddToFolder(ctx context.Context, folderID, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.loadFolderIndex()
	f, ok := idx[folderID]
	if !ok {
		return fmt.Errorf("add to folder %s: %w", folderID, ErrFolderNotFound)
	}

	for _, c := range f.Chats {
		if c == chatID {
			return nil
		}
	}
	f.Chats = append(f.Chats, chatID)
	return s.saveFolderIndex(idx)
}

// RemoveFromFolder takes a conversation out of a folder. Removing an id that
// is not filed there is a no-op.
func (s *Store) RemoveFromFolder(ctx context.Context, folderID, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.loadFolderIndex()
	f, ok := idx[folderID]
	if !ok {
		return fmt.Errorf("remove from folder %s: %w", folderID, ErrFolderNotFound)
	}

	for i, c := range f.Chats {
		if c == chatID {
			f.Chats = append(f.Chats[:i], f.Chats[i+1:]...)
			return s.saveFolderIndex(idx)
		}
	}
	return nil
}

// ChatFolders returns the ids of every folder the conversation is filed in,
// sorted.
func (s *Store) ChatFolders(ctx context.Context, chatID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.loadFolderIndex()
	var out []string
	for id, f := range idx {
		for _, c := range f.Chats {
			if c == chatID {
				out = append(out, id)
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// SetStarred toggles membership in the built-in starred folder.
func (s *Store) SetStarred(ctx context.Context, chatID string, starred bool) error {
	if starred {
		return s.AddToFolder(ctx, StarredFolder, chatID)
	}
	return s.RemoveFromFolder(ctx, StarredFolder, chatID)
}

// Starred returns the set of starred conversation ids.
func (s *Store) Starred(ctx context.Context) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.loadFolderIndex()
	out := make(map[string]bool, len(idx[StarredFolder].Chats))
	for _, c := range idx[StarredFolder].Chats {
		out[c] = true
	}
	return out, nil
}

// loadFolderIndex reads the index, falling back to a fresh one holding only
// the starred folder when the file is missing or unreadable. Callers hold
// s.mu.
func (s *Store) loadFolderIndex() map[string]*Folder {
	path := filepath.Join(s.dir, folderIndexFile)
	idx := map[string]*Folder{}

	data, err := os.ReadFile(path)
	if err == nil {
		if jerr := json.Unmarshal(data, &idx); jerr != nil {
			s.log.Warn("folder_index_unreadable", map[string]any{"path": path}, jerr)
			idx = map[string]*Folder{}
		}
	} else if !os.IsNotExist(err) {
		s.log.Warn("folder_index_unreadable", map[string]any{"path": path}, err)
	}

	if _, ok := idx[StarredFolder]; !ok {
		idx[StarredFolder] = &Folder{Name: "星标"}
	}
	for id, f := range idx {
		f.ID = id
	}
	return idx
}

// saveFolderIndex writes the index atomically, same dance as Save. Callers
// hold s.mu.
func (s *Store) saveFolderIndex(idx map[string]*Folder) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal folder index: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "folders.tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write folder index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, folderIndexFile)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
