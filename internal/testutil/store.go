// Package testutil provides in-memory fakes for the store interfaces.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/lin/qichat/internal/domain"
)

// MemStore is an in-memory ConversationStore with call counters and
// injectable failures.
type MemStore struct {
	mu    sync.Mutex
	convs map[string]*domain.Conversation

	SaveCalls   int
	DeleteCalls int

	FailSave   bool
	FailDelete bool
	FailLoad   bool
	FailList   bool
}

var _ domain.ConversationStore = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{convs: make(map[string]*domain.Conversation)}
}

func (s *MemStore) Save(ctx context.Context, conv *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.SaveCalls++
	if s.FailSave {
		return errors.New("injected save failure")
	}

	clone := *conv
	s.convs[conv.ID] = &clone
	return nil
}

func (s *MemStore) Load(ctx context.Context, id string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailLoad {
		return nil, errors.New("injected load failure")
	}

	conv, ok := s.convs[id]
	if !ok {
		return nil, &domain.NotFoundError{ID: id}
	}
	clone := *conv
	return &clone, nil
}

func (s *MemStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.DeleteCalls++
	if s.FailDelete {
		return errors.New("injected delete failure")
	}

	delete(s.convs, id)
	return nil
}

func (s *MemStore) List(ctx context.Context) ([]*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailList {
		return nil, errors.New("injected list failure")
	}

	out := make([]*domain.Conversation, 0, len(s.convs))
	for _, c := range s.convs {
		clone := *c
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Has reports whether a record exists for the id.
func (s *MemStore) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.convs[id]
	return ok
}

// Get returns the stored record for the id, or nil.
func (s *MemStore) Get(id string) *domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return nil
	}
	clone := *conv
	return &clone
}

// MemSettings is an in-memory SettingsStore.
type MemSettings struct {
	mu         sync.Mutex
	lastActive string

	FailRead bool
}

var _ domain.SettingsStore = (*MemSettings)(nil)

// NewMemSettings creates an empty settings fake.
func NewMemSettings() *MemSettings {
	return &MemSettings{}
}

func (s *MemSettings) LastActiveChat(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailRead {
		return "", errors.New("injected settings failure")
	}
	return s.lastActive, nil
}

func (s *MemSettings) SetLastActiveChat(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = id
	return nil
}

func (s *MemSettings) ClearLastActiveChat(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = ""
	return nil
}
