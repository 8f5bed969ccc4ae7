// Package persist enforces the save/discard policy for conversations at
// every lifecycle boundary: content added, tab switched, tab closed, app
// exit.
//
// The policy in one line: an empty ephemeral conversation is silently
// discarded, anything else is saved. Store failures are logged and absorbed
// here — a failed autosave must never interrupt the user, and the content
// stays in memory for the next save attempt.
package persist

import (
	"context"

	"github.com/lin/qichat/internal/domain"
	"github.com/lin/qichat/internal/logging"
)

// Manager applies the persistency policy against an injected store. It holds
// no conversation state of its own.
type Manager struct {
	store domain.ConversationStore
	log   *logging.Logger
}

// NewManager creates a Manager backed by the given store.
func NewManager(store domain.ConversationStore) *Manager {
	return &Manager{
		store: store,
		log:   logging.New("persist"),
	}
}

// EnsurePersistencyIfContent flips the ephemeral latch and saves when the
// conversation is still ephemeral but has gained content. Returns whether
// the flip happened on this call; calling again without an intervening
// mutation is a no-op.
func (m *Manager) EnsurePersistencyIfContent(ctx context.Context, chat *domain.Conversation) bool {
	if !chat.MarkPersistent() {
		return false
	}

	m.save(ctx, chat)
	m.log.Info("chat_became_persistent", map[string]any{"id": chat.ID})
	return true
}

// AutosaveOnMutation runs on every content mutation (keystroke, attachment
// change, title edit). It applies the same ephemeral-flip check but always
// saves, whether or not this particular mutation caused the flip. Returns
// whether the ephemeral-to-persistent transition occurred on this call.
func (m *Manager) AutosaveOnMutation(ctx context.Context, chat *domain.Conversation) bool {
	flipped := chat.MarkPersistent()

	m.save(ctx, chat)

	if flipped {
		m.log.Info("chat_became_persistent_on_mutation", map[string]any{"id": chat.ID})
	}
	return flipped
}

// ShouldDiscardOnLeave reports whether navigating away from the chat should
// silently drop it instead of saving.
func (m *Manager) ShouldDiscardOnLeave(chat *domain.Conversation) bool {
	return chat.IsEmptyEphemeral()
}

// HandleChatSwitch runs the leave policy on the current chat before the user
// navigates to another one: discard if empty-ephemeral, save otherwise. A
// nil current chat (e.g. switching from the welcome page) is a no-op.
func (m *Manager) HandleChatSwitch(ctx context.Context, currentChat *domain.Conversation, targetChatID string) {
	if currentChat == nil {
		return
	}

	if m.ShouldDiscardOnLeave(currentChat) {
		m.discard(ctx, currentChat)
		m.log.Info("chat_discarded_on_switch", map[string]any{"id": currentChat.ID, "target": targetChatID})
	} else {
		m.save(ctx, currentChat)
		m.log.Info("chat_saved_on_switch", map[string]any{"id": currentChat.ID, "target": targetChatID})
	}
}

// HandleChatClose applies the same policy to an explicit close action.
func (m *Manager) HandleChatClose(ctx context.Context, chat *domain.Conversation) {
	if chat == nil {
		return
	}

	if m.ShouldDiscardOnLeave(chat) {
		m.discard(ctx, chat)
		m.log.Info("chat_discarded_on_close", map[string]any{"id": chat.ID})
	} else {
		m.save(ctx, chat)
		m.log.Info("chat_saved_on_close", map[string]any{"id": chat.ID})
	}
}

// HandleAppExit applies the per-chat discard-or-save policy to every open
// conversation. Runs synchronously; callers must wait for it before letting
// the process exit.
func (m *Manager) HandleAppExit(ctx context.Context, activeChats []*domain.Conversation) {
	for _, chat := range activeChats {
		if chat == nil {
			continue
		}

		if m.ShouldDiscardOnLeave(chat) {
			m.discard(ctx, chat)
			m.log.Info("chat_discarded_on_exit", map[string]any{"id": chat.ID})
		} else {
			m.save(ctx, chat)
			m.log.Info("chat_saved_on_exit", map[string]any{"id": chat.ID})
		}
	}
}

func (m *Manager) save(ctx context.Context, chat *domain.Conversation) {
	if err := m.store.Save(ctx, chat); err != nil {
		m.log.Error("chat_save_failed", map[string]any{"id": chat.ID}, err)
	}
}

// discard removes any persisted record for the chat. Deleting an id that
// was never saved is a no-op, not a failure.
func (m *Manager) discard(ctx context.Context, chat *domain.Conversation) {
	if err := m.store.Delete(ctx, chat.ID); err != nil && !domain.IsNotFound(err) {
		m.log.Error("chat_discard_failed", map[string]any{"id": chat.ID}, err)
	}
}
