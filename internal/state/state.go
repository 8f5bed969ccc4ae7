package state

import (
	"github.com/lin/qichat/internal/domain"
)

// Manager tracks the current top-level view state and the last active
// conversation id for one application session.
//
// The decision functions are pure: they read their arguments, return a
// result, and perform no I/O. The only mutation is Update, which the
// session owner calls after acting on a decision.
type Manager struct {
	current          domain.AppState
	lastActiveChatID string
}

// NewManager creates a manager in the transitional NoView state. The caller
// must compute and apply a real state before rendering anything.
func NewManager() *Manager {
	return &Manager{current: domain.AppState{Type: domain.StateNoView}}
}

// Current returns the state the application is presently in.
func (m *Manager) Current() domain.AppState {
	return m.current
}

// LastActiveChatID returns the most recently opened conversation id, or "".
func (m *Manager) LastActiveChatID() string {
	return m.lastActiveChatID
}

// StartupState decides what the user sees at launch.
//
// An incoming payload always wins: it yields a ChatView carrying the payload
// and no chat id — the orchestrator creates the conversation. With no
// payload, a recorded last-active id resumes that conversation. With
// neither, the welcome page.
func (m *Manager) StartupState(incoming *domain.Payload, lastActiveChatID string) domain.AppState {
	if incoming != nil {
		return domain.ChatViewWithPayload(*incoming)
	}
	if lastActiveChatID != "" {
		return domain.ChatViewState(lastActiveChatID)
	}
	return domain.WelcomeState()
}

// ShouldCreateNewChatForPayload decides whether an external payload arriving
// at runtime spawns a new conversation (true) or is absorbed by the current
// one (false).
//
// Reuse is allowed only when the user is looking at a chat that is still an
// empty throwaway: ChatView, non-nil current chat, empty-ephemeral. Any
// conversation with content must not be silently overwritten, and from the
// welcome page there is nothing to reuse.
func (m *Manager) ShouldCreateNewChatForPayload(current domain.AppState, currentChat *domain.Conversation, _ domain.Payload) bool {
	if current.Type == domain.StateChatView && currentChat != nil && currentChat.IsEmptyEphemeral() {
		return false
	}
	return true
}

// Update replaces the current state. When the new state names a
// conversation, that id becomes the last-active id, which the session owner
// persists for resume-on-next-launch.
func (m *Manager) Update(newState domain.AppState) {
	m.current = newState
	if newState.CurrentChatID != "" {
		m.lastActiveChatID = newState.CurrentChatID
	}
}
