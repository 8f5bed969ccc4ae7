// Package startup decides what the user sees when the application launches
// and how external payloads turn into conversations, both at launch and
// while the app is already running.
//
// Precedence at launch: an incoming payload beats a recorded last-active
// chat, which beats the welcome page. Everything here degrades softly: a
// missing chat, an unreadable settings row or a bad attachment path falls
// back to the next option instead of failing the launch.
package startup

import (
	"context"
	"path/filepath"

	"github.com/lin/qichat/internal/domain"
	"github.com/lin/qichat/internal/ingest"
	"github.com/lin/qichat/internal/logging"
	"github.com/lin/qichat/internal/persist"
	"github.com/lin/qichat/internal/state"
)

// urlTitleLimit caps how much of a URL ends up in a derived title.
const urlTitleLimit = 50

// Manager owns the launch sequence and runtime payload handling. It wires
// the pure state machine to the stores and the persistency policy.
type Manager struct {
	states   *state.Manager
	persist  *persist.Manager
	store    domain.ConversationStore
	settings domain.SettingsStore
	noResume bool
	log      *logging.Logger
}

// NewManager assembles a startup manager. With noResume set, the recorded
// last-active chat is ignored and a payload-less launch lands on the
// welcome page.
func NewManager(states *state.Manager, pm *persist.Manager, store domain.ConversationStore, settings domain.SettingsStore, noResume bool) *Manager {
	return &Manager{
		states:   states,
		persist:  pm,
		store:    store,
		settings: settings,
		noResume: noResume,
		log:      logging.New("startup"),
	}
}

// DetermineStartupState computes the initial view state from the process
// launch arguments and the recorded resume target. It only decides; Apply
// commits the decision.
func (m *Manager) DetermineStartupState(ctx context.Context, args []string) domain.AppState {
	payload := state.ParseCommandArgs(args)

	lastActive := ""
	if payload == nil && !m.noResume {
		lastActive = m.resolveLastActiveChatID(ctx)
	}

	st := m.states.StartupState(payload, lastActive)
	m.log.Info("startup_state_determined", map[string]any{
		"state":       string(st.Type),
		"has_payload": payload != nil,
		"resume_chat": lastActive,
	})
	return st
}

// Apply commits a state transition: the state machine advances and, when
// the new state names a conversation, that id is recorded for
// resume-on-next-launch. Settings failures are logged and absorbed.
func (m *Manager) Apply(ctx context.Context, st domain.AppState) {
	m.states.Update(st)

	if st.CurrentChatID == "" {
		return
	}
	if err := m.settings.SetLastActiveChat(ctx, st.CurrentChatID); err != nil {
		m.log.Warn("last_active_chat_record_failed", map[string]any{"id": st.CurrentChatID}, err)
	}
}

// CreateChatWithPayload opens a new conversation and prefills it from the
// payload. Prefill content latches the chat persistent as it lands, so the
// save runs through the mutation autosave path and the chat is on disk
// before this returns. A nil payload yields a plain empty ephemeral chat.
func (m *Manager) CreateChatWithPayload(ctx context.Context, payload *domain.Payload) *domain.Conversation {
	chat := domain.NewConversation()
	if payload == nil {
		return chat
	}

	m.prefill(chat, *payload)
	if chat.HasContent() {
		m.persist.AutosaveOnMutation(ctx, chat)
	}

	m.log.Info("chat_created_from_payload", map[string]any{
		"id":      chat.ID,
		"type":    string(payload.Type),
		"content": chat.HasContent(),
	})
	return chat
}

// LoadExistingChat fetches a conversation for resume. Any failure — not
// found, corrupt record, store error — returns nil so the caller falls back
// to a fresh state instead of blocking the launch.
func (m *Manager) LoadExistingChat(ctx context.Context, id string) *domain.Conversation {
	if id == "" {
		return nil
	}

	chat, err := m.store.Load(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			m.log.Warn("resume_chat_missing", map[string]any{"id": id}, nil)
		} else {
			m.log.Error("resume_chat_load_failed", map[string]any{"id": id}, err)
		}
		return nil
	}
	return chat
}

// HandleExternalPayloadDuringRuntime routes a payload that arrives while
// the app is already running (file drop, /open command, second instance).
//
// An empty throwaway chat on screen absorbs the payload in place. Anything
// else spawns a new chat, after the leave policy has run on the current one.
// Returns the chat now holding the payload and whether it was newly created.
func (m *Manager) HandleExternalPayloadDuringRuntime(ctx context.Context, currentChat *domain.Conversation, payload domain.Payload) (*domain.Conversation, bool) {
	if !m.states.ShouldCreateNewChatForPayload(m.states.Current(), currentChat, payload) {
		m.prefill(currentChat, payload)
		if currentChat.HasContent() {
			m.persist.AutosaveOnMutation(ctx, currentChat)
		}
		m.Apply(ctx, domain.ChatViewState(currentChat.ID))
		m.log.Info("payload_reused_current_chat", map[string]any{"id": currentChat.ID, "type": string(payload.Type)})
		return currentChat, false
	}

	m.persist.HandleChatSwitch(ctx, currentChat, "")

	chat := m.CreateChatWithPayload(ctx, &payload)
	m.Apply(ctx, domain.ChatViewState(chat.ID))
	return chat, true
}

// prefill seeds a conversation from one payload: attachments plus an
// analyze-this prompt for files, an analyze prompt for URLs, the raw text
// verbatim otherwise. The derived title is set only when none exists, and
// before the message lands so the first-message auto-title does not race
// it. Unknown payload types are logged and leave the chat untouched.
func (m *Manager) prefill(chat *domain.Conversation, payload domain.Payload) {
	switch payload.Type {
	case domain.PayloadFile:
		m.prefillFile(chat, payload)

	case domain.PayloadURL:
		if chat.Title == "" {
			chat.Title = "分析网页: " + headRunes(payload.Source, urlTitleLimit) + "..."
		}
		chat.AddMessage(domain.NewUserMessage("请帮我分析这个网页: " + payload.Source))

	case domain.PayloadText:
		chat.AddMessage(domain.NewUserMessage(payload.Source))

	default:
		m.log.Warn("unknown_payload_type", map[string]any{"type": string(payload.Type)}, nil)
	}
}

func (m *Manager) prefillFile(chat *domain.Conversation, payload domain.Payload) {
	files := payload.AllFiles()
	if len(files) == 0 {
		files = []string{payload.Source}
	}

	for _, path := range files {
		att, err := ingest.AttachmentFromFile(path)
		if err != nil {
			m.log.Warn("payload_attach_failed", map[string]any{"path": path}, err)
			continue
		}
		chat.AddAttachment(att)
	}

	name := filepath.Base(payload.Source)
	if chat.Title == "" {
		chat.Title = "分析文件: " + name
	}
	chat.AddMessage(domain.NewUserMessage("请帮我分析这个文件: " + name))
}

// resolveLastActiveChatID finds the conversation to resume: the recorded
// settings row first, and when that is absent or stale, the most recently
// updated non-ephemeral conversation with content. Returns "" when there is
// nothing to resume.
func (m *Manager) resolveLastActiveChatID(ctx context.Context) string {
	id, err := m.settings.LastActiveChat(ctx)
	if err != nil {
		m.log.Warn("last_active_chat_read_failed", nil, err)
	} else if id != "" {
		if _, err := m.store.Load(ctx, id); err == nil {
			return id
		}
		m.log.Warn("last_active_chat_stale", map[string]any{"id": id}, nil)
	}

	chats, err := m.store.List(ctx)
	if err != nil {
		m.log.Error("history_list_failed", nil, err)
		return ""
	}
	for _, chat := range chats {
		if !chat.Ephemeral && chat.HasContent() {
			return chat.ID
		}
	}
	return ""
}

func headRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
