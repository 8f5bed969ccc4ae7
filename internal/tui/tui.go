// Package tui is the interactive chat shell, built on Bubble Tea. It owns
// the running conversation and drives the lifecycle managers: startup state
// on launch, autosave on every mutation, discard-or-save on switch, close
// and exit.
package tui

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lin/qichat/internal/domain"
	"github.com/lin/qichat/internal/logging"
	"github.com/lin/qichat/internal/persist"
	"github.com/lin/qichat/internal/startup"
	"github.com/lin/qichat/internal/state"
	"github.com/lin/qichat/pkg/llm"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(2)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)
)

// View represents the current view mode
type View int

const (
	ViewWelcome View = iota
	ViewChat
	ViewSessions
	ViewHelp
)

// App bundles the dependencies the shell drives.
type App struct {
	States   *state.Manager
	Startup  *startup.Manager
	Persist  *persist.Manager
	Store    domain.ConversationStore
	Settings domain.SettingsStore
	Provider llm.Provider

	active activeConversation
}

// activeConversation publishes the chat currently owned by the event loop so
// shutdown handlers running outside it can flush the right conversation.
type activeConversation struct {
	mu   sync.Mutex
	chat *domain.Conversation
}

func (a *activeConversation) set(c *domain.Conversation) {
	a.mu.Lock()
	a.chat = c
	a.mu.Unlock()
}

func (a *activeConversation) get() *domain.Conversation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.chat
}

// FlushActive runs the exit policy on whatever conversation is on screen.
// Wire it as a shutdown handler so a SIGTERM saves or discards the open chat
// even though the signal never reaches the event loop. After a normal quit
// the active slot is already cleared and this is a no-op.
func (a *App) FlushActive(ctx context.Context) {
	a.Persist.HandleAppExit(ctx, []*domain.Conversation{a.active.get()})
}

// Model is the main TUI model
type Model struct {
	app *App
	log *logging.Logger

	// State
	view        View
	chat        *domain.Conversation
	sessions    []*domain.Conversation
	selectedIdx int
	waiting     bool
	err         error
	ready       bool
	quitting    bool

	// Components
	spinner  spinner.Model
	input    textinput.Model
	viewport viewport.Model
	width    int
	height   int
}

// Message types
type replyMsg struct {
	chatID string
	text   string
	err    error
}
type sessionsMsg []*domain.Conversation
type errMsg error

// New creates the shell model from an already-applied startup state: the
// caller resolves the launch decision and hands over the opened chat (nil
// for the welcome page). A chat whose newest message is user-authored, as
// after a payload prefill, gets its reply requested on Init.
func New(app *App, chat *domain.Conversation) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ti := textinput.New()
	ti.Placeholder = "发送消息，或 /open <文件|网址>"
	ti.CharLimit = 2000
	ti.Width = 60
	ti.Focus()

	view := ViewWelcome
	if chat != nil {
		view = ViewChat
	}
	app.active.set(chat)

	return Model{
		app:     app,
		log:     logging.New("tui"),
		view:    view,
		chat:    chat,
		waiting: chat != nil && awaitingReply(chat),
		spinner: s,
		input:   ti,
	}
}

// Init initializes the TUI
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, textinput.Blink}
	if m.waiting {
		cmds = append(cmds, sendToProvider(m.app.Provider, m.chat.ID, m.chat.Messages))
	}
	return tea.Batch(cmds...)
}

// setChat swaps the conversation on screen and keeps the published active
// chat in sync.
func (m *Model) setChat(c *domain.Conversation) {
	m.chat = c
	m.app.active.set(c)
}

// awaitingReply reports whether the transcript ends on a user message with
// no assistant reply yet.
func awaitingReply(c *domain.Conversation) bool {
	last := c.LastMessage()
	return last != nil && last.Role == domain.RoleUser
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m.exit()

		case "enter":
			if m.view == ViewSessions {
				return m.openSelectedSession()
			}
			if m.waiting {
				return m, nil
			}
			return m.submitInput()

		case "ctrl+n":
			if m.view == ViewChat || m.view == ViewWelcome {
				return m.newChat()
			}

		case "ctrl+s":
			if m.view == ViewChat || m.view == ViewWelcome {
				m.view = ViewSessions
				m.selectedIdx = 0
				return m, fetchSessions(m.app)
			}

		case "ctrl+h":
			if m.view == ViewHelp {
				m.view = m.homeView()
			} else {
				m.view = ViewHelp
			}
			return m, nil

		case "up", "ctrl+k":
			if m.view == ViewSessions && m.selectedIdx > 0 {
				m.selectedIdx--
				return m, nil
			}

		case "down", "ctrl+j":
			if m.view == ViewSessions && m.selectedIdx < len(m.sessions)-1 {
				m.selectedIdx++
				return m, nil
			}

		case "esc":
			switch m.view {
			case ViewChat:
				return m.closeChat()
			case ViewSessions, ViewHelp:
				m.view = m.homeView()
				return m, nil
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		headerHeight := 5
		footerHeight := 4
		m.viewport = viewport.New(msg.Width-4, msg.Height-headerHeight-footerHeight)
		m.refreshTranscript()

	case replyMsg:
		m.waiting = false
		if msg.err != nil {
			m.err = msg.err
			break
		}
		// A reply for a chat that was closed or switched away is dropped;
		// appending it to whatever is on screen now would corrupt that chat.
		if m.chat == nil || m.chat.ID != msg.chatID {
			break
		}
		m.chat.AddMessage(domain.NewMessage(domain.RoleAssistant, msg.text))
		m.app.Persist.AutosaveOnMutation(context.Background(), m.chat)
		m.refreshTranscript()

	case sessionsMsg:
		m.sessions = msg
		if m.selectedIdx >= len(m.sessions) {
			m.selectedIdx = 0
		}

	case errMsg:
		m.err = msg

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	if m.view == ViewChat || m.view == ViewWelcome {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	if m.view == ViewChat {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// submitInput routes the input line: /open payloads, or a chat message.
// A message typed on the welcome page opens a new chat around it.
func (m Model) submitInput() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	if arg, ok := strings.CutPrefix(text, "/open "); ok {
		return m.openPayload(strings.TrimSpace(arg))
	}

	ctx := context.Background()

	if m.chat == nil {
		chat := m.app.Startup.CreateChatWithPayload(ctx, nil)
		m.setChat(chat)
		m.view = ViewChat
		m.app.Startup.Apply(ctx, domain.ChatViewState(chat.ID))
	}

	m.chat.AddMessage(domain.NewUserMessage(text))
	m.app.Persist.AutosaveOnMutation(ctx, m.chat)

	m.input.SetValue("")
	m.err = nil
	m.waiting = true
	m.refreshTranscript()

	return m, sendToProvider(m.app.Provider, m.chat.ID, m.chat.Messages)
}

// openPayload handles a /open argument the same way an external payload is
// handled: an existing path is a file, an http(s) URL is a webpage,
// anything else is text.
func (m Model) openPayload(arg string) (tea.Model, tea.Cmd) {
	if arg == "" {
		return m, nil
	}

	payload := state.ParseCommandArgs([]string{"qichat", arg})
	if payload == nil {
		return m, nil
	}

	ctx := context.Background()
	chat, created := m.app.Startup.HandleExternalPayloadDuringRuntime(ctx, m.chat, *payload)
	m.setChat(chat)
	m.view = ViewChat
	m.input.SetValue("")
	m.err = nil
	m.refreshTranscript()

	if created {
		m.log.Info("payload_opened_new_chat", map[string]any{"id": chat.ID, "type": string(payload.Type)})
	}

	if awaitingReply(chat) {
		m.waiting = true
		return m, sendToProvider(m.app.Provider, chat.ID, chat.Messages)
	}
	return m, nil
}

// newChat leaves the current chat through the switch policy and opens a
// fresh ephemeral one.
func (m Model) newChat() (tea.Model, tea.Cmd) {
	ctx := context.Background()
	m.app.Persist.HandleChatSwitch(ctx, m.chat, "")

	chat := m.app.Startup.CreateChatWithPayload(ctx, nil)
	m.setChat(chat)
	m.view = ViewChat
	m.input.SetValue("")
	m.err = nil
	m.app.Startup.Apply(ctx, domain.ChatViewState(chat.ID))
	m.refreshTranscript()
	return m, nil
}

// closeChat runs the close policy and returns to the welcome page.
func (m Model) closeChat() (tea.Model, tea.Cmd) {
	ctx := context.Background()
	m.app.Persist.HandleChatClose(ctx, m.chat)
	m.setChat(nil)
	m.waiting = false
	m.view = ViewWelcome
	m.input.SetValue("")
	m.app.Startup.Apply(ctx, domain.WelcomeState())
	return m, nil
}

// openSelectedSession switches from the current chat to the selected one.
func (m Model) openSelectedSession() (tea.Model, tea.Cmd) {
	if len(m.sessions) == 0 {
		m.view = m.homeView()
		return m, nil
	}

	target := m.sessions[m.selectedIdx]
	ctx := context.Background()

	if m.chat != nil && m.chat.ID == target.ID {
		m.view = ViewChat
		return m, nil
	}

	m.app.Persist.HandleChatSwitch(ctx, m.chat, target.ID)

	chat := m.app.Startup.LoadExistingChat(ctx, target.ID)
	if chat == nil {
		m.err = &domain.NotFoundError{ID: target.ID}
		m.view = m.homeView()
		return m, nil
	}

	m.setChat(chat)
	m.view = ViewChat
	m.input.SetValue("")
	m.app.Startup.Apply(ctx, domain.ChatViewState(chat.ID))
	m.refreshTranscript()
	return m, nil
}

// exit applies the exit policy to the open chat and quits. The active slot
// is cleared so the shutdown-time flush does not run the policy twice.
func (m Model) exit() (tea.Model, tea.Cmd) {
	ctx := context.Background()
	if m.chat != nil {
		m.app.Persist.HandleAppExit(ctx, []*domain.Conversation{m.chat})
	}
	m.app.active.set(nil)
	m.quitting = true
	return m, tea.Quit
}

// homeView is where esc lands: the open chat when there is one, otherwise
// the welcome page.
func (m Model) homeView() View {
	if m.chat != nil {
		return ViewChat
	}
	return ViewWelcome
}

func (m *Model) refreshTranscript() {
	if m.chat == nil {
		m.viewport.SetContent("")
		return
	}
	m.viewport.SetContent(renderTranscript(m.chat))
	m.viewport.GotoBottom()
}

// Run resolves the startup state, opens the shell and blocks until it
// exits.
func Run(app *App, args []string) error {
	ctx := context.Background()

	st := app.Startup.DetermineStartupState(ctx, args)

	var chat *domain.Conversation

	switch {
	case st.Payload != nil:
		chat = app.Startup.CreateChatWithPayload(ctx, st.Payload)
		app.Startup.Apply(ctx, domain.ChatViewState(chat.ID))
	case st.CurrentChatID != "":
		chat = app.Startup.LoadExistingChat(ctx, st.CurrentChatID)
		if chat != nil {
			app.Startup.Apply(ctx, domain.ChatViewState(chat.ID))
		} else {
			app.Startup.Apply(ctx, domain.WelcomeState())
		}
	default:
		app.Startup.Apply(ctx, domain.WelcomeState())
	}

	p := tea.NewProgram(New(app, chat), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Commands

func sendToProvider(provider llm.Provider, chatID string, messages []domain.Message) tea.Cmd {
	msgs := make([]domain.Message, len(messages))
	copy(msgs, messages)

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		text, err := provider.SendMessage(ctx, msgs)
		return replyMsg{chatID: chatID, text: text, err: err}
	}
}

func fetchSessions(app *App) tea.Cmd {
	return func() tea.Msg {
		chats, err := app.Store.List(context.Background())
		if err != nil {
			return errMsg(err)
		}
		return sessionsMsg(chats)
	}
}
