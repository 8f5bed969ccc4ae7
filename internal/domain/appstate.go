package domain

// StateType is the top-level view the application presents.
type StateType string

const (
	// StateWelcome shows the welcome page (no conversation open).
	StateWelcome StateType = "welcome"

	// StateChatView shows an open conversation.
	StateChatView StateType = "chat_view"

	// StateNoView is the transitional initial state. It must be replaced
	// before anything is rendered; no view corresponds to it.
	StateNoView StateType = "no_view"
)

// AppState is the computed top-level application state. It is a transient
// value: never persisted, only handed from the decision layer to the shell.
type AppState struct {
	Type          StateType
	CurrentChatID string
	Payload       *Payload
}

// WelcomeState returns the welcome-page state.
func WelcomeState() AppState {
	return AppState{Type: StateWelcome}
}

// ChatViewState returns a chat-view state resuming an existing conversation.
func ChatViewState(chatID string) AppState {
	return AppState{Type: StateChatView, CurrentChatID: chatID}
}

// ChatViewWithPayload returns a chat-view state reached via external input.
// No chat id is set; the orchestrator creates the conversation.
func ChatViewWithPayload(p Payload) AppState {
	return AppState{Type: StateChatView, Payload: &p}
}
