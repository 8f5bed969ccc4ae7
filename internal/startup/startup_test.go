package startup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lin/qichat/internal/domain"
	"github.com/lin/qichat/internal/persist"
	"github.com/lin/qichat/internal/state"
	"github.com/lin/qichat/internal/testutil"
)

type fixture struct {
	mgr      *Manager
	states   *state.Manager
	store    *testutil.MemStore
	settings *testutil.MemSettings
}

func newFixture(t *testing.T, noResume bool) *fixture {
	t.Helper()
	store := testutil.NewMemStore()
	settings := testutil.NewMemSettings()
	states := state.NewManager()
	return &fixture{
		mgr:      NewManager(states, persist.NewManager(store), store, settings, noResume),
		states:   states,
		store:    store,
		settings: settings,
	}
}

func savedChat(t *testing.T, store *testutil.MemStore, firstMsg string, updatedAt time.Time) *domain.Conversation {
	t.Helper()
	chat := domain.NewConversation()
	chat.AddMessage(domain.NewUserMessage(firstMsg))
	chat.UpdatedAt = updatedAt
	require.NoError(t, store.Save(context.Background(), chat))
	return chat
}

func TestStartupWithFileArg(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	f := newFixture(t, false)
	st := f.mgr.DetermineStartupState(context.Background(), []string{"qichat", path})

	assert.Equal(t, domain.StateChatView, st.Type)
	assert.Empty(t, st.CurrentChatID)
	require.NotNil(t, st.Payload)
	assert.Equal(t, domain.PayloadFile, st.Payload.Type)
}

func TestStartupPayloadBeatsLastActive(t *testing.T) {
	f := newFixture(t, false)
	chat := savedChat(t, f.store, "older work", time.Now())
	require.NoError(t, f.settings.SetLastActiveChat(context.Background(), chat.ID))

	st := f.mgr.DetermineStartupState(context.Background(), []string{"qichat", "https://example.com"})

	require.NotNil(t, st.Payload)
	assert.Equal(t, domain.PayloadURL, st.Payload.Type)
	assert.Empty(t, st.CurrentChatID)
}

func TestStartupResumesLastActive(t *testing.T) {
	f := newFixture(t, false)
	chat := savedChat(t, f.store, "older work", time.Now())
	require.NoError(t, f.settings.SetLastActiveChat(context.Background(), chat.ID))

	st := f.mgr.DetermineStartupState(context.Background(), []string{"qichat"})

	assert.Equal(t, domain.StateChatView, st.Type)
	assert.Equal(t, chat.ID, st.CurrentChatID)
	assert.Nil(t, st.Payload)
}

func TestStartupWelcomeWhenNothingRecorded(t *testing.T) {
	f := newFixture(t, false)
	st := f.mgr.DetermineStartupState(context.Background(), []string{"qichat"})
	assert.Equal(t, domain.StateWelcome, st.Type)
}

func TestStartupNoResumeSkipsRecordedChat(t *testing.T) {
	f := newFixture(t, true)
	chat := savedChat(t, f.store, "older work", time.Now())
	require.NoError(t, f.settings.SetLastActiveChat(context.Background(), chat.ID))

	st := f.mgr.DetermineStartupState(context.Background(), []string{"qichat"})
	assert.Equal(t, domain.StateWelcome, st.Type)
}

func TestStartupStaleSettingsFallsBackToMostRecent(t *testing.T) {
	f := newFixture(t, false)
	savedChat(t, f.store, "old", time.Now().Add(-time.Hour))
	recent := savedChat(t, f.store, "recent", time.Now())
	require.NoError(t, f.settings.SetLastActiveChat(context.Background(), "gone-id"))

	st := f.mgr.DetermineStartupState(context.Background(), []string{"qichat"})

	assert.Equal(t, domain.StateChatView, st.Type)
	assert.Equal(t, recent.ID, st.CurrentChatID)
}

func TestStartupResumeSkipsEphemeralRecords(t *testing.T) {
	f := newFixture(t, false)

	// A store implementation may hold records that never latched; the
	// fallback must not resume one of those.
	draft := domain.NewConversation()
	draft.Messages = append(draft.Messages, domain.NewUserMessage("unsent"))
	require.NoError(t, f.store.Save(context.Background(), draft))

	st := f.mgr.DetermineStartupState(context.Background(), []string{"qichat"})
	assert.Equal(t, domain.StateWelcome, st.Type)
}

func TestStartupSettingsFailureAbsorbed(t *testing.T) {
	f := newFixture(t, false)
	f.settings.FailRead = true
	recent := savedChat(t, f.store, "recent", time.Now())

	st := f.mgr.DetermineStartupState(context.Background(), []string{"qichat"})
	assert.Equal(t, recent.ID, st.CurrentChatID)
}

func TestStartupListFailureFallsBackToWelcome(t *testing.T) {
	f := newFixture(t, false)
	f.store.FailList = true

	st := f.mgr.DetermineStartupState(context.Background(), []string{"qichat"})
	assert.Equal(t, domain.StateWelcome, st.Type)
}

func TestApplyRecordsLastActiveChat(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	f.mgr.Apply(ctx, domain.ChatViewState("chat-1"))

	assert.Equal(t, domain.StateChatView, f.states.Current().Type)
	id, err := f.settings.LastActiveChat(ctx)
	require.NoError(t, err)
	assert.Equal(t, "chat-1", id)

	f.mgr.Apply(ctx, domain.WelcomeState())
	id, err = f.settings.LastActiveChat(ctx)
	require.NoError(t, err)
	assert.Equal(t, "chat-1", id, "welcome transition keeps the resume target")
}

func TestCreateChatWithNilPayload(t *testing.T) {
	f := newFixture(t, false)
	chat := f.mgr.CreateChatWithPayload(context.Background(), nil)

	assert.True(t, chat.IsEmptyEphemeral())
	assert.Zero(t, f.store.SaveCalls, "empty chat must not touch the store")
}

func TestCreateChatWithFilePayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0644))

	f := newFixture(t, false)
	payload := domain.NewPayload(domain.PayloadFile, path)
	chat := f.mgr.CreateChatWithPayload(context.Background(), &payload)

	assert.Equal(t, "分析文件: report.pdf", chat.Title)
	require.Len(t, chat.Attachments, 1)
	require.Len(t, chat.Messages, 1)
	assert.Equal(t, "请帮我分析这个文件: report.pdf", chat.Messages[0].Content)
	assert.Equal(t, domain.RoleUser, chat.Messages[0].Role)
	assert.False(t, chat.Ephemeral)
	assert.True(t, f.store.Has(chat.ID), "prefilled chat is saved before returning")
}

func TestCreateChatWithFileDropAttachesAll(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("b"), 0644))

	f := newFixture(t, false)
	payload := state.ParseFileDrop([]string{a, b})
	require.NotNil(t, payload)

	chat := f.mgr.CreateChatWithPayload(context.Background(), payload)
	assert.Len(t, chat.Attachments, 2)
	require.Len(t, chat.Messages, 1)
	assert.Equal(t, "请帮我分析这个文件: a.txt", chat.Messages[0].Content)
}

func TestCreateChatWithMissingFileStillPrompts(t *testing.T) {
	f := newFixture(t, false)
	payload := domain.NewPayload(domain.PayloadFile, "/no/such/file.txt")
	chat := f.mgr.CreateChatWithPayload(context.Background(), &payload)

	assert.Empty(t, chat.Attachments)
	require.Len(t, chat.Messages, 1)
	assert.Equal(t, "请帮我分析这个文件: file.txt", chat.Messages[0].Content)
	assert.False(t, chat.Ephemeral, "the prompt message alone is content")
}

func TestCreateChatWithURLPayload(t *testing.T) {
	f := newFixture(t, false)
	payload := domain.NewPayload(domain.PayloadURL, "https://example.com/post")
	chat := f.mgr.CreateChatWithPayload(context.Background(), &payload)

	assert.Equal(t, "分析网页: https://example.com/post...", chat.Title)
	require.Len(t, chat.Messages, 1)
	assert.Equal(t, "请帮我分析这个网页: https://example.com/post", chat.Messages[0].Content)
	assert.False(t, chat.Ephemeral)
	assert.True(t, f.store.Has(chat.ID))
}

func TestCreateChatWithLongURLTruncatesTitle(t *testing.T) {
	f := newFixture(t, false)
	url := "https://example.com/" + strings.Repeat("x", 80)
	payload := domain.NewPayload(domain.PayloadURL, url)
	chat := f.mgr.CreateChatWithPayload(context.Background(), &payload)

	assert.Equal(t, "分析网页: "+url[:50]+"...", chat.Title)
}

func TestCreateChatWithTextPayload(t *testing.T) {
	f := newFixture(t, false)
	payload := domain.NewPayload(domain.PayloadText, "解释一下量子纠缠")
	chat := f.mgr.CreateChatWithPayload(context.Background(), &payload)

	require.Len(t, chat.Messages, 1)
	assert.Equal(t, "解释一下量子纠缠", chat.Messages[0].Content)
	assert.Equal(t, "解释一下量子纠缠", chat.Title, "title derives from the first user message")
	assert.False(t, chat.Ephemeral)
	assert.True(t, f.store.Has(chat.ID))
}

func TestCreateChatWithPayloadSavesExactlyOnce(t *testing.T) {
	f := newFixture(t, false)
	payload := domain.NewPayload(domain.PayloadText, "hi")

	// The ephemeral latch flips while the prefill content lands, before the
	// persistency check runs; the save must still happen.
	chat := f.mgr.CreateChatWithPayload(context.Background(), &payload)

	assert.False(t, chat.Ephemeral)
	assert.Equal(t, 1, f.store.SaveCalls)
	assert.True(t, f.store.Has(chat.ID))
}

func TestCreateChatWithUnknownPayloadLeavesChatUntouched(t *testing.T) {
	f := newFixture(t, false)
	payload := domain.NewPayload(domain.PayloadType("clipboard"), "stuff")
	chat := f.mgr.CreateChatWithPayload(context.Background(), &payload)

	assert.Empty(t, chat.Title)
	assert.True(t, chat.IsEmptyEphemeral())
	assert.False(t, f.store.Has(chat.ID))
}

func TestLoadExistingChat(t *testing.T) {
	f := newFixture(t, false)
	saved := savedChat(t, f.store, "resumable", time.Now())

	chat := f.mgr.LoadExistingChat(context.Background(), saved.ID)
	require.NotNil(t, chat)
	assert.Equal(t, saved.ID, chat.ID)
	assert.False(t, chat.Ephemeral)
}

func TestLoadExistingChatSoftFailures(t *testing.T) {
	f := newFixture(t, false)
	assert.Nil(t, f.mgr.LoadExistingChat(context.Background(), ""))
	assert.Nil(t, f.mgr.LoadExistingChat(context.Background(), "missing"))

	f.store.FailLoad = true
	assert.Nil(t, f.mgr.LoadExistingChat(context.Background(), "any"))
}

func TestRuntimePayloadReusesEmptyEphemeralChat(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	current := domain.NewConversation()
	f.mgr.Apply(ctx, domain.ChatViewState(current.ID))

	payload := domain.NewPayload(domain.PayloadText, "new idea")
	chat, created := f.mgr.HandleExternalPayloadDuringRuntime(ctx, current, payload)

	assert.False(t, created)
	assert.Same(t, current, chat)
	require.Len(t, chat.Messages, 1)
	assert.Equal(t, "new idea", chat.Messages[0].Content)
	assert.False(t, chat.Ephemeral)
	assert.True(t, f.store.Has(chat.ID), "absorbed payload persists the chat")
	assert.Zero(t, f.store.DeleteCalls, "reuse must not discard anything")
}

func TestRuntimePayloadSpawnsNewChatOverPopulatedOne(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	current := domain.NewConversation()
	current.AddMessage(domain.NewUserMessage("keep me"))
	f.mgr.Apply(ctx, domain.ChatViewState(current.ID))

	payload := domain.NewPayload(domain.PayloadText, "something else")
	chat, created := f.mgr.HandleExternalPayloadDuringRuntime(ctx, current, payload)

	assert.True(t, created)
	assert.NotEqual(t, current.ID, chat.ID)
	assert.True(t, f.store.Has(current.ID), "populated chat saved before switching away")
	assert.True(t, f.store.Has(chat.ID))
	assert.Equal(t, chat.ID, f.states.LastActiveChatID())
}

func TestRuntimePayloadFromWelcomeCreatesChat(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.mgr.Apply(ctx, domain.WelcomeState())

	payload := domain.NewPayload(domain.PayloadText, "hello")
	chat, created := f.mgr.HandleExternalPayloadDuringRuntime(ctx, nil, payload)

	assert.True(t, created)
	require.NotNil(t, chat)
	assert.Equal(t, domain.StateChatView, f.states.Current().Type)
}

func TestRuntimePayloadDiscardsAbandonedEphemeralWhenNotOnScreen(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	// Welcome is on screen, but an empty ephemeral chat lingers in memory;
	// the switch policy drops it rather than saving it.
	f.mgr.Apply(ctx, domain.WelcomeState())
	lingering := domain.NewConversation()

	payload := domain.NewPayload(domain.PayloadText, "fresh")
	_, created := f.mgr.HandleExternalPayloadDuringRuntime(ctx, lingering, payload)

	assert.True(t, created)
	assert.False(t, f.store.Has(lingering.ID))
}
