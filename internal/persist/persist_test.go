package persist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lin/qichat/internal/domain"
	"github.com/lin/qichat/internal/testutil"
)

func newPopulated() *domain.Conversation {
	c := domain.NewConversation()
	c.AddMessage(domain.NewUserMessage("hello"))
	return c
}

func TestEnsurePersistencyIfContentFlipsAndSaves(t *testing.T) {
	store := testutil.NewMemStore()
	m := NewManager(store)

	c := domain.NewConversation()
	c.Messages = append(c.Messages, domain.NewUserMessage("hi"))

	flipped := m.EnsurePersistencyIfContent(context.Background(), c)

	assert.True(t, flipped)
	assert.False(t, c.Ephemeral)
	assert.Equal(t, 1, store.SaveCalls)
	assert.True(t, store.Has(c.ID))
}

func TestEnsurePersistencyIfContentEmptyChatIsNoop(t *testing.T) {
	store := testutil.NewMemStore()
	m := NewManager(store)

	c := domain.NewConversation()

	assert.False(t, m.EnsurePersistencyIfContent(context.Background(), c))
	assert.True(t, c.Ephemeral)
	assert.Zero(t, store.SaveCalls)
}

func TestEnsurePersistencyIfContentIdempotent(t *testing.T) {
	store := testutil.NewMemStore()
	m := NewManager(store)

	c := newPopulated()
	c.Ephemeral = true // undo the automatic latch to exercise the manager path

	assert.True(t, m.EnsurePersistencyIfContent(context.Background(), c))
	saves := store.SaveCalls

	// Second call with no intervening mutation: no flip, no extra write.
	assert.False(t, m.EnsurePersistencyIfContent(context.Background(), c))
	assert.Equal(t, saves, store.SaveCalls)
}

func TestAutosaveAlwaysSaves(t *testing.T) {
	store := testutil.NewMemStore()
	m := NewManager(store)

	c := newPopulated()

	// Already persistent: autosave still writes, reports no flip.
	assert.False(t, m.AutosaveOnMutation(context.Background(), c))
	assert.Equal(t, 1, store.SaveCalls)

	assert.False(t, m.AutosaveOnMutation(context.Background(), c))
	assert.Equal(t, 2, store.SaveCalls)
}

func TestAutosaveReportsFlip(t *testing.T) {
	store := testutil.NewMemStore()
	m := NewManager(store)

	c := domain.NewConversation()
	c.Messages = append(c.Messages, domain.NewUserMessage("typed"))

	assert.True(t, m.AutosaveOnMutation(context.Background(), c))
	assert.False(t, c.Ephemeral)
}

func TestShouldDiscardOnLeave(t *testing.T) {
	m := NewManager(testutil.NewMemStore())

	assert.True(t, m.ShouldDiscardOnLeave(domain.NewConversation()))
	assert.False(t, m.ShouldDiscardOnLeave(newPopulated()))
}

func TestHandleChatSwitchDiscardsEmptyEphemeral(t *testing.T) {
	store := testutil.NewMemStore()
	m := NewManager(store)

	c := domain.NewConversation()
	m.HandleChatSwitch(context.Background(), c, "target-chat")

	assert.Equal(t, 1, store.DeleteCalls)
	assert.Zero(t, store.SaveCalls)
	assert.False(t, store.Has(c.ID))
}

func TestHandleChatSwitchSavesPopulated(t *testing.T) {
	store := testutil.NewMemStore()
	m := NewManager(store)

	c := newPopulated()
	m.HandleChatSwitch(context.Background(), c, "target-chat")

	assert.Equal(t, 1, store.SaveCalls)
	assert.True(t, store.Has(c.ID))
}

func TestHandleChatSwitchNilCurrentIsNoop(t *testing.T) {
	store := testutil.NewMemStore()
	m := NewManager(store)

	m.HandleChatSwitch(context.Background(), nil, "target-chat")

	assert.Zero(t, store.SaveCalls)
	assert.Zero(t, store.DeleteCalls)
}

func TestHandleChatCloseEmptyEphemeralLeavesNoRecord(t *testing.T) {
	store := testutil.NewMemStore()
	m := NewManager(store)

	// The chat was saved once while still empty (edge case), then closed.
	c := domain.NewConversation()
	require.NoError(t, store.Save(context.Background(), c))
	require.True(t, store.Has(c.ID))

	m.HandleChatClose(context.Background(), c)

	assert.False(t, store.Has(c.ID))
}

func TestHandleChatClosePopulatedMatchesContent(t *testing.T) {
	store := testutil.NewMemStore()
	m := NewManager(store)

	c := newPopulated()
	c.AddMessage(domain.NewMessage(domain.RoleAssistant, "reply"))

	m.HandleChatClose(context.Background(), c)

	stored := store.Get(c.ID)
	require.NotNil(t, stored)
	assert.Len(t, stored.Messages, 2)
	assert.Equal(t, c.Title, stored.Title)
}

func TestHandleAppExit(t *testing.T) {
	store := testutil.NewMemStore()
	m := NewManager(store)

	empty := domain.NewConversation()
	populated := newPopulated()

	m.HandleAppExit(context.Background(), []*domain.Conversation{empty, populated, nil})

	assert.False(t, store.Has(empty.ID))

	stored := store.Get(populated.ID)
	require.NotNil(t, stored)
	assert.Len(t, stored.Messages, 1)
}

func TestDiscardOfNeverSavedChatIsNoFailure(t *testing.T) {
	store := testutil.NewMemStore()
	m := NewManager(store)

	c := domain.NewConversation()

	// Nothing was ever saved for this id; discard must not blow up.
	m.HandleChatClose(context.Background(), c)

	assert.Equal(t, 1, store.DeleteCalls)
}

func TestStoreFailuresAreAbsorbed(t *testing.T) {
	store := testutil.NewMemStore()
	store.FailSave = true
	store.FailDelete = true
	m := NewManager(store)

	// Neither path may panic or propagate.
	m.HandleChatClose(context.Background(), newPopulated())
	m.HandleChatClose(context.Background(), domain.NewConversation())
	m.AutosaveOnMutation(context.Background(), newPopulated())
}
