// ABOUTME: Tests for the conversation Controller
// ABOUTME: Covers send, streaming, fallback, edit-and-resubmit truncation, modes, and cancellation

package conversation

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astronomox/lightspace/internal/completion"
	"github.com/astronomox/lightspace/internal/modes"
	"github.com/astronomox/lightspace/internal/session"
	"github.com/astronomox/lightspace/internal/store"
)

// scriptedStreamer replays fixed fragments, optionally ending in a
// terminal failure instead of normal completion.
type scriptedStreamer struct {
	mu          sync.Mutex
	fragments   []string
	terminalErr error
	openErr     error
	calls       int
	lastHistory []completion.Turn
	lastSystem  string
}

func (s *scriptedStreamer) StreamCompletion(ctx context.Context, history []completion.Turn, system string) (<-chan completion.Chunk, error) {
	s.mu.Lock()
	s.calls++
	s.lastHistory = history
	s.lastSystem = system
	s.mu.Unlock()

	if s.openErr != nil {
		return nil, s.openErr
	}
	ch := make(chan completion.Chunk, len(s.fragments)+1)
	for _, f := range s.fragments {
		ch <- completion.Chunk{Text: f}
	}
	if s.terminalErr != nil {
		ch <- completion.Chunk{Err: s.terminalErr}
	}
	close(ch)
	return ch, nil
}

func (s *scriptedStreamer) snapshot() (int, []completion.Turn, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, s.lastHistory, s.lastSystem
}

// gatedStreamer blocks mid-generation until released, for exercising the
// busy guard and cancellation.
type gatedStreamer struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedStreamer() *gatedStreamer {
	return &gatedStreamer{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedStreamer) StreamCompletion(ctx context.Context, _ []completion.Turn, _ string) (<-chan completion.Chunk, error) {
	g.once.Do(func() { close(g.started) })
	ch := make(chan completion.Chunk, 2)
	go func() {
		defer close(ch)
		select {
		case <-g.release:
			ch <- completion.Chunk{Text: "released"}
		case <-ctx.Done():
			ch <- completion.Chunk{Err: ctx.Err()}
		}
	}()
	return ch, nil
}

func newTestController(t *testing.T, st store.Store, streamer completion.Streamer) *Controller {
	t.Helper()
	ctrl := NewController("alice", st, streamer, modes.Builtin(), nil, nil)
	t.Cleanup(ctrl.Close)
	return ctrl
}

func seedHistory(t *testing.T, st store.Store, base time.Time) {
	t.Helper()
	ctx := context.Background()
	seed := []*store.Message{
		{ID: "u1", Owner: "alice", Role: store.RoleUser, Content: "first question", Timestamp: base},
		{ID: "a1", Owner: "alice", Role: store.RoleAssistant, Content: "first answer", Timestamp: base.Add(time.Second)},
		{ID: "u2", Owner: "alice", Role: store.RoleUser, Content: "second question", Timestamp: base.Add(2 * time.Second)},
		{ID: "a2", Owner: "alice", Role: store.RoleAssistant, Content: "second answer", Timestamp: base.Add(3 * time.Second)},
	}
	for _, msg := range seed {
		require.NoError(t, st.Append(ctx, msg))
	}
}

func TestLoad_EmptySessionSeedsBootstrap(t *testing.T) {
	mock := store.NewMockStore()
	ctrl := newTestController(t, mock, &scriptedStreamer{})

	require.NoError(t, ctrl.Load(context.Background()))

	messages := ctrl.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, session.BootstrapID, messages[0].ID)
	assert.Equal(t, store.RoleAssistant, messages[0].Role)

	// The bootstrap sentinel is never persisted.
	assert.Equal(t, []string{"load"}, mock.Calls)
	assert.Equal(t, 0, mock.Count())
}

func TestLoad_ExistingHistorySkipsBootstrap(t *testing.T) {
	mock := store.NewMockStore()
	seedHistory(t, mock, time.Now().UTC().Add(-time.Hour))
	mock.Calls = nil
	ctrl := newTestController(t, mock, &scriptedStreamer{})

	require.NoError(t, ctrl.Load(context.Background()))

	messages := ctrl.Messages()
	require.Len(t, messages, 4)
	assert.Equal(t, "u1", messages[0].ID)
	assert.Equal(t, "a2", messages[3].ID)
}

func TestSend_StreamsAndCommitsReply(t *testing.T) {
	mock := store.NewMockStore()
	streamer := &scriptedStreamer{fragments: []string{"Let's", " try", " grounding."}}
	ctrl := newTestController(t, mock, streamer)
	require.NoError(t, ctrl.Load(context.Background()))

	_, err := ctrl.SetMode(context.Background(), "anxiety")
	require.NoError(t, err)

	accepted, err := ctrl.Send(context.Background(), "I feel anxious")
	require.NoError(t, err)
	assert.True(t, accepted)

	messages := ctrl.Messages()
	// bootstrap, mode notice, user message, assistant reply
	require.Len(t, messages, 4)
	final := messages[3]
	assert.Equal(t, store.RoleAssistant, final.Role)
	assert.Equal(t, "Let's try grounding.", final.Content)

	// Busy and draft cleared on the success exit path.
	assert.False(t, ctrl.Busy())
	assert.Nil(t, ctrl.Draft())
	assert.Equal(t, PhaseIdle, ctrl.Phase())

	// Both user and assistant messages are durable.
	assert.NotNil(t, mock.Get(messages[2].ID))
	assert.NotNil(t, mock.Get(final.ID))

	// The anxiety-mode system instruction conditioned the generation.
	_, _, system := streamer.snapshot()
	assert.Contains(t, system, "ANXIETY")
}

func TestSend_TimestampsStrictlyIncreasing(t *testing.T) {
	mock := store.NewMockStore()
	ctrl := newTestController(t, mock, &scriptedStreamer{fragments: []string{"ok"}})
	require.NoError(t, ctrl.Load(context.Background()))

	for _, content := range []string{"one", "two", "three"} {
		accepted, err := ctrl.Send(context.Background(), content)
		require.NoError(t, err)
		require.True(t, accepted)
	}

	messages := ctrl.Messages()
	for i := 1; i < len(messages); i++ {
		assert.True(t, messages[i].Timestamp.After(messages[i-1].Timestamp),
			"message %d not strictly after %d", i, i-1)
	}
}

func TestSend_EmptyContentRejected(t *testing.T) {
	mock := store.NewMockStore()
	ctrl := newTestController(t, mock, &scriptedStreamer{fragments: []string{"ok"}})
	require.NoError(t, ctrl.Load(context.Background()))
	before := ctrl.Messages()

	for _, content := range []string{"", "   ", "\n\t"} {
		accepted, err := ctrl.Send(context.Background(), content)
		assert.False(t, accepted)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve, "content %q", content)
	}

	assert.Equal(t, len(before), len(ctrl.Messages()))
	assert.Equal(t, 0, mock.Count(), "no side effects on rejected send")
}

func TestSend_HistoryExcludesBootstrapAndMapsRoles(t *testing.T) {
	mock := store.NewMockStore()
	streamer := &scriptedStreamer{fragments: []string{"sure"}}
	ctrl := newTestController(t, mock, streamer)
	require.NoError(t, ctrl.Load(context.Background()))

	accepted, err := ctrl.Send(context.Background(), "hello")
	require.NoError(t, err)
	require.True(t, accepted)

	_, history, _ := streamer.snapshot()
	// Only the user message: the bootstrap sentinel is local UI sugar.
	require.Len(t, history, 1)
	assert.Equal(t, completion.RoleUser, history[0].Role)
	assert.Equal(t, "hello", history[0].Text)

	// Second turn: the committed assistant reply crosses as the model role.
	accepted, err = ctrl.Send(context.Background(), "and another")
	require.NoError(t, err)
	require.True(t, accepted)

	_, history, _ = streamer.snapshot()
	require.Len(t, history, 3)
	assert.Equal(t, completion.RoleModel, history[1].Role)
	assert.Equal(t, "sure", history[1].Text)
}

func TestSend_GenerationFailureCommitsFallback(t *testing.T) {
	mock := store.NewMockStore()
	streamer := &scriptedStreamer{
		fragments:   []string{"partial ", "draft"},
		terminalErr: errors.New("connection dropped"),
	}
	ctrl := newTestController(t, mock, streamer)
	require.NoError(t, ctrl.Load(context.Background()))

	accepted, err := ctrl.Send(context.Background(), "hello")
	require.NoError(t, err, "generation failure is never surfaced")
	assert.True(t, accepted)

	messages := ctrl.Messages()
	final := messages[len(messages)-1]
	assert.Equal(t, store.RoleAssistant, final.Role)
	assert.Equal(t, fallbackContent, final.Content, "accumulated draft discarded, fallback committed")

	// Exactly one terminal assistant message per generation attempt.
	assistants := 0
	for _, msg := range messages {
		if msg.Role == store.RoleAssistant && msg.ID != session.BootstrapID {
			assistants++
		}
	}
	assert.Equal(t, 1, assistants)
	assert.NotNil(t, mock.Get(final.ID), "fallback is persisted")
	assert.False(t, ctrl.Busy())
	assert.Nil(t, ctrl.Draft())
}

func TestSend_OpenFailureCommitsFallback(t *testing.T) {
	mock := store.NewMockStore()
	streamer := &scriptedStreamer{openErr: errors.New("backend unreachable")}
	ctrl := newTestController(t, mock, streamer)
	require.NoError(t, ctrl.Load(context.Background()))

	accepted, err := ctrl.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, accepted)

	messages := ctrl.Messages()
	final := messages[len(messages)-1]
	assert.Equal(t, fallbackContent, final.Content)
	assert.False(t, ctrl.Busy())
}

func TestSend_StorageFailureIsSwallowed(t *testing.T) {
	mock := store.NewMockStore()
	mock.AppendErr = errors.New("backend down")
	ctrl := newTestController(t, mock, &scriptedStreamer{fragments: []string{"ok"}})
	require.NoError(t, ctrl.Load(context.Background()))

	accepted, err := ctrl.Send(context.Background(), "hello")
	require.NoError(t, err, "append-path storage failures are logged, not surfaced")
	assert.True(t, accepted)

	// In-memory log stays authoritative.
	messages := ctrl.Messages()
	assert.Equal(t, "ok", messages[len(messages)-1].Content)
}

func TestSend_NoOpWhileBusy(t *testing.T) {
	mock := store.NewMockStore()
	gated := newGatedStreamer()
	ctrl := newTestController(t, mock, gated)
	require.NoError(t, ctrl.Load(context.Background()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = ctrl.Send(context.Background(), "first")
	}()
	<-gated.started
	assert.True(t, ctrl.Busy())

	accepted, err := ctrl.Send(context.Background(), "second")
	assert.False(t, accepted, "send while busy is silently ignored")
	assert.NoError(t, err)

	acceptedEdit, err := ctrl.EditAndResubmit(context.Background(), "any", "text")
	assert.False(t, acceptedEdit, "edit while busy is silently ignored")
	assert.NoError(t, err)

	close(gated.release)
	<-done

	// Only the first send produced messages: bootstrap + user + assistant.
	assert.Equal(t, 3, len(ctrl.Messages()))
	assert.False(t, ctrl.Busy())
}

func TestEditAndResubmit_TruncatesAndRegenerates(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	seedHistory(t, st, base)

	streamer := &scriptedStreamer{fragments: []string{"fresh ", "answer"}}
	ctrl := newTestController(t, st, streamer)
	require.NoError(t, ctrl.Load(context.Background()))
	require.Len(t, ctrl.Messages(), 4)

	accepted, err := ctrl.EditAndResubmit(context.Background(), "u1", "new text")
	require.NoError(t, err)
	require.True(t, accepted)

	// Memory: the edited message plus the fresh reply; a1/u2/a2 are gone.
	messages := ctrl.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "u1", messages[0].ID)
	assert.Equal(t, "new text", messages[0].Content)
	assert.True(t, messages[0].Timestamp.Equal(base), "edit keeps the original timestamp")
	assert.Equal(t, store.RoleAssistant, messages[1].Role)
	assert.Equal(t, "fresh answer", messages[1].Content)

	// Reload from a fresh store view: durable state equals memory.
	reloaded, err := st.LoadOrdered(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, reloaded, 2)
	for i := range reloaded {
		assert.Equal(t, messages[i].ID, reloaded[i].ID)
		assert.Equal(t, messages[i].Content, reloaded[i].Content)
	}
}

func TestEditAndResubmit_UnknownIDRejected(t *testing.T) {
	mock := store.NewMockStore()
	ctrl := newTestController(t, mock, &scriptedStreamer{fragments: []string{"ok"}})
	require.NoError(t, ctrl.Load(context.Background()))

	accepted, err := ctrl.EditAndResubmit(context.Background(), "ghost", "text")
	assert.False(t, accepted)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Empty(t, mock.Calls[1:], "no gateway calls after the initial load")
}

func TestEditAndResubmit_AbortsOnReplaceFailure(t *testing.T) {
	mock := store.NewMockStore()
	seedHistory(t, mock, time.Now().UTC().Add(-time.Hour))
	streamer := &scriptedStreamer{fragments: []string{"ok"}}
	ctrl := newTestController(t, mock, streamer)
	require.NoError(t, ctrl.Load(context.Background()))

	mock.ReplaceErr = errors.New("backend down")
	accepted, err := ctrl.EditAndResubmit(context.Background(), "u1", "new text")
	assert.False(t, accepted)
	require.Error(t, err)
	assert.True(t, store.IsStorageError(err))

	// No partial truncation: memory is at the pre-edit state.
	messages := ctrl.Messages()
	require.Len(t, messages, 4)
	assert.Equal(t, "first question", messages[0].Content)

	// No regeneration was attempted.
	calls, _, _ := streamer.snapshot()
	assert.Equal(t, 0, calls)
}

func TestEditAndResubmit_AbortsOnDeleteFailure(t *testing.T) {
	mock := store.NewMockStore()
	seedHistory(t, mock, time.Now().UTC().Add(-time.Hour))
	ctrl := newTestController(t, mock, &scriptedStreamer{fragments: []string{"ok"}})
	require.NoError(t, ctrl.Load(context.Background()))

	mock.DeleteErr = errors.New("backend down")
	accepted, err := ctrl.EditAndResubmit(context.Background(), "u1", "new text")
	assert.False(t, accepted)
	require.Error(t, err)

	// Memory untouched even though the durable content replacement landed:
	// storage may run ahead of memory, never behind.
	messages := ctrl.Messages()
	require.Len(t, messages, 4)
	assert.Equal(t, "first question", messages[0].Content)
}

func TestEditAndResubmit_GatewayCallOrder(t *testing.T) {
	mock := store.NewMockStore()
	seedHistory(t, mock, time.Now().UTC().Add(-time.Hour))
	ctrl := newTestController(t, mock, &scriptedStreamer{fragments: []string{"ok"}})
	require.NoError(t, ctrl.Load(context.Background()))
	mock.Calls = nil

	accepted, err := ctrl.EditAndResubmit(context.Background(), "u1", "new text")
	require.NoError(t, err)
	require.True(t, accepted)

	// Durable replace, then durable truncate, then the regeneration append.
	require.GreaterOrEqual(t, len(mock.Calls), 3)
	assert.Equal(t, "replace", mock.Calls[0])
	assert.Equal(t, "delete_after", mock.Calls[1])
	assert.Equal(t, "append", mock.Calls[2])
}

func TestSetMode_AppendsPersistedNotice(t *testing.T) {
	mock := store.NewMockStore()
	ctrl := newTestController(t, mock, &scriptedStreamer{})
	require.NoError(t, ctrl.Load(context.Background()))

	accepted, err := ctrl.SetMode(context.Background(), "venting")
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Equal(t, "venting", ctrl.Mode())

	messages := ctrl.Messages()
	notice := messages[len(messages)-1]
	assert.Equal(t, store.RoleAssistant, notice.Role)
	assert.Contains(t, notice.Content, "Venting")
	assert.NotNil(t, mock.Get(notice.ID))
}

func TestSetMode_SameModeNoNotice(t *testing.T) {
	mock := store.NewMockStore()
	ctrl := newTestController(t, mock, &scriptedStreamer{})
	require.NoError(t, ctrl.Load(context.Background()))
	before := len(ctrl.Messages())

	accepted, err := ctrl.SetMode(context.Background(), ctrl.Mode())
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Equal(t, before, len(ctrl.Messages()))
}

func TestSetMode_UnknownModeRejected(t *testing.T) {
	mock := store.NewMockStore()
	ctrl := newTestController(t, mock, &scriptedStreamer{})
	require.NoError(t, ctrl.Load(context.Background()))

	accepted, err := ctrl.SetMode(context.Background(), "juggling")
	assert.False(t, accepted)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestSetMode_NoOpWhileBusy(t *testing.T) {
	mock := store.NewMockStore()
	gated := newGatedStreamer()
	ctrl := newTestController(t, mock, gated)
	require.NoError(t, ctrl.Load(context.Background()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = ctrl.Send(context.Background(), "hello")
	}()
	<-gated.started

	modeBefore := ctrl.Mode()
	countBefore := len(ctrl.Messages())

	accepted, err := ctrl.SetMode(context.Background(), "venting")
	assert.False(t, accepted)
	assert.NoError(t, err)
	assert.Equal(t, modeBefore, ctrl.Mode(), "mode unchanged")
	assert.Equal(t, countBefore, len(ctrl.Messages()), "message list unchanged")

	close(gated.release)
	<-done
}

func TestClose_CancelsInFlightGenerationAndDiscardsDraft(t *testing.T) {
	mock := store.NewMockStore()
	gated := newGatedStreamer()
	ctrl := NewController("alice", mock, gated, modes.Builtin(), nil, nil)
	require.NoError(t, ctrl.Load(context.Background()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		// The session context is what sign-out cancels.
		_, _ = ctrl.Send(ctrl.Ctx(), "hello")
	}()
	<-gated.started

	ctrl.Close()
	<-done

	assert.False(t, ctrl.Busy(), "busy cleared on the cancellation exit path")
	assert.Nil(t, ctrl.Draft())
	// Nothing was committed for the cancelled generation.
	assert.Equal(t, 0, len(ctrl.Messages()))
}
