// ABOUTME: Controller orchestrates send, edit-and-resubmit, and mode switches for one session
// ABOUTME: Enforces single-flight generation, the truncation protocol, and durable-before-memory edits

package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/astronomox/lightspace/internal/completion"
	"github.com/astronomox/lightspace/internal/modes"
	"github.com/astronomox/lightspace/internal/session"
	"github.com/astronomox/lightspace/internal/store"
)

// Phase is the controller's position in its per-session state machine.
type Phase string

// Controller phases
const (
	PhaseIdle        Phase = "idle"
	PhaseSending     Phase = "sending"
	PhaseStreaming   Phase = "streaming"
	PhaseReconciling Phase = "reconciling"
)

// bootstrapContent seeds brand-new sessions. The message is local UI sugar:
// it is never persisted and never sent as generation history.
const bootstrapContent = "Welcome to Lightspace. I'm here to listen. What's on your mind today?"

// fallbackContent is persisted as the assistant turn when generation fails,
// so the conversation always progresses to a terminated turn.
const fallbackContent = "I am having trouble connecting right now. Please try again in a moment."

// ValidationError rejects an operation synchronously with no state change
// and no side effect.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// Controller drives one owner's conversation. It owns the session state
// exclusively for the duration of any mutating operation and issues
// persistence-gateway calls sequentially.
//
// Send and EditAndResubmit are silent no-ops (accepted=false, nil error)
// while a generation or reconciliation is outstanding: not queued, not
// errored.
type Controller struct {
	state    *session.State
	store    store.Store
	streamer completion.Streamer
	catalog  *modes.Catalog
	events   *EventBroadcaster
	logger   *slog.Logger

	// opMu serializes logical operations. TryLock failure is the
	// single-flight guard's no-op path.
	opMu sync.Mutex

	phaseMu sync.RWMutex
	phase   Phase

	// ctx spans the session's lifetime. Close cancels it, which aborts an
	// in-flight generation: the draft is discarded and nothing persisted.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewController creates a controller for owner starting in the catalog's
// default mode. Pass nil logger for default.
func NewController(owner string, st store.Store, streamer completion.Streamer, catalog *modes.Catalog, events *EventBroadcaster, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		state:    session.New(owner, catalog.Default()),
		store:    st,
		streamer: streamer,
		catalog:  catalog,
		events:   events,
		logger:   logger.With("component", "conversation", "owner", owner),
		phase:    PhaseIdle,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Ctx returns the session-lifetime context. Generation and persistence run
// under it, so a caller disconnecting mid-stream does not abort the turn;
// only Close does.
func (c *Controller) Ctx() context.Context {
	return c.ctx
}

// Owner returns the owner identifier this controller serves.
func (c *Controller) Owner() string {
	return c.state.Owner()
}

// Mode returns the active conversation mode id.
func (c *Controller) Mode() string {
	return c.state.Mode()
}

// Busy reports whether a generation is outstanding.
func (c *Controller) Busy() bool {
	return c.state.Busy()
}

// Phase returns the controller's current state-machine phase.
func (c *Controller) Phase() Phase {
	c.phaseMu.RLock()
	defer c.phaseMu.RUnlock()
	return c.phase
}

// Messages returns a snapshot of the in-memory message log.
func (c *Controller) Messages() []*store.Message {
	return c.state.Messages()
}

// Draft returns the current streaming draft, or nil.
func (c *Controller) Draft() *session.Draft {
	return c.state.Draft()
}

// Close cancels any in-flight generation and drops all in-memory state.
// Durable storage is untouched.
func (c *Controller) Close() {
	c.cancel()
	c.state.Clear()
	c.setPhase(PhaseIdle)
}

func (c *Controller) setPhase(p Phase) {
	c.phaseMu.Lock()
	prev := c.phase
	c.phase = p
	c.phaseMu.Unlock()
	if prev != p {
		c.logger.Debug("phase transition", "from", string(prev), "to", string(p))
	}
}

// Load bootstraps the session from durable storage. An empty result seeds
// the reserved bootstrap message so the UI has something to render; the
// bootstrap message itself is never persisted. A storage failure also falls
// back to the bootstrap seed: the in-memory view stays usable and
// authoritative while storage is unreachable.
func (c *Controller) Load(ctx context.Context) error {
	msgs, err := c.store.LoadOrdered(ctx, c.state.Owner())
	if err != nil {
		c.logger.Warn("loading message history failed, seeding welcome", "error", err)
		msgs = nil
	}

	if len(msgs) == 0 {
		c.state.Reset(nil)
		seed := &store.Message{
			ID:        session.BootstrapID,
			Owner:     c.state.Owner(),
			Role:      store.RoleAssistant,
			Content:   bootstrapContent,
			Timestamp: time.Now().UTC(),
		}
		if err := c.state.Append(seed); err != nil {
			return fmt.Errorf("seeding bootstrap message: %w", err)
		}
		c.logger.Debug("seeded empty session with welcome message")
		return nil
	}

	c.state.Reset(msgs)
	c.logger.Debug("session loaded", "messages", len(msgs))
	return nil
}

// Send appends a user message and streams an assistant reply for it.
// Returns accepted=false without error when a generation is already in
// flight. Empty (after trimming) content is a *ValidationError.
//
// The call blocks until the generation reaches a terminal state; observers
// watch the draft grow through the event broadcaster.
func (c *Controller) Send(ctx context.Context, content string) (accepted bool, err error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return false, &ValidationError{Reason: "empty content"}
	}

	if !c.opMu.TryLock() {
		c.logger.Debug("send ignored, generation in flight")
		return false, nil
	}
	defer c.opMu.Unlock()

	c.setPhase(PhaseSending)
	defer c.setPhase(PhaseIdle)

	msg := &store.Message{
		ID:        uuid.New().String(),
		Owner:     c.state.Owner(),
		Role:      store.RoleUser,
		Content:   trimmed,
		Timestamp: c.state.NextTimestamp(),
	}
	if err := c.state.Append(msg); err != nil {
		return false, fmt.Errorf("appending user message: %w", err)
	}
	c.persistBestEffort(ctx, msg)
	c.publish(&Event{Type: EventUserMessage, Message: msg})

	c.streamReply(ctx)
	return true, nil
}

// EditAndResubmit replaces the content of a past message, permanently
// discards everything after it, and regenerates the assistant reply.
//
// Durable storage is reconciled before memory: ReplaceContent and
// DeleteAfter run first, so a crash between steps leaves storage ahead of
// or equal to memory, never behind. A StorageError on either step aborts
// the whole operation with both memory and storage at the pre-edit state.
func (c *Controller) EditAndResubmit(ctx context.Context, id, newContent string) (accepted bool, err error) {
	trimmed := strings.TrimSpace(newContent)
	if trimmed == "" {
		return false, &ValidationError{Reason: "empty content"}
	}

	if !c.opMu.TryLock() {
		c.logger.Debug("edit ignored, generation in flight")
		return false, nil
	}
	defer c.opMu.Unlock()

	target, err := c.state.Get(id)
	if err != nil {
		return false, &ValidationError{Reason: "unknown message id"}
	}

	c.setPhase(PhaseReconciling)
	defer c.setPhase(PhaseIdle)

	if err := c.store.ReplaceContent(ctx, id, trimmed); err != nil {
		c.logger.Error("edit aborted, content replacement failed", "message_id", id, "error", err)
		return false, fmt.Errorf("replacing message content: %w", err)
	}
	if err := c.store.DeleteAfter(ctx, c.state.Owner(), target.Timestamp); err != nil {
		c.logger.Error("edit aborted, truncation failed", "message_id", id, "error", err)
		return false, fmt.Errorf("deleting messages after edit point: %w", err)
	}

	// Storage is reconciled; now memory.
	if err := c.state.TruncateAfter(id); err != nil {
		return false, fmt.Errorf("truncating session: %w", err)
	}
	if err := c.state.ReplaceContent(id, trimmed); err != nil {
		return false, fmt.Errorf("rewriting session message: %w", err)
	}

	edited, _ := c.state.Get(id)
	c.publish(&Event{Type: EventTruncated, Message: edited})
	c.logger.Info("message edited, history truncated", "message_id", id)

	c.streamReply(ctx)
	return true, nil
}

// SetMode switches the conversation mode and announces the switch with a
// persisted assistant notice. A no-op while a generation is in flight, and
// when mode equals the active mode. Unknown modes are a *ValidationError.
func (c *Controller) SetMode(ctx context.Context, mode string) (accepted bool, err error) {
	m, err := c.catalog.Get(mode)
	if err != nil {
		return false, &ValidationError{Reason: "unknown mode: " + mode}
	}

	if !c.opMu.TryLock() {
		c.logger.Debug("mode switch ignored, generation in flight")
		return false, nil
	}
	defer c.opMu.Unlock()

	if c.state.Mode() == mode {
		return true, nil
	}
	c.state.SetMode(mode)

	notice := &store.Message{
		ID:        uuid.New().String(),
		Owner:     c.state.Owner(),
		Role:      store.RoleAssistant,
		Content:   fmt.Sprintf("Ok, I've switched to %s mode. How can I help you in this area?", m.Label),
		Timestamp: c.state.NextTimestamp(),
	}
	if err := c.state.Append(notice); err != nil {
		return false, fmt.Errorf("appending mode notice: %w", err)
	}
	c.persistBestEffort(ctx, notice)
	c.publish(&Event{Type: EventModeNotice, Message: notice, Mode: mode})
	c.logger.Info("conversation mode switched", "mode", mode)
	return true, nil
}

// streamReply runs the streaming protocol: open a completion stream over
// the session history, grow the draft fragment by fragment, and commit
// exactly one terminal assistant message — the accumulated content on
// success or the fixed fallback on failure. Cancellation (session closed)
// discards the draft and persists nothing.
//
// Callers must hold opMu.
func (c *Controller) streamReply(ctx context.Context) {
	c.setPhase(PhaseStreaming)
	c.state.SetBusy(true)
	defer func() {
		c.state.SetDraft(nil)
		c.state.SetBusy(false)
	}()

	genID := uuid.New().String()
	mode, err := c.catalog.Get(c.state.Mode())
	if err != nil {
		// Mode is validated on every switch; fall back to the default
		// rather than failing the turn.
		mode, _ = c.catalog.Get(c.catalog.Default())
	}

	stream, err := c.streamer.StreamCompletion(ctx, c.history(), mode.SystemInstruction)
	if err != nil {
		c.logger.Warn("opening completion stream failed", "generation_id", genID, "error", err)
		c.commitReply(ctx, genID, fallbackContent)
		return
	}

	var acc strings.Builder
	for chunk := range stream {
		if chunk.Err != nil {
			if ctx.Err() != nil {
				c.logger.Info("generation cancelled, draft discarded", "generation_id", genID)
				return
			}
			c.logger.Warn("generation failed, committing fallback",
				"generation_id", genID,
				"partial_len", acc.Len(),
				"error", chunk.Err)
			c.commitReply(ctx, genID, fallbackContent)
			return
		}
		acc.WriteString(chunk.Text)
		draft := &session.Draft{
			ID:      genID,
			Owner:   c.state.Owner(),
			Content: acc.String(),
		}
		c.state.SetDraft(draft)
		c.publish(&Event{Type: EventDraft, GenerationID: genID, Draft: draft})
	}

	if ctx.Err() != nil {
		c.logger.Info("generation cancelled, draft discarded", "generation_id", genID)
		return
	}
	c.commitReply(ctx, genID, acc.String())
}

// commitReply appends and persists the single terminal assistant message
// for a generation, reusing the generation id as the message id.
func (c *Controller) commitReply(ctx context.Context, genID, content string) {
	msg := &store.Message{
		ID:        genID,
		Owner:     c.state.Owner(),
		Role:      store.RoleAssistant,
		Content:   content,
		Timestamp: c.state.NextTimestamp(),
	}
	if err := c.state.Append(msg); err != nil {
		c.logger.Error("appending assistant message", "generation_id", genID, "error", err)
		return
	}
	c.persistBestEffort(ctx, msg)
	c.state.SetDraft(nil)
	c.publish(&Event{Type: EventAssistantMessage, Message: msg})
	c.publish(&Event{Type: EventDone, GenerationID: genID})
}

// history builds the generation history from the session log, excluding
// the bootstrap sentinel and mapping assistant turns to the backend's
// model role.
func (c *Controller) history() []completion.Turn {
	msgs := c.state.Messages()
	turns := make([]completion.Turn, 0, len(msgs))
	for _, msg := range msgs {
		if msg.ID == session.BootstrapID {
			continue
		}
		role := completion.RoleUser
		if msg.Role == store.RoleAssistant {
			role = completion.RoleModel
		}
		turns = append(turns, completion.Turn{Role: role, Text: msg.Content})
	}
	return turns
}

// persistBestEffort appends msg to durable storage. Failures are logged,
// not surfaced: the in-memory log remains authoritative for the session's
// remaining lifetime, storage may lag.
func (c *Controller) persistBestEffort(ctx context.Context, msg *store.Message) {
	if err := c.store.Append(ctx, msg); err != nil {
		c.logger.Warn("message persistence failed, in-memory log stays authoritative",
			"message_id", msg.ID,
			"error", err)
	}
}

func (c *Controller) publish(event *Event) {
	if c.events == nil {
		return
	}
	c.events.Publish(c.state.Owner(), event)
}
