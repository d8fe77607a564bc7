// ABOUTME: Turn event types published while a conversation advances
// ABOUTME: Observers (SSE handlers, TUI, tests) watch these instead of polling session state

package conversation

import (
	"github.com/astronomox/lightspace/internal/session"
	"github.com/astronomox/lightspace/internal/store"
)

// EventType identifies what happened in a conversation turn.
type EventType string

// Turn event types
const (
	// EventUserMessage: a user message entered the log (send path).
	EventUserMessage EventType = "user_message"
	// EventTruncated: an edit rewrote a past message and dropped everything after it.
	EventTruncated EventType = "truncated"
	// EventDraft: the streaming draft grew; Draft carries the cumulative text.
	EventDraft EventType = "draft"
	// EventAssistantMessage: a final assistant message entered the log.
	EventAssistantMessage EventType = "assistant_message"
	// EventModeNotice: the conversation mode changed; Message is the notice.
	EventModeNotice EventType = "mode_notice"
	// EventDone: the generation identified by GenerationID reached a terminal state.
	EventDone EventType = "done"
)

// Event is one observable step of a conversation turn.
type Event struct {
	Type         EventType
	GenerationID string         // set on draft and done events
	Message      *store.Message // set on message-bearing events
	Draft        *session.Draft // set on draft events
	Mode         string         // set on mode_notice events
}
