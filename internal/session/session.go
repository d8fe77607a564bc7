// ABOUTME: In-memory session state: the ordered message log, streaming draft, and busy flag
// ABOUTME: Pure state container; all orchestration lives in the conversation package

package session

import (
	"errors"
	"sync"
	"time"

	"github.com/astronomox/lightspace/internal/store"
)

// BootstrapID is the reserved id of the synthetic welcome message seeded
// into brand-new sessions. It is never persisted and never included in
// completion history.
const BootstrapID = "init1"

// ErrUnknownMessage is returned when an operation references a message id
// that is not in the session.
var ErrUnknownMessage = errors.New("unknown message id")

// ErrDuplicateID is returned when appending a message whose id is already
// in the session.
var ErrDuplicateID = errors.New("duplicate message id")

// Draft is the transient, not-yet-durable partial assistant reply shown
// while generation is in progress. It is never part of the durable log.
type Draft struct {
	ID      string
	Owner   string
	Content string
}

// State is one owner's in-memory session: the ordered message log plus the
// transient streaming draft, the active mode, and the single-flight busy
// flag.
//
// The sequence is always sorted ascending by timestamp and no two entries
// share an id. There is exactly one writer (the conversation controller);
// readers observe consistent snapshots between operations.
type State struct {
	mu       sync.RWMutex
	owner    string
	mode     string
	messages []*store.Message
	draft    *Draft
	busy     bool
}

// New creates an empty session state for the given owner and mode.
func New(owner, mode string) *State {
	return &State{owner: owner, mode: mode}
}

// Owner returns the owner identifier this session belongs to.
func (s *State) Owner() string {
	return s.owner
}

// Mode returns the active conversation mode id.
func (s *State) Mode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetMode records the active conversation mode id.
func (s *State) SetMode(mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
}

// Busy reports whether a generation is outstanding.
func (s *State) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

// SetBusy sets the single-flight generation flag. It must be cleared on
// every exit path of a generation: success, failure, or cancellation.
func (s *State) SetBusy(busy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = busy
}

// Draft returns the current streaming draft, or nil.
func (s *State) Draft() *Draft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.draft == nil {
		return nil
	}
	cp := *s.draft
	return &cp
}

// SetDraft publishes the streaming draft. Pass nil to discard it.
func (s *State) SetDraft(d *Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d == nil {
		s.draft = nil
		return
	}
	cp := *d
	s.draft = &cp
}

// Messages returns a snapshot of the ordered message log.
func (s *State) Messages() []*store.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*store.Message, len(s.messages))
	for i, msg := range s.messages {
		cp := *msg
		out[i] = &cp
	}
	return out
}

// Len returns the number of messages in the session.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Get returns the message with the given id, or ErrUnknownMessage.
func (s *State) Get(id string) (*store.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, msg := range s.messages {
		if msg.ID == id {
			cp := *msg
			return &cp, nil
		}
	}
	return nil, ErrUnknownMessage
}

// Append inserts a message at its timestamp-sorted position. With the
// controller's monotonic timestamps this is an append at the tail, but the
// sorted invariant is kept regardless of what the caller hands in.
func (s *State) Append(msg *store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == msg.ID {
			return ErrDuplicateID
		}
	}
	cp := *msg
	i := len(s.messages)
	for i > 0 && s.messages[i-1].Timestamp.After(cp.Timestamp) {
		i--
	}
	s.messages = append(s.messages, nil)
	copy(s.messages[i+1:], s.messages[i:])
	s.messages[i] = &cp
	return nil
}

// ReplaceAt swaps the message at index for msg, keeping the slot's position.
// The replacement must not break the sorted/unique-id invariants; it is used
// for in-place content rewrites where id and timestamp are unchanged.
func (s *State) ReplaceAt(index int, msg *store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.messages) {
		return ErrUnknownMessage
	}
	cp := *msg
	s.messages[index] = &cp
	return nil
}

// ReplaceContent rewrites the content of the message with the given id,
// leaving id, role, owner and timestamp untouched.
func (s *State) ReplaceContent(id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.messages {
		if msg.ID == id {
			msg.Content = content
			return nil
		}
	}
	return ErrUnknownMessage
}

// TruncateAfter drops every message whose timestamp is strictly greater
// than the timestamp of the message with the given id. The message with id
// itself is retained.
func (s *State) TruncateAfter(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, msg := range s.messages {
		if msg.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrUnknownMessage
	}
	cut := s.messages[idx].Timestamp
	kept := s.messages[:0]
	for _, msg := range s.messages {
		if !msg.Timestamp.After(cut) {
			kept = append(kept, msg)
		}
	}
	// Release dropped tail pointers
	for i := len(kept); i < len(s.messages); i++ {
		s.messages[i] = nil
	}
	s.messages = kept
	return nil
}

// Reset replaces the whole log with msgs (sorted by the caller, typically
// straight from store.LoadOrdered). Draft and busy flag are untouched.
func (s *State) Reset(msgs []*store.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = make([]*store.Message, len(msgs))
	for i, msg := range msgs {
		cp := *msg
		s.messages[i] = &cp
	}
}

// Clear drops all in-memory state. Durable storage is untouched.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.draft = nil
	s.busy = false
}

// NextTimestamp returns a strictly increasing UTC instant for the next
// message. Clock ties with the newest message are broken by nudging one
// millisecond past it, so DeleteAfter's strictly-greater-than boundary
// never sees two messages sharing a timestamp.
func (s *State) NextTimestamp() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now().UTC()
	if n := len(s.messages); n > 0 {
		last := s.messages[n-1].Timestamp
		if !now.After(last) {
			return last.Add(time.Millisecond)
		}
	}
	return now
}
