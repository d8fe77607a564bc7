// ABOUTME: In-memory mock implementation of the Store interface for testing
// ABOUTME: Supports per-operation failure injection and call recording

package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store for tests. Operations can be made to
// fail by setting the corresponding error field.
type MockStore struct {
	mu       sync.Mutex
	messages map[string]*Message // keyed by ID

	// Failure injection: when non-nil the operation fails with a
	// StorageError wrapping the given error.
	LoadErr    error
	AppendErr  error
	ReplaceErr error
	DeleteErr  error

	// Calls records operation names in invocation order.
	Calls []string
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{messages: make(map[string]*Message)}
}

func (m *MockStore) record(op string) {
	m.Calls = append(m.Calls, op)
}

// LoadOrdered returns owner's messages ascending by timestamp.
func (m *MockStore) LoadOrdered(_ context.Context, owner string) ([]*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("load")
	if m.LoadErr != nil {
		return nil, storageErr("load", m.LoadErr)
	}

	var out []*Message
	for _, msg := range m.messages {
		if msg.Owner == owner {
			cp := *msg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Append stores a copy of msg, ignoring duplicate IDs.
func (m *MockStore) Append(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("append")
	if m.AppendErr != nil {
		return storageErr("append", m.AppendErr)
	}
	if _, exists := m.messages[msg.ID]; exists {
		return nil
	}
	cp := *msg
	m.messages[msg.ID] = &cp
	return nil
}

// ReplaceContent updates the stored content for id.
func (m *MockStore) ReplaceContent(_ context.Context, id, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("replace")
	if m.ReplaceErr != nil {
		return storageErr("replace", m.ReplaceErr)
	}
	msg, ok := m.messages[id]
	if !ok {
		return storageErr("replace", ErrNotFound)
	}
	msg.Content = content
	return nil
}

// DeleteAfter removes owner's messages strictly newer than ts.
func (m *MockStore) DeleteAfter(_ context.Context, owner string, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("delete_after")
	if m.DeleteErr != nil {
		return storageErr("delete_after", m.DeleteErr)
	}
	for id, msg := range m.messages {
		if msg.Owner == owner && msg.Timestamp.After(ts) {
			delete(m.messages, id)
		}
	}
	return nil
}

// Close is a no-op.
func (m *MockStore) Close() error { return nil }

// Count returns the number of stored messages (all owners).
func (m *MockStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// Get returns the stored message with the given ID, or nil.
func (m *MockStore) Get(id string) *Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil
	}
	cp := *msg
	return &cp
}

// IsStorageError reports whether err is (or wraps) a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
