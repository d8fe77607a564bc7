// ABOUTME: Store interface and data types for lightspace persistence
// ABOUTME: Defines Message, Role and the Store interface for the durable message log

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested message does not exist
var ErrNotFound = errors.New("not found")

// Role identifies the author side of a message.
type Role string

// Role constants for message authorship
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single entry in an owner's durable conversation log.
// Messages are immutable once persisted except for content replacement
// during edit-and-resubmit.
type Message struct {
	ID        string
	Owner     string
	Role      Role
	Content   string
	Timestamp time.Time
}

// StorageError wraps a transport or backend failure from the persistence
// layer. The store never retries; retry policy belongs to the caller.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// storageErr wraps err as a StorageError for the given operation.
func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// Store is the persistence gateway for the per-owner message log.
//
// All operations fail with a *StorageError on transport/backend failure.
// Within a single session the caller issues these sequentially; no ordering
// guarantee is made between calls from different sessions.
type Store interface {
	// LoadOrdered fetches every message for owner, sorted ascending by
	// timestamp. An empty slice is a valid outcome (new owner), distinct
	// from an error.
	LoadOrdered(ctx context.Context, owner string) ([]*Message, error)

	// Append inserts a message. Idempotent by ID: re-appending the same
	// ID leaves exactly one stored record.
	Append(ctx context.Context, msg *Message) error

	// ReplaceContent updates the content of an existing message in place.
	// ID, role, owner and timestamp are unchanged. Returns ErrNotFound
	// (wrapped) if no message has the given ID.
	ReplaceContent(ctx context.Context, id, content string) error

	// DeleteAfter removes every message for owner whose timestamp is
	// strictly greater than ts. The message at exactly ts is retained.
	DeleteAfter(ctx context.Context, owner string, ts time.Time) error

	// Close releases the underlying resources.
	Close() error
}
