// ABOUTME: Tests for the in-memory MockStore
// ABOUTME: Verifies it honors the same contract the SQLite store is tested against

package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMockStore_ContractParity(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	msg := testMessage("m1", "alice", RoleUser, "hi", base)
	if err := m.Append(ctx, msg); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := m.Append(ctx, msg); err != nil {
		t.Fatalf("duplicate Append failed: %v", err)
	}
	if m.Count() != 1 {
		t.Errorf("append not idempotent: %d records", m.Count())
	}

	if err := m.Append(ctx, testMessage("m2", "alice", RoleAssistant, "yo", base.Add(time.Second))); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := m.DeleteAfter(ctx, "alice", base); err != nil {
		t.Fatalf("DeleteAfter failed: %v", err)
	}

	messages, err := m.LoadOrdered(ctx, "alice")
	if err != nil {
		t.Fatalf("LoadOrdered failed: %v", err)
	}
	if len(messages) != 1 || messages[0].ID != "m1" {
		t.Errorf("boundary-exclusive delete broken: %+v", messages)
	}
}

func TestMockStore_FailureInjection(t *testing.T) {
	m := NewMockStore()
	m.ReplaceErr = errors.New("backend down")

	err := m.ReplaceContent(context.Background(), "any", "text")
	if err == nil {
		t.Fatal("expected injected failure")
	}
	if !IsStorageError(err) {
		t.Errorf("expected StorageError, got %T", err)
	}
}
