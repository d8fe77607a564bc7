// Package session holds the authoritative in-memory view of one owner's
// conversation.
//
// # State
//
// A State bundles three things that change at different speeds:
//
//   - the ordered message log (authoritative for the session's lifetime)
//   - the transient streaming Draft (exists only while a generation runs)
//   - the busy flag (at most one outstanding generation)
//
// # Invariants
//
//   - messages are always sorted ascending by timestamp
//   - no two messages share an id
//   - busy is cleared on every generation exit path
//   - the Draft is never part of the log; it is discarded, never saved
//
// The State is a pure container: it validates its own invariants but makes
// no storage or network calls. The conversation package is its only writer;
// readers get copied snapshots and can never alias internal state.
package session
