// Package conversation orchestrates the session engine.
//
// # Overview
//
// The package reconciles three sources of truth that change at different
// speeds: the in-memory session log (what the consumer sees), the
// incrementally-growing streamed draft, and the durable store behind
// network I/O. The user never sees duplicate, out-of-order, or orphaned
// messages, and only one generation is in flight per session.
//
// # Controller
//
// The Controller runs one owner's session as a small state machine
// (idle, sending, streaming, reconciling):
//
//   - Send(ctx, content): append a user message, then stream a reply
//   - EditAndResubmit(ctx, id, content): rewrite a past user message,
//     truncate everything after it (storage first, memory second), then
//     stream a fresh reply
//   - SetMode(ctx, mode): switch the conversation mode and announce it
//   - Load(ctx): bootstrap from storage, seeding the welcome sentinel for
//     empty logs
//
// While busy, Send/EditAndResubmit/SetMode are silent no-ops: not queued,
// not errored.
//
// # Streaming protocol
//
// A generation gets one stable id, minted at stream start and reused as
// the final message id. Fragments grow the transient draft; on normal
// termination the accumulated content is committed, on failure a fixed
// fallback notice is committed instead. Exactly one of the two is ever
// persisted for a generation id — never both, never neither. Cancellation
// (session closed on sign-out) discards the draft and commits nothing.
//
// # Persistence policy
//
// Appends on the send and mode-switch paths are fire-and-forget: a storage
// failure is logged and the in-memory log stays authoritative. The edit
// path is the opposite: durable ReplaceContent and DeleteAfter must both
// succeed before memory is touched, so storage never trails memory across
// a truncation.
//
// # Events
//
// The EventBroadcaster fans controller events (user message, draft growth,
// final message, mode notice, done) out to subscribers per owner, which is
// how the HTTP layer streams turns without polling session state.
//
// # Manager
//
// The Manager maps owner identifiers to Controllers: first sight
// bootstraps a session, sign-out clears memory (never storage) and cancels
// any outstanding generation.
package conversation
