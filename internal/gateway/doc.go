// ABOUTME: Package documentation for the gateway orchestrator
// ABOUTME: Describes the HTTP surface and component wiring

// Package gateway wires the lightspace components together and exposes
// them over HTTP.
//
// A Gateway owns the durable message store, the per-owner session
// manager, the mode catalog, and the event broadcaster. The API surface
// is small: /api/send and /api/edit run a conversation turn and stream
// its events (user echo, growing draft, final assistant message) as
// Server-Sent Events; /api/mode, /api/modes, /api/history, and
// /api/signout are plain JSON. All /api/ routes require a bearer token
// whose subject names the owner.
//
// Turns run on the session context rather than the request context, so a
// client that disconnects mid-stream does not abort a generation already
// underway; the reply is still committed and visible on the next
// /api/history read.
package gateway
