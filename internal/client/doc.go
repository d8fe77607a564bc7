// ABOUTME: Package documentation for the gateway API client
// ABOUTME: Describes the JSON and SSE client surface

// Package client is a typed HTTP client for the lightspace gateway.
//
// Plain endpoints (history, mode, signout) return decoded structs. Send
// and Edit speak the gateway's SSE turn protocol and deliver events on a
// channel: the echoed user message (or truncation marker), the growing
// draft, the final assistant message, and a terminal done event. A busy
// session surfaces as a TurnBusy event rather than an error.
package client
