// Package modes holds the closed catalog of conversation modes.
//
// A mode is a {id, label, system instruction} tuple. The active mode
// conditions generation by selecting which system instruction accompanies
// the conversation history; it never alters the message log itself.
//
// The catalog is supplied by configuration (config.Modes) or falls back to
// the five built-in therapy modes: general, venting, problem-solving,
// gratitude, anxiety. It is immutable after construction.
package modes
