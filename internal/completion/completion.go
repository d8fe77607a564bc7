// ABOUTME: Completion client boundary: streamed text generation over conversation history
// ABOUTME: Defines the Streamer interface, history turns, and the fragment chunk type

package completion

import (
	"context"
)

// Role identifies who authored a history turn at the generation boundary.
// The backend vocabulary is user/model, not user/assistant; callers map
// their own roles before crossing this boundary.
type Role string

// History roles
const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one entry of the conversation history handed to the backend.
type Turn struct {
	Role Role
	Text string
}

// Chunk is one element of the fragment stream. A Chunk either carries a
// text fragment or a terminal error, never both. After an error chunk the
// channel is closed; the stream is not restartable.
type Chunk struct {
	Text string
	Err  error
}

// Streamer opens a token-streamed generation request against a
// text-generation backend.
//
// The returned channel yields text fragments as they arrive and is closed
// when generation completes. A backend or connection failure is delivered
// as a final Chunk with Err set, then the channel closes. The Streamer
// makes no retry decision itself; retry policy belongs to the caller.
type Streamer interface {
	StreamCompletion(ctx context.Context, history []Turn, systemInstruction string) (<-chan Chunk, error)
}
