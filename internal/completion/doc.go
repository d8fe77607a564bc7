// Package completion is the generation boundary: it turns ordered
// conversation history plus a system instruction into a finite stream of
// text fragments.
//
// The stream is lazy, not restartable, and terminates either normally
// (channel close) or with a terminal error chunk. No retry happens here:
// the conversation controller decides what a failed generation means.
//
// OpenAIStreamer is the production implementation, speaking the chat
// completion protocol of any OpenAI-compatible backend. Tests substitute
// their own Streamer.
package completion
