// ABOUTME: Streamer implementation over an OpenAI-compatible chat completion API
// ABOUTME: Wraps sashabaranov/go-openai streaming with fragment-channel delivery

package completion

import (
	"context"
	"errors"
	"io"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

// chunkBufferSize is the channel buffer for fragment delivery. Generation
// is slower than consumption in practice; the buffer only absorbs bursts.
const chunkBufferSize = 16

// OpenAIStreamer streams completions from any OpenAI-compatible backend.
type OpenAIStreamer struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIStreamer creates a streamer for the given API key and model.
// baseURL overrides the API endpoint when non-empty (for compatible
// backends and test servers).
func NewOpenAIStreamer(apiKey, model, baseURL string) *OpenAIStreamer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIStreamer{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: slog.Default().With("component", "completion"),
	}
}

// StreamCompletion opens a streamed chat completion over history with the
// given system instruction. Fragments arrive on the returned channel; a
// mid-stream failure is delivered as a terminal error chunk.
func (s *OpenAIStreamer) StreamCompletion(ctx context.Context, history []Turn, systemInstruction string) (<-chan Chunk, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if systemInstruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemInstruction,
		})
	}
	for _, turn := range history {
		role := openai.ChatMessageRoleUser
		if turn.Role == RoleModel {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Text,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:    s.model,
		Messages: messages,
		Stream:   true,
	}

	stream, err := s.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}

	ch := make(chan Chunk, chunkBufferSize)
	go func() {
		defer close(ch)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				s.logger.Warn("completion stream failed", "error", err)
				select {
				case ch <- Chunk{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case ch <- Chunk{Text: delta}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}
