// ABOUTME: SSE turn streaming for POST /api/send and /api/edit
// ABOUTME: Decodes the event stream into typed TurnEvent values on a channel

package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// TurnEventType identifies one event on a turn stream.
type TurnEventType string

// Turn stream event types, mirroring the gateway's SSE surface.
const (
	TurnUserMessage      TurnEventType = "user_message"
	TurnTruncated        TurnEventType = "truncated"
	TurnDraft            TurnEventType = "draft"
	TurnAssistantMessage TurnEventType = "assistant_message"
	TurnModeNotice       TurnEventType = "mode_notice"
	TurnBusy             TurnEventType = "busy"
	TurnError            TurnEventType = "error"
	TurnDone             TurnEventType = "done"
)

// TurnEvent is one decoded event from a send or edit stream.
type TurnEvent struct {
	Type         TurnEventType
	Message      *Message // set on user_message, truncated, assistant_message, mode_notice
	DraftText    string   // cumulative draft text, set on draft
	GenerationID string   // set on draft and done
	Err          string   // set on error and busy
}

// turnPayload is the wire shape of an SSE data line.
type turnPayload struct {
	Message      *Message `json:"message"`
	Text         string   `json:"text"`
	ID           string   `json:"id"`
	GenerationID string   `json:"generation_id"`
	Error        string   `json:"error"`
	Reason       string   `json:"reason"`
	Mode         string   `json:"mode"`
}

// Send submits a new user message and returns a channel of turn events.
// The channel closes when the turn reaches a terminal state or the stream
// ends. Cancel ctx to stop reading; the gateway finishes the turn either
// way.
func (c *Client) Send(ctx context.Context, content string) (<-chan TurnEvent, error) {
	return c.streamTurn(ctx, "/api/send", map[string]string{"content": content})
}

// Edit rewrites a past user message, discards everything after it, and
// returns a channel of events for the regenerated turn.
func (c *Client) Edit(ctx context.Context, messageID, content string) (<-chan TurnEvent, error) {
	return c.streamTurn(ctx, "/api/edit", map[string]string{
		"message_id": messageID,
		"content":    content,
	})
}

func (c *Client) streamTurn(ctx context.Context, path string, body map[string]string) (<-chan TurnEvent, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}

	events := make(chan TurnEvent)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		readSSE(ctx, resp.Body, events)
	}()
	return events, nil
}

// readSSE decodes the SSE body line by line, emitting one TurnEvent per
// complete event block.
func readSSE(ctx context.Context, body io.Reader, events chan<- TurnEvent) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventType string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line terminates an event block
		if line == "" {
			if eventType != "" && len(dataLines) > 0 {
				evt, ok := decodeTurnEvent(eventType, strings.Join(dataLines, "\n"))
				if ok {
					select {
					case events <- evt:
					case <-ctx.Done():
						return
					}
				}
			}
			eventType = ""
			dataLines = nil
			continue
		}

		if strings.HasPrefix(line, "event:") {
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			continue
		}
	}
}

// decodeTurnEvent converts one SSE event into a TurnEvent. Unknown event
// types are dropped.
func decodeTurnEvent(eventType, data string) (TurnEvent, bool) {
	var payload turnPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return TurnEvent{Type: TurnError, Err: "malformed event payload"}, true
	}

	switch TurnEventType(eventType) {
	case TurnUserMessage, TurnTruncated, TurnAssistantMessage, TurnModeNotice:
		return TurnEvent{Type: TurnEventType(eventType), Message: payload.Message}, true
	case TurnDraft:
		return TurnEvent{Type: TurnDraft, DraftText: payload.Text, GenerationID: payload.GenerationID}, true
	case TurnDone:
		return TurnEvent{Type: TurnDone, GenerationID: payload.GenerationID}, true
	case TurnBusy:
		return TurnEvent{Type: TurnBusy, Err: payload.Reason}, true
	case TurnError:
		return TurnEvent{Type: TurnError, Err: payload.Error}, true
	default:
		return TurnEvent{}, false
	}
}
