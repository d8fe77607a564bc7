// ABOUTME: HTTP API handlers for the conversation engine
// ABOUTME: Send and edit stream turn events via SSE; mode, history, and signout are plain JSON

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/astronomox/lightspace/internal/auth"
	"github.com/astronomox/lightspace/internal/conversation"
	"github.com/astronomox/lightspace/internal/store"
)

// SendRequest is the JSON request body for POST /api/send.
type SendRequest struct {
	Content string `json:"content"`
}

// EditRequest is the JSON request body for POST /api/edit.
type EditRequest struct {
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
}

// ModeRequest is the JSON request body for POST /api/mode.
type ModeRequest struct {
	Mode string `json:"mode"`
}

// ModeResponse is the JSON response for POST /api/mode.
type ModeResponse struct {
	Mode   string `json:"mode"`
	Notice string `json:"notice,omitempty"`
}

// ModeInfo describes one entry of GET /api/modes.
type ModeInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// MessageResponse is the JSON shape of a single conversation message.
type MessageResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// HistoryResponse is the JSON response for GET /api/history.
type HistoryResponse struct {
	Owner    string            `json:"owner"`
	Mode     string            `json:"mode"`
	Busy     bool              `json:"busy"`
	Messages []MessageResponse `json:"messages"`
}

// SSEEvent is one server-sent event on the send/edit streams.
type SSEEvent struct {
	Event string
	Data  interface{}
}

// messageJSON converts a store message to its API shape.
func messageJSON(msg *store.Message) MessageResponse {
	return MessageResponse{
		ID:        msg.ID,
		Role:      string(msg.Role),
		Content:   msg.Content,
		Timestamp: msg.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// ownerFromRequest extracts the authenticated owner set by the auth
// middleware.
func ownerFromRequest(r *http.Request) (string, bool) {
	return auth.OwnerFromContext(r.Context())
}

// handleSend handles POST /api/send. It appends the user message to the
// owner's session and streams the turn (user echo, growing draft, final
// assistant message) as SSE events.
func (g *Gateway) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req SendRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Content == "" {
		g.sendJSONError(w, http.StatusBadRequest, "content is required")
		return
	}

	g.streamTurn(w, r, func(ctrl *conversation.Controller) (bool, error) {
		return ctrl.Send(ctrl.Ctx(), req.Content)
	})
}

// handleEdit handles POST /api/edit. It rewrites a past user message,
// truncates everything after it, and streams the regenerated turn as SSE.
func (g *Gateway) handleEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req EditRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.MessageID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "message_id is required")
		return
	}
	if req.Content == "" {
		g.sendJSONError(w, http.StatusBadRequest, "content is required")
		return
	}

	g.streamTurn(w, r, func(ctrl *conversation.Controller) (bool, error) {
		return ctrl.EditAndResubmit(ctrl.Ctx(), req.MessageID, req.Content)
	})
}

// turnResult carries the controller's synchronous verdict for a turn.
type turnResult struct {
	accepted bool
	err      error
}

// streamTurn subscribes to the owner's event stream, runs the turn in a
// goroutine, and relays events as SSE until the turn settles. The turn
// runs on the session context, not the request context, so a dropped
// client does not abort a generation already underway.
func (g *Gateway) streamTurn(w http.ResponseWriter, r *http.Request, run func(*conversation.Controller) (bool, error)) {
	owner, ok := ownerFromRequest(r)
	if !ok {
		g.sendJSONError(w, http.StatusUnauthorized, "missing owner")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctrl, err := g.sessions.Session(r.Context(), owner)
	if err != nil {
		g.logger.Error("failed to open session", "owner", owner, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	events, subID := g.broadcaster.Subscribe(r.Context(), owner)
	defer g.broadcaster.Unsubscribe(owner, subID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher.Flush()

	resultCh := make(chan turnResult, 1)
	go func() {
		accepted, err := run(ctrl)
		resultCh <- turnResult{accepted: accepted, err: err}
	}()

	settled := false
	done := false
	for {
		select {
		case <-r.Context().Done():
			return

		case res := <-resultCh:
			if res.err != nil {
				g.writeSSEEvent(w, "error", map[string]string{"error": res.err.Error()})
				flusher.Flush()
				return
			}
			if !res.accepted {
				g.writeSSEEvent(w, "busy", map[string]string{"reason": "a reply is already in flight"})
				flusher.Flush()
				return
			}
			settled = true
			if done {
				return
			}

		case evt, ok := <-events:
			if !ok {
				return
			}
			sse := eventToSSE(evt)
			g.writeSSEEvent(w, sse.Event, sse.Data)
			flusher.Flush()
			if evt.Type == conversation.EventDone {
				done = true
				if settled {
					return
				}
			}
		}
	}
}

// eventToSSE converts a conversation event to its SSE representation.
func eventToSSE(evt *conversation.Event) SSEEvent {
	switch evt.Type {
	case conversation.EventUserMessage:
		return SSEEvent{Event: "user_message", Data: map[string]interface{}{"message": messageJSON(evt.Message)}}
	case conversation.EventTruncated:
		return SSEEvent{Event: "truncated", Data: map[string]interface{}{"message": messageJSON(evt.Message)}}
	case conversation.EventDraft:
		return SSEEvent{Event: "draft", Data: map[string]string{
			"generation_id": evt.GenerationID,
			"id":            evt.Draft.ID,
			"text":          evt.Draft.Content,
		}}
	case conversation.EventAssistantMessage:
		return SSEEvent{Event: "assistant_message", Data: map[string]interface{}{"message": messageJSON(evt.Message)}}
	case conversation.EventModeNotice:
		return SSEEvent{Event: "mode_notice", Data: map[string]interface{}{
			"mode":    evt.Mode,
			"message": messageJSON(evt.Message),
		}}
	case conversation.EventDone:
		return SSEEvent{Event: "done", Data: map[string]string{"generation_id": evt.GenerationID}}
	default:
		return SSEEvent{Event: "unknown", Data: map[string]string{"type": string(evt.Type)}}
	}
}

// handleMode handles POST /api/mode. Switching to a new mode appends a
// notice to the conversation; switching to the active mode is a quiet
// success. A busy session rejects the switch with 409.
func (g *Gateway) handleMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	owner, ok := ownerFromRequest(r)
	if !ok {
		g.sendJSONError(w, http.StatusUnauthorized, "missing owner")
		return
	}

	var req ModeRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Mode == "" {
		g.sendJSONError(w, http.StatusBadRequest, "mode is required")
		return
	}

	ctrl, err := g.sessions.Session(r.Context(), owner)
	if err != nil {
		g.logger.Error("failed to open session", "owner", owner, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	prevMode := ctrl.Mode()
	accepted, err := ctrl.SetMode(r.Context(), req.Mode)
	var verr *conversation.ValidationError
	if errors.As(err, &verr) {
		g.sendJSONError(w, http.StatusBadRequest, verr.Reason)
		return
	}
	if err != nil {
		g.logger.Error("failed to switch mode", "owner", owner, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !accepted {
		g.sendJSONError(w, http.StatusConflict, "a reply is already in flight")
		return
	}

	response := ModeResponse{Mode: ctrl.Mode()}
	if ctrl.Mode() != prevMode {
		if msgs := ctrl.Messages(); len(msgs) > 0 {
			response.Notice = msgs[len(msgs)-1].Content
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

// handleListModes handles GET /api/modes.
func (g *Gateway) handleListModes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	list := g.catalog.List()
	response := make([]ModeInfo, len(list))
	for i, m := range list {
		response[i] = ModeInfo{ID: m.ID, Label: m.Label}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

// handleHistory handles GET /api/history. It returns the owner's full
// ordered conversation, bootstrapping the session on first sight.
func (g *Gateway) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	owner, ok := ownerFromRequest(r)
	if !ok {
		g.sendJSONError(w, http.StatusUnauthorized, "missing owner")
		return
	}

	ctrl, err := g.sessions.Session(r.Context(), owner)
	if err != nil {
		g.logger.Error("failed to open session", "owner", owner, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	msgs := ctrl.Messages()
	response := HistoryResponse{
		Owner:    owner,
		Mode:     ctrl.Mode(),
		Busy:     ctrl.Busy(),
		Messages: make([]MessageResponse, len(msgs)),
	}
	for i, msg := range msgs {
		response.Messages[i] = messageJSON(msg)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

// handleSignOut handles POST /api/signout. The in-memory session is
// dropped and any in-flight generation cancelled; durable history stays.
func (g *Gateway) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	owner, ok := ownerFromRequest(r)
	if !ok {
		g.sendJSONError(w, http.StatusUnauthorized, "missing owner")
		return
	}

	g.sessions.SignOut(owner)
	w.WriteHeader(http.StatusNoContent)
}

// writeSSEEvent writes a single SSE event to the response writer.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, event string, data interface{}) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body, normalizing decode failures to
// a client-facing error.
func decodeJSON(r io.Reader, v interface{}) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}
