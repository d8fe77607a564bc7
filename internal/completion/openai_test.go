// ABOUTME: Tests for the OpenAI-compatible streamer
// ABOUTME: Uses an httptest backend speaking the SSE chat-completion protocol

package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend returns an httptest server that captures the request body and
// streams the given fragments as SSE deltas.
func fakeBackend(t *testing.T, fragments []string, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, frag := range fragments {
			delta, _ := json.Marshal(frag)
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%s}}]}\n\n", delta)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestStreamCompletion_DeliversFragmentsInOrder(t *testing.T) {
	srv := fakeBackend(t, []string{"Let's", " try", " grounding."}, nil)
	defer srv.Close()

	s := NewOpenAIStreamer("test-key", "test-model", srv.URL+"/v1")
	ch, err := s.StreamCompletion(context.Background(), []Turn{
		{Role: RoleUser, Text: "I feel anxious"},
	}, "be kind")
	require.NoError(t, err)

	var got []string
	for chunk := range ch {
		require.NoError(t, chunk.Err)
		got = append(got, chunk.Text)
	}
	assert.Equal(t, []string{"Let's", " try", " grounding."}, got)
}

func TestStreamCompletion_MapsRolesAndSystemInstruction(t *testing.T) {
	var body map[string]any
	srv := fakeBackend(t, []string{"ok"}, &body)
	defer srv.Close()

	s := NewOpenAIStreamer("test-key", "test-model", srv.URL+"/v1")
	ch, err := s.StreamCompletion(context.Background(), []Turn{
		{Role: RoleUser, Text: "hello"},
		{Role: RoleModel, Text: "hi there"},
	}, "system text")
	require.NoError(t, err)
	for range ch {
	}

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 3)

	first := msgs[0].(map[string]any)
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, "system text", first["content"])

	second := msgs[1].(map[string]any)
	assert.Equal(t, "user", second["role"])

	// The backend vocabulary has no "model" role: it crosses as assistant.
	third := msgs[2].(map[string]any)
	assert.Equal(t, "assistant", third["role"])
	assert.Equal(t, "hi there", third["content"])
}

func TestStreamCompletion_OpenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewOpenAIStreamer("test-key", "test-model", srv.URL+"/v1")
	_, err := s.StreamCompletion(context.Background(), []Turn{{Role: RoleUser, Text: "hi"}}, "")
	assert.Error(t, err)
}
