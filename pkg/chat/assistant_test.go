package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/customer-data-platform/pkg/config"
)

type recorded struct {
	path   string
	key    string
	prompt string
}

func newTestServer(t *testing.T, status int, reply interface{}) (*httptest.Server, *recorded, *int32) {
	t.Helper()
	rec := &recorded{}
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		rec.path = r.URL.Path
		rec.key = r.URL.Query().Get("key")

		var body generateRequest
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) &&
			assert.Len(t, body.Contents, 1) && assert.Len(t, body.Contents[0].Parts, 1) {
			rec.prompt = body.Contents[0].Parts[0].Text
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(srv.Close)
	return srv, rec, &calls
}

func newTestAssistant(t *testing.T, baseURL, contextFile string) *Assistant {
	t.Helper()
	a, err := NewAssistant(&config.ChatConfig{
		APIKey:      "test-key",
		Model:       "gemini-1.5-flash",
		ContextFile: contextFile,
		BaseURL:     baseURL,
	}, zap.NewNop(), http.DefaultClient)
	require.NoError(t, err)
	return a
}

func textReply(text string) map[string]interface{} {
	return map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{
				"content": map[string]interface{}{
					"role":  "model",
					"parts": []interface{}{map[string]interface{}{"text": text}},
				},
			},
		},
	}
}

func TestNewAssistantRequiresKey(t *testing.T) {
	_, err := NewAssistant(&config.ChatConfig{}, zap.NewNop(), nil)
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = NewAssistant(nil, zap.NewNop(), nil)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("Total clients: 42", "How many clients?")
	assert.Equal(t,
		"Here is important data extracted from various graphs:\nTotal clients: 42\n\nBased on this information, answer the following question:\nHow many clients?",
		prompt)
}

func TestAskSendsPromptWithContext(t *testing.T) {
	srv, rec, _ := newTestServer(t, http.StatusOK, textReply("There are 42 clients."))

	path := filepath.Join(t.TempDir(), "training.txt")
	require.NoError(t, os.WriteFile(path, []byte("Total clients: 42"), 0o600))
	a := newTestAssistant(t, srv.URL, path)

	reply, err := a.Ask(context.Background(), "", "How many clients?")
	require.NoError(t, err)

	assert.Equal(t, "There are 42 clients.", reply.Text)
	assert.NotEmpty(t, reply.SessionID)
	assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent", rec.path)
	assert.Equal(t, "test-key", rec.key)
	assert.Equal(t, BuildPrompt("Total clients: 42", "How many clients?"), rec.prompt)
}

func TestAskWithoutContextFile(t *testing.T) {
	srv, rec, _ := newTestServer(t, http.StatusOK, textReply("ok"))
	a := newTestAssistant(t, srv.URL, filepath.Join(t.TempDir(), "missing.txt"))

	_, err := a.Ask(context.Background(), "", "hi")
	require.NoError(t, err)
	assert.Equal(t, BuildPrompt(NoContextData, "hi"), rec.prompt)
}

func TestAskFallsBackOnEmptyReply(t *testing.T) {
	srv, _, _ := newTestServer(t, http.StatusOK, map[string]interface{}{"candidates": []interface{}{}})
	a := newTestAssistant(t, srv.URL, "")

	reply, err := a.Ask(context.Background(), "s1", "hi")
	require.NoError(t, err)
	assert.Equal(t, FallbackReply, reply.Text)
}

func TestAskKeepsHistoryPerSession(t *testing.T) {
	srv, _, calls := newTestServer(t, http.StatusOK, textReply("hello"))
	a := newTestAssistant(t, srv.URL, "")

	first, err := a.Ask(context.Background(), "", "hi")
	require.NoError(t, err)
	_, err = a.Ask(context.Background(), first.SessionID, "again")
	require.NoError(t, err)
	_, err = a.Ask(context.Background(), "other", "hi")
	require.NoError(t, err)

	history := a.History(first.SessionID)
	require.Len(t, history, 4)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "hi", history[0].Text)
	assert.Equal(t, "assistant", history[1].Role)
	assert.Equal(t, "again", history[2].Text)

	assert.Len(t, a.History("other"), 2)
	assert.Nil(t, a.History("unknown"))
	assert.EqualValues(t, 3, atomic.LoadInt32(calls))
}

func TestAskRejectsEmptyMessage(t *testing.T) {
	srv, _, calls := newTestServer(t, http.StatusOK, textReply("unused"))
	a := newTestAssistant(t, srv.URL, "")

	_, err := a.Ask(context.Background(), "", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Zero(t, atomic.LoadInt32(calls))
}

func TestAskSurfacesAPIErrors(t *testing.T) {
	srv, _, _ := newTestServer(t, http.StatusBadRequest, map[string]interface{}{
		"error": map[string]interface{}{"code": 400, "message": "API key not valid", "status": "INVALID_ARGUMENT"},
	})
	a := newTestAssistant(t, srv.URL, "")

	_, err := a.Ask(context.Background(), "", "hi")
	require.Error(t, err)

	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Err.Code)
	assert.Contains(t, err.Error(), "API key not valid")
}

func TestFailedAskLeavesHistoryUntouched(t *testing.T) {
	srv, _, calls := newTestServer(t, http.StatusOK, textReply("hello"))
	a := newTestAssistant(t, srv.URL, "")

	first, err := a.Ask(context.Background(), "s1", "hi")
	require.NoError(t, err)
	require.Len(t, a.History(first.SessionID), 2)

	failing, _, _ := newTestServer(t, http.StatusInternalServerError, map[string]interface{}{
		"error": map[string]interface{}{"code": 500, "message": "backend error", "status": "INTERNAL"},
	})
	broken := newTestAssistant(t, failing.URL, "")
	_, err = broken.Ask(context.Background(), "s1", "hi")
	require.Error(t, err)
	assert.Empty(t, broken.History("s1"))

	a.client = broken.client
	_, err = a.Ask(context.Background(), "s1", "again")
	require.Error(t, err)

	history := a.History("s1")
	require.Len(t, history, 2)
	assert.Equal(t, "hi", history[0].Text)
	assert.Equal(t, "assistant", history[1].Role)
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}
