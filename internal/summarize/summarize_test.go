package summarize

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metcalfc/folio/internal/selection"
)

const completion = `{"id":"x","object":"chat.completion","created":0,"model":"m",` +
	`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  a summary  "}}]}`

func testSelection() *selection.TextSelection {
	return &selection.TextSelection{
		ID:   "selection-1",
		Text: "worldsecond linethird",
		Nodes: []selection.SelectionNode{
			{PageNumber: 1, Node: 3, Text: "world"},
			{PageNumber: 1, Node: 5, Text: "second line"},
			{PageNumber: 2, Node: 9, Text: "third"},
		},
	}
}

// server answers chat completions with the given statuses in turn, then
// succeeds.
func server(t *testing.T, statuses ...int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		if int(n) <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_, _ = w.Write([]byte(completion))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newClient(t *testing.T, url string, retries int) *OpenAI {
	t.Helper()
	c, err := NewOpenAI(OpenAIConfig{
		APIKey:     "test-key",
		Model:      "test-model",
		BaseURL:    url,
		MaxRetries: retries,
		RetryDelay: time.Millisecond,
	}, nil)
	require.NoError(t, err)
	return c
}

func TestSummarizeSuccess(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &payload))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completion))
	}))
	defer srv.Close()

	got, err := newClient(t, srv.URL, 0).Summarize(context.Background(), testSelection())
	require.NoError(t, err)
	assert.Equal(t, "a summary", got)

	assert.Equal(t, "test-model", payload["model"])
	messages, ok := payload["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	user := messages[1].(map[string]any)
	assert.Equal(t, "user", user["role"])
	assert.Equal(t, Prompt(testSelection()), user["content"])
}

func TestSummarizeRetries(t *testing.T) {
	srv, calls := server(t, http.StatusInternalServerError, http.StatusTooManyRequests)

	got, err := newClient(t, srv.URL, 2).Summarize(context.Background(), testSelection())
	require.NoError(t, err)
	assert.Equal(t, "a summary", got)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestSummarizeRetriesExhausted(t *testing.T) {
	srv, calls := server(t, 503, 503, 503)

	_, err := newClient(t, srv.URL, 1).Summarize(context.Background(), testSelection())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Contains(t, err.Error(), "selection-1")
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestSummarizeClientErrorNotRetried(t *testing.T) {
	srv, calls := server(t, http.StatusBadRequest)

	_, err := newClient(t, srv.URL, 3).Summarize(context.Background(), testSelection())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestSummarizeNoChoices(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":0,"model":"m","choices":[]}`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL, 3).Summarize(context.Background(), testSelection())
	assert.ErrorIs(t, err, ErrNoChoices)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSummarizeInputErrors(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{}, nil)
	assert.ErrorIs(t, err, ErrNoAPIKey)

	c := newClient(t, "http://127.0.0.1:0", 0)
	_, err = c.Summarize(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmpty)
	_, err = c.Summarize(context.Background(), &selection.TextSelection{ID: "selection-1", Text: "  "})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestSummarizeCanceled(t *testing.T) {
	srv, calls := server(t, 500, 500, 500, 500)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newClient(t, srv.URL, 3).Summarize(ctx, testSelection())
	require.Error(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(calls), int32(1))
}

func TestPrompt(t *testing.T) {
	assert.Equal(t, "[page 1]\nworld\nsecond line\n\n[page 2]\nthird", Prompt(testSelection()))
	assert.Equal(t, "raw", Prompt(&selection.TextSelection{Text: "raw"}))
}

func TestFunc(t *testing.T) {
	var s Summarizer = Func(func(ctx context.Context, sel *selection.TextSelection) (string, error) {
		return "got " + sel.ID, nil
	})
	got, err := s.Summarize(context.Background(), testSelection())
	require.NoError(t, err)
	assert.Equal(t, "got selection-1", got)
}
