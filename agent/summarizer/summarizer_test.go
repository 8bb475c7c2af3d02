package summarizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shksin/multi-agent-chatbot/agent/contract"
	"github.com/shksin/multi-agent-chatbot/pkg/azureopenai"
)

func intPtr(v int) *int { return &v }

func newTestSummarizer(t *testing.T, handler http.Handler) *Summarizer {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := azureopenai.Config{
		Endpoint:            server.URL,
		APIKey:              "test-key",
		APIVersion:          "2024-10-21",
		Deployment:          "gpt-4o",
		MaxCompletionTokens: intPtr(400),
		Temperature:         0.2,
		Timeout:             5 * time.Second,
	}
	client, err := azureopenai.NewClient(cfg)
	require.NoError(t, err)

	s, err := New(client, cfg)
	require.NoError(t, err)
	return s
}

func completionBody(content string) string {
	raw, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
	})
	return string(raw)
}

func TestSummarizeSendsPromptAndPayload(t *testing.T) {
	t.Parallel()

	var gotBody struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	s := newTestSummarizer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(completionBody("Your balance is $100.")))
	}))

	out, err := s.Summarize(context.Background(), "what is my balance", "balance is $100", contract.AgentNameUser)
	require.NoError(t, err)
	assert.Equal(t, "Your balance is $100.", out)

	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, "system", gotBody.Messages[0].Role)
	assert.Contains(t, gotBody.Messages[0].Content, "response editor")
	assert.Equal(t, "user", gotBody.Messages[1].Role)
	assert.Contains(t, gotBody.Messages[1].Content, "balance is $100")
	assert.Contains(t, gotBody.Messages[1].Content, "User Agent")
}

func TestSummarizeEmptyCompletionIsError(t *testing.T) {
	t.Parallel()

	s := newTestSummarizer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completionBody("   ")))
	}))

	_, err := s.Summarize(context.Background(), "q", "raw", contract.AgentNameKnowledge)
	require.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestSummarizeRemoteFailurePropagates(t *testing.T) {
	t.Parallel()

	s := newTestSummarizer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"deployment overloaded"}}`, http.StatusInternalServerError)
	}))

	_, err := s.Summarize(context.Background(), "q", "raw", contract.AgentNameKnowledge)
	require.Error(t, err)
}

func TestSummarizeRejectsEmptyRawText(t *testing.T) {
	t.Parallel()

	s := newTestSummarizer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty raw text")
	}))

	_, err := s.Summarize(context.Background(), "q", "   ", contract.AgentNameKnowledge)
	require.ErrorIs(t, err, contract.ErrValidation)
}

func TestNewValidatesInputs(t *testing.T) {
	t.Parallel()

	_, err := New(nil, azureopenai.Config{Deployment: "gpt-4o"})
	require.Error(t, err)

	client, err := azureopenai.NewClient(azureopenai.Config{
		Endpoint: "https://aoai.example.com", APIKey: "k", APIVersion: "2024-10-21",
	})
	require.NoError(t, err)
	_, err = New(client, azureopenai.Config{Deployment: "  "})
	require.Error(t, err)
}
