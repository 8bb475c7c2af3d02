package personal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAgent(t *testing.T, handler http.Handler) *Agent {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	agent, err := New(Config{Endpoint: server.URL}, WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return agent
}

func TestQuerySendsTokenAndText(t *testing.T) {
	t.Parallel()

	var gotAuth, gotPath string
	var gotBody map[string]string
	agent := newTestAgent(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		defer r.Body.Close()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(queryEnvelope{Matched: true, Answer: "balance is $100"})
	}))

	answer, err := agent.Query(context.Background(), "what is my balance", "token-123")
	require.NoError(t, err)
	assert.True(t, answer.Matched)
	assert.Equal(t, "balance is $100", answer.Text)
	assert.Equal(t, "Bearer token-123", gotAuth)
	assert.Equal(t, "/query", gotPath)
	assert.Equal(t, map[string]string{"query": "what is my balance"}, gotBody)
}

func TestQueryNoMatchEnvelope(t *testing.T) {
	t.Parallel()

	agent := newTestAgent(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(queryEnvelope{Matched: false})
	}))

	answer, err := agent.Query(context.Background(), "weather tomorrow", "token-123")
	require.NoError(t, err)
	assert.False(t, answer.Matched)
	assert.Empty(t, answer.Text)
}

func TestQueryLegacySentinelBody(t *testing.T) {
	t.Parallel()

	bodies := map[string]string{
		"plain":       sentinelNoMatch,
		"json string": `"` + sentinelNoMatch + `"`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			agent := newTestAgent(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))

			answer, err := agent.Query(context.Background(), "weather tomorrow", "token-123")
			require.NoError(t, err)
			assert.False(t, answer.Matched, "sentinel must map to no-match, not an answer")
		})
	}
}

func TestQueryLegacyPlainAnswer(t *testing.T) {
	t.Parallel()

	agent := newTestAgent(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("your next payment is due on March 3"))
	}))

	answer, err := agent.Query(context.Background(), "when is my payment due", "token-123")
	require.NoError(t, err)
	assert.True(t, answer.Matched)
	assert.Equal(t, "your next payment is due on March 3", answer.Text)
}

func TestQueryRemoteFailure(t *testing.T) {
	t.Parallel()

	agent := newTestAgent(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))

	_, err := agent.Query(context.Background(), "what is my balance", "token-123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=502")
}

func TestQueryRequiresToken(t *testing.T) {
	t.Parallel()

	agent := newTestAgent(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected without a token")
	}))

	_, err := agent.Query(context.Background(), "what is my balance", "  ")
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestNewValidatesEndpoint(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Endpoint: "   "})
	require.Error(t, err)

	_, err = New(Config{Endpoint: "not a url"})
	require.Error(t, err)
}
