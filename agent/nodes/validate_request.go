// Package orchestratornode holds the node functions of the
// orchestration graph: free functions over a shared *GraphState, so
// every step is unit-testable without compiling the graph.
package orchestratornode

import (
	"errors"
	"strings"
	"time"

	"github.com/shksin/multi-agent-chatbot/agent/contract"
)

var ErrInvalidQuery = errors.New("query text is empty")

// GraphInput is the single inbound shape: one user query.
type GraphInput struct {
	Query contract.Query
}

// GraphOutput carries the assembled result out of the graph.
type GraphOutput struct {
	Result contract.OrchestrationResult
}

// GraphState is threaded through the nodes of one orchestration run.
type GraphState struct {
	RequestID string
	Query     contract.Query
	Now       time.Time

	// AgentsCalled lists the backends that contributed a recorded
	// text, real or placeholder, in invocation order. A backend that
	// answered "no match" is not recorded.
	AgentsCalled []contract.AgentName
	PerAgentText map[contract.AgentName]string
	Errors       []contract.BackendError

	// Answers holds real backend texts only, never placeholders; the
	// synthesis step picks the raw answer from here.
	Answers map[contract.AgentName]string

	RawAnswer   string
	SourceAgent contract.AgentName // empty when the apology fallback won
	FinalText   string
}

// ValidateRequest trims the query, stamps the request identity and
// creates the state all later nodes mutate.
func ValidateRequest(in GraphInput, nowFn func() time.Time, newID func() string) (*GraphState, error) {
	text := strings.TrimSpace(in.Query.Text)
	if text == "" {
		return nil, ErrInvalidQuery
	}

	return &GraphState{
		RequestID:    newID(),
		Query:        contract.Query{Text: text, AuthToken: strings.TrimSpace(in.Query.AuthToken)},
		Now:          nowFn().UTC(),
		PerAgentText: map[contract.AgentName]string{},
		Answers:      map[contract.AgentName]string{},
	}, nil
}
