package contract

import "time"

// AgentName identifies a backend agent in results, footers and logs.
type AgentName string

const (
	AgentNameUser      AgentName = "User Agent"
	AgentNameKnowledge AgentName = "Knowledge Agent"
	AgentNameReasoning AgentName = "Reasoning Agent"

	// AgentNameOrchestrator attributes failures of the orchestration
	// itself, as opposed to failures of one backend.
	AgentNameOrchestrator AgentName = "Orchestrator"
)

// Query is one inbound user request. Immutable for the duration of the
// orchestration.
type Query struct {
	Text      string `json:"text"`
	AuthToken string `json:"auth_token,omitempty"`
}

// Authenticated reports whether the query carries a caller token.
func (q Query) Authenticated() bool {
	return q.AuthToken != ""
}

// PersonalAnswer is the tagged outcome of the personalized-data agent.
// Matched=false means the backend had nothing to contribute for this
// query; that is routing information, not an error.
type PersonalAnswer struct {
	Text    string
	Matched bool
}

// BackendError records one guarded backend failure. The orchestration
// keeps going; the error is reported alongside the degraded answer.
type BackendError struct {
	Agent  AgentName `json:"agent"`
	Detail string    `json:"detail"`
}

// OrchestrationResult is the aggregate outcome of one query. It is
// created fresh per request and fully owned by the caller afterwards.
type OrchestrationResult struct {
	ID           string               `json:"id"`
	Query        string               `json:"query"`
	Timestamp    time.Time            `json:"timestamp"`
	AgentsCalled []AgentName          `json:"agents_called"`
	PerAgentText map[AgentName]string `json:"per_agent_text,omitempty"`
	Errors       []BackendError       `json:"errors,omitempty"`
	FinalText    string               `json:"final_text"`
	Success      bool                 `json:"success"`
}
