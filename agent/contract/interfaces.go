package contract

import "context"

// PersonalAgent answers from the caller's own data and therefore needs
// the caller's auth token.
type PersonalAgent interface {
	Query(ctx context.Context, text, authToken string) (PersonalAnswer, error)
}

// DefaultAgent is the statically configured fallback backend: either
// the knowledge-search agent or the remote-reasoning agent, chosen at
// startup, never per request.
type DefaultAgent interface {
	Name() AgentName
	Query(ctx context.Context, text string) (string, error)
}

// Registry exposes the configured backends to the orchestrator.
type Registry interface {
	Personal() PersonalAgent
	Default() DefaultAgent
}

// Summarizer rewrites a raw answer for the user. It is strictly
// best-effort: callers fall back to the raw text on any error.
type Summarizer interface {
	Summarize(ctx context.Context, query, rawText string, source AgentName) (string, error)
}
