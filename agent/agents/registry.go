// Package agents assembles the backend fleet behind the orchestrator:
// the personalized-data agent for authenticated callers plus one
// statically configured default backend for everything else.
package agents

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shksin/multi-agent-chatbot/agent/contract"
)

// Config picks the default backend. Choosing between the knowledge
// and reasoning agents is a startup decision, never a per-request one.
type Config struct {
	Default string `split_words:"true" default:"reasoning"`
}

type registryImpl struct {
	personal contract.PersonalAgent
	fallback contract.DefaultAgent
}

func (r *registryImpl) Personal() contract.PersonalAgent {
	return r.personal
}

func (r *registryImpl) Default() contract.DefaultAgent {
	return r.fallback
}

// NewRegistry wires the fleet. cfg.Default selects the fallback:
// "reasoning" (or empty) for the remote-reasoning agent, "knowledge"
// or "kbsearch" for the knowledge-search agent.
func NewRegistry(cfg Config, personal contract.PersonalAgent, knowledge, reasoning contract.DefaultAgent) (contract.Registry, error) {
	if personal == nil {
		return nil, errors.New("personal agent is required")
	}

	var fallback contract.DefaultAgent
	switch strings.ToLower(strings.TrimSpace(cfg.Default)) {
	case "", "reasoning":
		fallback = reasoning
	case "knowledge", "kbsearch":
		fallback = knowledge
	default:
		return nil, fmt.Errorf("unknown default agent %q: want reasoning or knowledge", cfg.Default)
	}
	if fallback == nil {
		return nil, fmt.Errorf("default agent %q is not configured", cfg.Default)
	}

	return &registryImpl{personal: personal, fallback: fallback}, nil
}
