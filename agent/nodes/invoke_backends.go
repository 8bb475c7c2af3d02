package orchestratornode

import (
	"context"
	"fmt"

	"github.com/shksin/multi-agent-chatbot/agent/contract"
)

// InvokeBackends walks the fallback chain. An authenticated query goes
// to the personalized-data agent first; a match ends the chain there.
// A no-match or a failure falls through to the configured default
// backend. Every call is guarded: a failure is recorded with a
// backend-specific placeholder text and the chain keeps going, unless
// ctx itself is dead, which aborts the remaining chain.
func InvokeBackends(ctx context.Context, in *GraphState, backends contract.Registry) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contract.ErrValidation)
	}

	if in.Query.Authenticated() {
		answer, err := backends.Personal().Query(ctx, in.Query.Text, in.Query.AuthToken)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			recordFailure(in, contract.AgentNameUser, err)
		case answer.Matched:
			recordAnswer(in, contract.AgentNameUser, answer.Text)
			return in, nil
		}
		// No match: routing information, not an answer and not an
		// error. The agent is not recorded as called.
	}

	fallback := backends.Default()
	answer, err := fallback.Query(ctx, in.Query.Text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		recordFailure(in, fallback.Name(), err)
		return in, nil
	}
	recordAnswer(in, fallback.Name(), answer)
	return in, nil
}

func recordAnswer(in *GraphState, agent contract.AgentName, text string) {
	in.AgentsCalled = append(in.AgentsCalled, agent)
	in.PerAgentText[agent] = text
	in.Answers[agent] = text
}

func recordFailure(in *GraphState, agent contract.AgentName, err error) {
	in.AgentsCalled = append(in.AgentsCalled, agent)
	in.PerAgentText[agent] = placeholderText(agent)
	in.Errors = append(in.Errors, contract.BackendError{Agent: agent, Detail: err.Error()})
}

// placeholderText stands in for a failed backend's answer so every
// called backend has text in the per-agent view.
func placeholderText(agent contract.AgentName) string {
	switch agent {
	case contract.AgentNameUser:
		return "Your personal data could not be checked right now."
	case contract.AgentNameKnowledge:
		return "The knowledge base could not be searched right now."
	case contract.AgentNameReasoning:
		return "The reasoning service could not be reached right now."
	default:
		return "This agent could not be reached right now."
	}
}
