package orchestratornode

import (
	"fmt"
	"strings"

	"github.com/shksin/multi-agent-chatbot/agent/contract"
)

const partialFailureNotice = "Note: some information could not be retrieved."

// FinalizeResult assembles the OrchestrationResult: the final text gets
// an attribution footer naming the backends that were called and, when
// any of them failed, a generic partial-failure notice. Reaching this
// node means the state machine produced text, so Success is true.
func FinalizeResult(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contract.ErrValidation)
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(in.FinalText))
	if len(in.AgentsCalled) > 0 {
		names := make([]string, len(in.AgentsCalled))
		for i, agent := range in.AgentsCalled {
			names[i] = string(agent)
		}
		fmt.Fprintf(&b, "\n\nAnswered by: %s.", strings.Join(names, ", "))
	}
	if len(in.Errors) > 0 {
		b.WriteString("\n" + partialFailureNotice)
	}

	return GraphOutput{Result: contract.OrchestrationResult{
		ID:           in.RequestID,
		Query:        in.Query.Text,
		Timestamp:    in.Now,
		AgentsCalled: in.AgentsCalled,
		PerAgentText: in.PerAgentText,
		Errors:       in.Errors,
		FinalText:    b.String(),
		Success:      true,
	}}, nil
}
