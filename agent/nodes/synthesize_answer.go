package orchestratornode

import (
	"fmt"

	"github.com/shksin/multi-agent-chatbot/agent/contract"
)

// apologyText is the last resort when no backend produced a real
// answer.
const apologyText = "I'm sorry, I could not find an answer to your question right now. Please try again later."

// SynthesizeAnswer picks the raw answer: the first real backend text in
// invocation order, which gives the personalized-data agent priority
// over the default backend. With no real text at all the apology wins
// and no source backend is set.
func SynthesizeAnswer(in *GraphState) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contract.ErrValidation)
	}

	for _, agent := range in.AgentsCalled {
		if text, ok := in.Answers[agent]; ok {
			in.RawAnswer = text
			in.SourceAgent = agent
			return in, nil
		}
	}

	in.RawAnswer = apologyText
	in.SourceAgent = ""
	return in, nil
}
