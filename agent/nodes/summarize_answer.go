package orchestratornode

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shksin/multi-agent-chatbot/agent/contract"
)

// SummarizeAnswer rewrites the raw answer for the user. Strictly
// best-effort: with no summarizer, with the apology fallback, on any
// summarizer error or on an empty rewrite the raw answer stands. The
// call is bounded by timeout so a slow summarizer cannot stall the
// request.
func SummarizeAnswer(ctx context.Context, in *GraphState, summarizer contract.Summarizer, timeout time.Duration, logger zerolog.Logger) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contract.ErrValidation)
	}

	in.FinalText = in.RawAnswer
	if summarizer == nil || in.SourceAgent == "" {
		return in, nil
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	rewritten, err := summarizer.Summarize(ctx, in.Query.Text, in.RawAnswer, in.SourceAgent)
	if err != nil {
		logger.Warn().Err(err).Str("request_id", in.RequestID).Msg("summarization failed, keeping the raw answer")
		return in, nil
	}
	if strings.TrimSpace(rewritten) == "" {
		logger.Warn().Str("request_id", in.RequestID).Msg("summarizer returned empty text, keeping the raw answer")
		return in, nil
	}

	in.FinalText = rewritten
	return in, nil
}
