// Package summarizer rewrites a raw backend answer into a short reply
// through an Azure OpenAI chat model. It is strictly best-effort: any
// error here means callers keep the raw answer.
package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/rs/zerolog"

	"github.com/shksin/multi-agent-chatbot/agent/contract"
	"github.com/shksin/multi-agent-chatbot/agent/prompt"
	"github.com/shksin/multi-agent-chatbot/pkg/azureopenai"
	logx "github.com/shksin/multi-agent-chatbot/pkg/logger"
)

var ErrEmptyCompletion = errors.New("summarizer: model returned no text")

type Summarizer struct {
	client       *openaisdk.Client
	cfg          azureopenai.Config
	systemPrompt string
	logger       zerolog.Logger
}

var _ contract.Summarizer = (*Summarizer)(nil)

func New(client *openaisdk.Client, cfg azureopenai.Config) (*Summarizer, error) {
	if client == nil {
		return nil, errors.New("summarizer: openai client is required")
	}
	if strings.TrimSpace(cfg.Deployment) == "" {
		return nil, errors.New("summarizer: deployment is required")
	}
	return &Summarizer{
		client:       client,
		cfg:          cfg,
		systemPrompt: prompt.LoadPromptSet().Summarize,
		logger:       logx.Component("summarizer"),
	}, nil
}

// Summarize rewrites rawText as an answer to query, attributing source.
// The call is bounded by the configured timeout on top of ctx.
func (s *Summarizer) Summarize(ctx context.Context, query, rawText string, source contract.AgentName) (string, error) {
	if strings.TrimSpace(rawText) == "" {
		return "", fmt.Errorf("%w: raw text is required", contract.ErrValidation)
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	payload := map[string]any{
		"question":     query,
		"raw_answer":   rawText,
		"source_agent": string(source),
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal summarize payload: %v", contract.ErrValidation, err)
	}

	params := openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(strings.TrimSpace(s.cfg.Deployment)),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(s.systemPrompt),
			openaisdk.UserMessage(string(input)),
		},
		Temperature: openaisdk.Float(float64(s.cfg.Temperature)),
	}
	if s.cfg.MaxCompletionTokens != nil {
		params.MaxCompletionTokens = openaisdk.Int(int64(*s.cfg.MaxCompletionTokens))
	}

	completion, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("summarize completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}

	s.logger.Debug().
		Str("source_agent", string(source)).
		Int("raw_len", len(rawText)).
		Int("summary_len", len(text)).
		Msg("answer summarized")
	return text, nil
}
