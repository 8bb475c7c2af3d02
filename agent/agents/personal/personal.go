// Package personal adapts the personalized-data endpoint to the backend
// contract. It answers from the caller's own records, so every request
// carries the caller's auth token, and "nothing here matches your
// question" is a routing outcome, not an error.
package personal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shksin/multi-agent-chatbot/agent/contract"
	logx "github.com/shksin/multi-agent-chatbot/pkg/logger"
)

// sentinelNoMatch is the legacy wire value older deployments of the
// user-data endpoint return instead of a {matched:false} envelope. It
// must never leak past this adapter.
const sentinelNoMatch = "USER_AGENT_NO_MATCH"

const maxResponseSizeBytes = 1 << 20

var ErrMissingToken = errors.New("personal agent: auth token is required")

type Config struct {
	Endpoint string        `split_words:"true" required:"true"`
	Timeout  time.Duration `split_words:"true" default:"15s"`
}

// Option customizes an Agent.
type Option func(*Agent)

func WithHTTPClient(hc *http.Client) Option {
	return func(a *Agent) {
		if hc != nil {
			a.httpClient = hc
		}
	}
}

type Agent struct {
	endpoint   string
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ contract.PersonalAgent = (*Agent)(nil)

func New(cfg Config, opts ...Option) (*Agent, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("personal agent endpoint is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid personal agent endpoint: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	agent := &Agent{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logx.Component("personal-agent"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(agent)
		}
	}
	return agent, nil
}

type queryEnvelope struct {
	Matched bool   `json:"matched"`
	Answer  string `json:"answer"`
}

// Query asks the user-data endpoint whether it can answer text for the
// caller identified by authToken. A no-match outcome is reported as
// PersonalAnswer{Matched: false} with a nil error.
func (a *Agent) Query(ctx context.Context, text, authToken string) (contract.PersonalAnswer, error) {
	var none contract.PersonalAnswer

	if strings.TrimSpace(text) == "" {
		return none, fmt.Errorf("%w: query text is required", contract.ErrValidation)
	}
	if strings.TrimSpace(authToken) == "" {
		return none, ErrMissingToken
	}

	payload, err := json.Marshal(struct {
		Query string `json:"query"`
	}{Query: text})
	if err != nil {
		return none, fmt.Errorf("marshal personal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/query", bytes.NewReader(payload))
	if err != nil {
		return none, fmt.Errorf("build personal request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+authToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return none, fmt.Errorf("execute personal request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return none, fmt.Errorf("read personal response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return none, fmt.Errorf("personal agent status=%d body=%s", resp.StatusCode, string(raw))
	}

	answer := decodeAnswer(raw)
	a.logger.Debug().Bool("matched", answer.Matched).Msg("personal query answered")
	return answer, nil
}

// decodeAnswer accepts both the structured {matched, answer} envelope
// and the legacy plain-text body whose only no-match signal is the
// sentinel string.
func decodeAnswer(raw []byte) contract.PersonalAnswer {
	var envelope queryEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil {
		text := strings.TrimSpace(envelope.Answer)
		if !envelope.Matched || text == sentinelNoMatch {
			return contract.PersonalAnswer{}
		}
		return contract.PersonalAnswer{Text: text, Matched: true}
	}

	text := strings.TrimSpace(string(raw))
	if unquoted, err := unquoteJSONString(text); err == nil {
		text = strings.TrimSpace(unquoted)
	}
	if text == "" || text == sentinelNoMatch {
		return contract.PersonalAnswer{}
	}
	return contract.PersonalAnswer{Text: text, Matched: true}
}

func unquoteJSONString(s string) (string, error) {
	if !strings.HasPrefix(s, `"`) {
		return "", errors.New("not a json string")
	}
	var out string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return "", err
	}
	return out, nil
}
