// Package kbsearch adapts a hosted search index to the backend
// contract: the query text is posted as a full-text search and the top
// hits are formatted into a plain-text answer. An empty result set is a
// real answer ("nothing found"), never an error.
package kbsearch

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

const (
	maxResponseSizeBytes = 2 << 20
	maxSnippetRunes      = 280
)

// NoResultsText is returned when the index has nothing for the query.
const NoResultsText = "I could not find anything in the knowledge base for your question."

type Config struct {
	Endpoint   string        `split_words:"true" required:"true"`
	APIKey     string        `envconfig:"API_KEY" required:"true"`
	Index      string        `split_words:"true" required:"true"`
	APIVersion string        `envconfig:"API_VERSION" default:"2023-11-01"`
	Top        int           `split_words:"true" default:"3"`
	Timeout    time.Duration `split_words:"true" default:"15s"`
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
	searchURL  string
	apiKey     string
	top        int
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ contract.DefaultAgent = (*Agent)(nil)

func New(cfg Config, opts ...Option) (*Agent, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("search endpoint is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("search api key is required")
	}
	index := strings.TrimSpace(cfg.Index)
	if index == "" {
		return nil, errors.New("search index name is required")
	}

	top := cfg.Top
	if top <= 0 {
		top = 3
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	query := url.Values{}
	if version := strings.TrimSpace(cfg.APIVersion); version != "" {
		query.Set("api-version", version)
	}
	searchURL := endpoint + "/indexes/" + url.PathEscape(index) + "/docs/search"
	if encoded := query.Encode(); encoded != "" {
		searchURL += "?" + encoded
	}

	agent := &Agent{
		searchURL:  searchURL,
		apiKey:     apiKey,
		top:        top,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logx.Component("kbsearch-agent"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(agent)
		}
	}
	return agent, nil
}

func (a *Agent) Name() contract.AgentName {
	return contract.AgentNameKnowledge
}

type searchHit struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type searchResponse struct {
	Value []searchHit `json:"value"`
}

// Query runs a full-text search and formats the top hits.
func (a *Agent) Query(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: query text is required", contract.ErrValidation)
	}

	payload, err := json.Marshal(struct {
		Search string `json:"search"`
		Top    int    `json:"top"`
	}{Search: text, Top: a.top})
	if err != nil {
		return "", fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.searchURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("api-key", a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute search request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return "", fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("search status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}

	a.logger.Debug().Int("hits", len(parsed.Value)).Msg("knowledge base searched")
	return formatHits(parsed.Value), nil
}

func formatHits(hits []searchHit) string {
	var lines []string
	for _, hit := range hits {
		title := strings.TrimSpace(hit.Title)
		snippet := snippetOf(hit.Content)
		switch {
		case title == "" && snippet == "":
			continue
		case title == "":
			lines = append(lines, fmt.Sprintf("%d. %s", len(lines)+1, snippet))
		case snippet == "":
			lines = append(lines, fmt.Sprintf("%d. %s", len(lines)+1, title))
		default:
			lines = append(lines, fmt.Sprintf("%d. %s — %s", len(lines)+1, title, snippet))
		}
	}
	if len(lines) == 0 {
		return NoResultsText
	}
	return "Here is what I found in the knowledge base:\n" + strings.Join(lines, "\n")
}

func snippetOf(content string) string {
	snippet := strings.Join(strings.Fields(content), " ")
	runes := []rune(snippet)
	if len(runes) <= maxSnippetRunes {
		return snippet
	}
	return strings.TrimSpace(string(runes[:maxSnippetRunes])) + "…"
}
