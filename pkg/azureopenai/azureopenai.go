// Package azureopenai builds OpenAI SDK clients pointed at an Azure
// OpenAI resource.
package azureopenai

import (
	"errors"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
)

var ErrMissingCredentials = errors.New("azureopenai: endpoint and api key are required")

type Config struct {
	Endpoint            string        `split_words:"true" required:"true"`
	APIKey              string        `envconfig:"API_KEY" required:"true"`
	APIVersion          string        `envconfig:"API_VERSION" default:"2024-10-21"`
	Deployment          string        `split_words:"true" required:"true"`
	MaxCompletionTokens *int          `split_words:"true" default:"400"`
	Temperature         float32       `split_words:"true" default:"0.2"`
	Timeout             time.Duration `split_words:"true" default:"10s"`
}

// NewClient creates an OpenAI SDK client configured for the Azure
// endpoint. Chat calls should pass the deployment name as the model.
func NewClient(cfg Config) (*openaisdk.Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	key := strings.TrimSpace(cfg.APIKey)
	if endpoint == "" || key == "" {
		return nil, ErrMissingCredentials
	}

	opts := []option.RequestOption{
		azure.WithEndpoint(endpoint, strings.TrimSpace(cfg.APIVersion)),
		azure.WithAPIKey(key),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	client := openaisdk.NewClient(opts...)
	return &client, nil
}
