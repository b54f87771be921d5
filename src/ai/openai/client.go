package openai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/stake-plus/netstate-gov/src/ai/core"
	"github.com/stake-plus/netstate-gov/src/webclient"
)

const defaultEndpoint = "https://api.openai.com/v1/chat/completions"

func init() {
	core.RegisterProvider("openai", newClient, "gpt")
}

type client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	defaults   core.Options
}

func newClient(cfg core.FactoryConfig) (core.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key not configured")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	temp := cfg.Temperature
	if temp == 0 {
		temp = 0.2
	}
	return &client{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		httpClient: webclient.NewDefault(cfg.Timeout),
		defaults: core.Options{
			Model:       core.ResolveModelName("openai", cfg.Model),
			Temperature: temp,
			MaxTokens:   cfg.MaxTokens,
		},
	}, nil
}

func (c *client) Respond(ctx context.Context, input string, opts core.Options) (string, error) {
	merged := c.defaults.Merge(opts)

	messages := make([]map[string]string, 0, 2)
	if merged.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": merged.SystemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": input})

	reqBody := map[string]interface{}{
		"model":       merged.Model,
		"messages":    messages,
		"temperature": merged.Temperature,
	}
	if merged.MaxTokens > 0 {
		reqBody["max_completion_tokens"] = merged.MaxTokens
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if err := core.PostJSON(ctx, c.httpClient, c.endpoint, headers, reqBody, &result); err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no response from openai")
	}
	return result.Choices[0].Message.Content, nil
}
