package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/stake-plus/netstate-gov/src/ai/core"
	"github.com/stake-plus/netstate-gov/src/webclient"
)

const defaultEndpoint = "https://api.anthropic.com/v1/messages"

func init() {
	core.RegisterProvider("anthropic", newClient, "claude")
}

type client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	defaults   core.Options
}

func newClient(cfg core.FactoryConfig) (core.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key not configured")
	}

	return &client{
		apiKey:     cfg.APIKey,
		endpoint:   valueOrDefault(cfg.Endpoint, defaultEndpoint),
		httpClient: webclient.NewDefault(cfg.Timeout),
		defaults: core.Options{
			Model:       core.ResolveModelName("anthropic", cfg.Model),
			Temperature: orFloat(cfg.Temperature, 0.2),
			MaxTokens:   orInt(cfg.MaxTokens, 1000),
		},
	}, nil
}

func (c *client) Respond(ctx context.Context, input string, opts core.Options) (string, error) {
	merged := c.defaults.Merge(opts)
	reqBody := map[string]interface{}{
		"model":       merged.Model,
		"messages":    []map[string]string{{"role": "user", "content": input}},
		"max_tokens":  merged.MaxTokens,
		"temperature": merged.Temperature,
	}
	if merged.SystemPrompt != "" {
		reqBody["system"] = merged.SystemPrompt
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	headers := map[string]string{"x-api-key": c.apiKey, "anthropic-version": "2023-06-01"}
	if err := core.PostJSON(ctx, c.httpClient, c.endpoint, headers, reqBody, &result); err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	var out strings.Builder
	for _, block := range result.Content {
		if block.Type == "" || block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("no response from anthropic")
	}
	return out.String(), nil
}

func valueOrDefault(val, def string) string {
	if val != "" {
		return val
	}
	return def
}

func orFloat(v, d float64) float64 {
	if v != 0 {
		return v
	}
	return d
}

func orInt(v, d int) int {
	if v != 0 {
		return v
	}
	return d
}
