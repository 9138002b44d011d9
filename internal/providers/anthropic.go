package providers

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/jonathanprocter/therapyflow-router/internal/router"
	"github.com/jonathanprocter/therapyflow-router/internal/types"
)

const (
	anthropicDefaultVersion   = "2023-06-01"
	anthropicDefaultMaxTokens = 4096
)

type anthropicRequestBody struct {
	Model         string             `json:"model"`
	Messages      []anthropicMessage `json:"messages"`
	System        string             `json:"system,omitempty"`
	MaxTokens     int                `json:"max_tokens"`
	Temperature   *float64           `json:"temperature,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponseBody struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *Client) anthropicComplete(ctx context.Context, ep endpoint, req *types.ChatRequest) (*types.ChatResult, error) {
	model := req.Model
	if model == "" {
		model = ep.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	body := anthropicRequestBody{
		Model:         model,
		System:        req.System,
		MaxTokens:     maxTokens,
		Temperature:   req.Temperature,
		StopSequences: req.Stop,
	}
	for _, m := range req.Messages {
		// Anthropic takes the system prompt as a top-level field, not a message.
		if m.Role == types.RoleSystem {
			if body.System == "" {
				body.System = m.Content
			}
			continue
		}
		body.Messages = append(body.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}

	apiVersion := ep.apiVersion
	if apiVersion == "" {
		apiVersion = anthropicDefaultVersion
	}
	headers := map[string]string{
		"x-api-key":         ep.apiKey,
		"anthropic-version": apiVersion,
	}
	for k, v := range ep.headers {
		headers[k] = v
	}

	payload, err := c.doJSON(ctx, router.ProviderAnthropic, ep.baseURL+"/v1/messages", headers, body)
	if err != nil {
		return nil, err
	}

	var parsed anthropicResponseBody
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, &router.Error{Kind: router.KindValidation, Provider: router.ProviderAnthropic, Err: fmt.Errorf("decode response: %w", err)}
	}

	var content string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &types.ChatResult{
		Provider:     string(router.ProviderAnthropic),
		Model:        parsed.Model,
		Content:      content,
		FinishReason: mapAnthropicStop(parsed.StopReason),
		Usage: types.Usage{
			InputTokens:  parsed.Usage.InputTokens,
			OutputTokens: parsed.Usage.OutputTokens,
		},
	}, nil
}

func mapAnthropicStop(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	default:
		return reason
	}
}
