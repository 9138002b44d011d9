package providers

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/jonathanprocter/therapyflow-router/internal/router"
	"github.com/jonathanprocter/therapyflow-router/internal/types"
)

type openaiRequestBody struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponseBody struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      openaiMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *Client) openaiComplete(ctx context.Context, ep endpoint, req *types.ChatRequest) (*types.ChatResult, error) {
	model := req.Model
	if model == "" {
		model = ep.model
	}

	body := openaiRequestBody{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stop:        req.Stop,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, openaiMessage{Role: types.RoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, openaiMessage{Role: m.Role, Content: m.Content})
	}

	headers := map[string]string{
		"Authorization": "Bearer " + ep.apiKey,
	}
	for k, v := range ep.headers {
		headers[k] = v
	}

	payload, err := c.doJSON(ctx, router.ProviderOpenAI, ep.baseURL+"/v1/chat/completions", headers, body)
	if err != nil {
		return nil, err
	}

	var parsed openaiResponseBody
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, &router.Error{Kind: router.KindValidation, Provider: router.ProviderOpenAI, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return nil, &router.Error{Kind: router.KindValidation, Provider: router.ProviderOpenAI, Message: "response contains no choices"}
	}

	choice := parsed.Choices[0]
	return &types.ChatResult{
		Provider:     string(router.ProviderOpenAI),
		Model:        parsed.Model,
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage: types.Usage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
		},
	}, nil
}
