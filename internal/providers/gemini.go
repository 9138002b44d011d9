package providers

import (
	"context"
	"fmt"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/jonathanprocter/therapyflow-router/internal/router"
	"github.com/jonathanprocter/therapyflow-router/internal/types"
)

const geminiDefaultAPIVersion = "v1beta"

type geminiRequestBody struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type geminiResponseBody struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

func (c *Client) geminiComplete(ctx context.Context, ep endpoint, req *types.ChatRequest) (*types.ChatResult, error) {
	model := req.Model
	if model == "" {
		model = ep.model
	}

	body := geminiRequestBody{}
	system := req.System
	for _, m := range req.Messages {
		if m.Role == types.RoleSystem {
			if system == "" {
				system = m.Content
			}
			continue
		}
		role := m.Role
		// Gemini names the model turn "model" rather than "assistant".
		if role == types.RoleAssistant {
			role = "model"
		}
		body.Contents = append(body.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}
	if system != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	if req.MaxTokens > 0 || req.Temperature != nil || len(req.Stop) > 0 {
		body.GenerationConfig = &geminiGenerationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
			StopSequences:   req.Stop,
		}
	}

	endpoint, err := geminiURL(ep, model)
	if err != nil {
		return nil, &router.Error{Kind: router.KindUnknown, Provider: router.ProviderGemini, Err: err}
	}

	payload, err := c.doJSON(ctx, router.ProviderGemini, endpoint, ep.headers, body)
	if err != nil {
		return nil, err
	}

	var parsed geminiResponseBody
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, &router.Error{Kind: router.KindValidation, Provider: router.ProviderGemini, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(parsed.Candidates) == 0 {
		return nil, &router.Error{Kind: router.KindValidation, Provider: router.ProviderGemini, Message: "response contains no candidates"}
	}

	candidate := parsed.Candidates[0]
	var content string
	for _, part := range candidate.Content.Parts {
		content += part.Text
	}

	respModel := parsed.ModelVersion
	if respModel == "" {
		respModel = model
	}

	return &types.ChatResult{
		Provider:     string(router.ProviderGemini),
		Model:        respModel,
		Content:      content,
		FinishReason: mapGeminiFinish(candidate.FinishReason),
		Usage: types.Usage{
			InputTokens:  parsed.UsageMetadata.PromptTokenCount,
			OutputTokens: parsed.UsageMetadata.CandidatesTokenCount,
		},
	}, nil
}

// geminiURL builds the generateContent endpoint. The API key travels as a
// query parameter, not a header.
func geminiURL(ep endpoint, model string) (string, error) {
	base, err := url.Parse(ep.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	apiVersion := ep.apiVersion
	if apiVersion == "" {
		apiVersion = geminiDefaultAPIVersion
	}
	base.Path = base.Path + "/" + apiVersion + "/models/" + url.PathEscape(model) + ":generateContent"

	q := base.Query()
	q.Set("key", ep.apiKey)
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func mapGeminiFinish(reason string) string {
	switch reason {
	case "STOP":
		return "stop"
	case "MAX_TOKENS":
		return "length"
	case "SAFETY", "RECITATION":
		return "content_filter"
	default:
		return reason
	}
}
