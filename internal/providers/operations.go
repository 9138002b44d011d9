package providers

import (
	"context"
	"strings"

	"github.com/goccy/go-json"

	"github.com/jonathanprocter/therapyflow-router/internal/router"
	"github.com/jonathanprocter/therapyflow-router/internal/types"
)

// ChatOperation wraps a chat completion so the router can dispatch it against
// any provider. The payload is the canonical ChatResult document.
func ChatOperation(name string, client *Client, req *types.ChatRequest) router.Operation {
	return router.NewOperation(name, func(ctx context.Context, provider router.ProviderID) ([]byte, error) {
		result, err := client.Complete(ctx, provider, req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})
}

// JSONOperation wraps a chat completion whose reply must be a JSON document.
// The payload is the extracted document itself; a reply that does not parse
// is recorded as a validation failure against the provider and fails over
// rather than retrying.
func JSONOperation(name string, client *Client, req *types.ChatRequest) router.Operation {
	return router.NewOperation(name, func(ctx context.Context, provider router.ProviderID) ([]byte, error) {
		result, err := client.Complete(ctx, provider, req)
		if err != nil {
			return nil, err
		}
		doc, ok := extractJSONDocument(result.Content)
		if !ok {
			return nil, &router.Error{
				Kind:     router.KindValidation,
				Provider: provider,
				Message:  "reply is not a JSON document",
			}
		}
		return []byte(doc), nil
	})
}

// extractJSONDocument pulls a JSON document out of a model reply. Models
// often wrap JSON in a markdown fence even when told not to.
func extractJSONDocument(content string) (string, bool) {
	s := strings.TrimSpace(content)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	if !json.Valid([]byte(s)) {
		return "", false
	}
	return s, true
}
