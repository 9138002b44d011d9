// Package providers implements the closed set of upstream model adapters and
// the routable operations built on top of them.
package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/jonathanprocter/therapyflow-router/internal/config"
	"github.com/jonathanprocter/therapyflow-router/internal/router"
	"github.com/jonathanprocter/therapyflow-router/internal/types"
)

// endpoint carries the wire-level settings for one provider.
type endpoint struct {
	baseURL    string
	apiKey     string
	apiVersion string
	model      string
	headers    map[string]string
	throttle   *rate.Limiter
}

// Client calls the upstream providers. Dispatch branches on the tagged
// ProviderID; there is no runtime string lookup of adapter behavior.
type Client struct {
	http      *http.Client
	endpoints map[router.ProviderID]endpoint
}

// NewClient builds a provider client from configuration. httpClient may be
// nil; attempts are bounded by the router's per-attempt deadlines, so the
// client itself carries no timeout.
func NewClient(cfg *config.ProvidersConfig, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	c := &Client{http: httpClient, endpoints: make(map[router.ProviderID]endpoint)}
	for name, pc := range cfg.Providers {
		id, err := router.ParseProviderID(name)
		if err != nil {
			return nil, err
		}
		ep := endpoint{
			baseURL:    strings.TrimRight(pc.BaseURL, "/"),
			apiKey:     pc.APIKey,
			apiVersion: pc.APIVersion,
			model:      pc.Model,
			headers:    pc.Headers,
		}
		if pc.EgressRPM > 0 {
			burst := pc.EgressBurst
			if burst <= 0 {
				burst = 1
			}
			ep.throttle = rate.NewLimiter(rate.Limit(float64(pc.EgressRPM)/60.0), burst)
		}
		c.endpoints[id] = ep
	}
	return c, nil
}

// Complete runs one canonical chat request against the identified provider.
// An exhausted egress throttle surfaces as a local rate-limit error before
// any bytes leave the process.
func (c *Client) Complete(ctx context.Context, id router.ProviderID, req *types.ChatRequest) (*types.ChatResult, error) {
	ep, ok := c.endpoints[id]
	if !ok {
		return nil, &router.Error{Kind: router.KindUnknown, Provider: id, Message: "provider endpoint not configured"}
	}
	if ep.throttle != nil && !ep.throttle.Allow() {
		return nil, &router.Error{Kind: router.KindRateLimit, Provider: id, Message: "egress throttle exhausted"}
	}

	switch id {
	case router.ProviderAnthropic:
		return c.anthropicComplete(ctx, ep, req)
	case router.ProviderOpenAI:
		return c.openaiComplete(ctx, ep, req)
	case router.ProviderGemini:
		return c.geminiComplete(ctx, ep, req)
	default:
		return nil, &router.Error{Kind: router.KindUnknown, Provider: id, Message: "unsupported provider"}
	}
}

// doJSON posts a JSON body and returns the raw response payload, mapping
// transport and status failures onto the routing error taxonomy.
func (c *Client) doJSON(ctx context.Context, id router.ProviderID, url string, headers map[string]string, reqBody any) ([]byte, error) {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &router.Error{Kind: router.KindUnknown, Provider: id, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, &router.Error{Kind: router.KindUnknown, Provider: id, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &router.Error{Kind: router.Classify(err), Provider: id, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &router.Error{Kind: router.Classify(err), Provider: id, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(id, resp.StatusCode, payload)
	}
	return payload, nil
}

// statusError maps an upstream HTTP status onto the error taxonomy.
func statusError(id router.ProviderID, status int, body []byte) *router.Error {
	kind := router.KindUnknown
	switch {
	case status == http.StatusTooManyRequests:
		kind = router.KindRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = router.KindTimeout
	case status >= 500:
		kind = router.KindServerError
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		cut := 200
		// Back up to a rune boundary so a multi-byte character is dropped
		// whole instead of split.
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return &router.Error{
		Kind:     kind,
		Provider: id,
		Status:   status,
		Message:  fmt.Sprintf("upstream status %d: %s", status, msg),
	}
}
