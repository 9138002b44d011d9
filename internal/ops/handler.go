// Package ops exposes the dispatch and router operations endpoints.
package ops

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/jonathanprocter/therapyflow-router/internal/auth"
	"github.com/jonathanprocter/therapyflow-router/internal/guard"
	"github.com/jonathanprocter/therapyflow-router/internal/httputil"
	"github.com/jonathanprocter/therapyflow-router/internal/providers"
	"github.com/jonathanprocter/therapyflow-router/internal/ratelimit"
	"github.com/jonathanprocter/therapyflow-router/internal/router"
	"github.com/jonathanprocter/therapyflow-router/internal/schema"
	"github.com/jonathanprocter/therapyflow-router/internal/telemetry"
	"github.com/jonathanprocter/therapyflow-router/internal/types"
)

// Handler holds dependencies for the dispatch HTTP handlers.
type Handler struct {
	router  *router.Router
	client  *providers.Client
	guard   *guard.Chain
	quota   *ratelimit.QuotaTracker
	metrics *telemetry.Metrics
}

func NewHandler(rt *router.Router, client *providers.Client, guardChain *guard.Chain, quota *ratelimit.QuotaTracker, metrics *telemetry.Metrics) *Handler {
	return &Handler{
		router:  rt,
		client:  client,
		guard:   guardChain,
		quota:   quota,
		metrics: metrics,
	}
}

// DispatchRequest is the body of POST /v1/dispatch.
type DispatchRequest struct {
	Operation   string          `json:"operation"`
	Messages    []types.Message `json:"messages"`
	System      string          `json:"system,omitempty"`
	Model       string          `json:"model,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	Format      string          `json:"format,omitempty"` // "text" (default) or "json"
	Schema      json.RawMessage `json:"schema,omitempty"`
}

type dispatchResponse struct {
	RequestID string          `json:"request_id"`
	Operation string          `json:"operation"`
	Provider  string          `json:"provider"`
	Result    json.RawMessage `json:"result"`
}

// Dispatch handles POST /v1/dispatch.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()

	authInfo, ok := auth.AuthFromContext(r.Context())
	if !ok {
		httputil.WriteAuthError(w, reqID, "Not authenticated")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	var req DispatchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return
	}

	if req.Operation == "" {
		httputil.WriteBadRequestError(w, reqID, "operation is required")
		return
	}
	if len(req.Messages) == 0 {
		httputil.WriteBadRequestError(w, reqID, "messages is required")
		return
	}
	if req.Format == "" {
		req.Format = "text"
	}
	if req.Format != "text" && req.Format != "json" {
		httputil.WriteBadRequestError(w, reqID, `format must be "text" or "json"`)
		return
	}
	if len(req.Schema) > 0 && req.Format != "json" {
		httputil.WriteBadRequestError(w, reqID, `schema requires format "json"`)
		return
	}

	var validator router.Validator
	if len(req.Schema) > 0 {
		s, err := schema.Parse(req.Schema)
		if err != nil {
			httputil.WriteBadRequestError(w, reqID, "Invalid schema: "+err.Error())
			return
		}
		validator = s
	}

	// Screen outbound content before anything leaves the platform.
	if h.guard != nil {
		verdicts, blocked := h.guard.Inspect(r.Context(), req.Messages)
		if blocked != nil {
			slog.Warn("dispatch blocked by guard",
				"request_id", reqID,
				"operation", req.Operation,
				"scanner", blocked.Scanner,
				"detections", blocked.Detections,
				"score", blocked.Score,
				"key_id", authInfo.KeyID,
			)
			if h.metrics != nil {
				h.metrics.RecordGuardAction(blocked.Scanner, string(blocked.Action))
				h.metrics.RecordDispatch(telemetry.DispatchLabels{
					Operation:  req.Operation,
					Provider:   "none",
					Status:     "blocked",
					DurationMs: msSince(receivedAt),
				})
			}
			httputil.WriteContentBlockedError(w, reqID, blocked.Message)
			return
		}
		for _, v := range verdicts {
			if v.Action == guard.ActionFlag && h.metrics != nil {
				h.metrics.RecordGuardAction(v.Scanner, "flag")
			}
		}
	}

	chatReq := &types.ChatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		System:      req.System,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	var op router.Operation
	if req.Format == "json" {
		op = providers.JSONOperation(req.Operation, h.client, chatReq)
	} else {
		op = providers.ChatOperation(req.Operation, h.client, chatReq)
	}

	result, err := h.router.Run(r.Context(), op, validator)
	if err != nil {
		h.writeDispatchError(w, reqID, req.Operation, receivedAt, err)
		return
	}

	if h.quota != nil {
		if err := h.quota.RecordDispatch(r.Context(), authInfo.KeyID); err != nil {
			slog.Warn("quota record failed", "request_id", reqID, "key_id", authInfo.KeyID, "error", err)
		}
	}

	totalDuration := time.Since(receivedAt)
	slog.Info("dispatch completed",
		"request_id", reqID,
		"operation", req.Operation,
		"provider", result.Provider,
		"format", req.Format,
		"duration_ms", totalDuration.Milliseconds(),
		"key_id", authInfo.KeyID,
	)

	if h.metrics != nil {
		h.metrics.RecordAttempt(string(result.Provider), "success")
		h.metrics.RecordDispatch(telemetry.DispatchLabels{
			Operation:  req.Operation,
			Provider:   string(result.Provider),
			Status:     "succeeded",
			DurationMs: float64(totalDuration.Milliseconds()),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dispatchResponse{
		RequestID: reqID,
		Operation: req.Operation,
		Provider:  string(result.Provider),
		Result:    result.Payload,
	})
}

// writeDispatchError maps routing failures onto the error envelope.
func (h *Handler) writeDispatchError(w http.ResponseWriter, reqID, operation string, receivedAt time.Time, err error) {
	status := "failed"
	defer func() {
		if h.metrics != nil {
			h.metrics.RecordDispatch(telemetry.DispatchLabels{
				Operation:  operation,
				Provider:   "none",
				Status:     status,
				DurationMs: msSince(receivedAt),
			})
		}
	}()

	var exhausted *router.ExhaustedError
	if errors.As(err, &exhausted) {
		if h.metrics != nil {
			for _, attempt := range exhausted.Attempts {
				h.metrics.RecordAttempt(string(attempt.Provider), string(attempt.Kind))
			}
		}
		slog.Error("dispatch exhausted all providers",
			"request_id", reqID,
			"operation", operation,
			"attempts", len(exhausted.Attempts),
		)
		httputil.WriteUpstreamExhaustedError(w, reqID, exhausted.Error())
		return
	}

	var rerr *router.Error
	if errors.As(err, &rerr) {
		switch rerr.Kind {
		case router.KindPolicyViolation:
			status = "denied"
			httputil.WritePolicyDeniedError(w, reqID, rerr.Message)
			return
		case router.KindNoProviders:
			httputil.WriteNoProvidersError(w, reqID, "No providers available for dispatch")
			return
		}
	}

	slog.Error("dispatch failed", "request_id", reqID, "operation", operation, "error", err)
	httputil.WriteInternalError(w, reqID, "Dispatch failed")
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Milliseconds())
}

// RouterMetrics handles GET /v1/router/metrics.
func (h *Handler) RouterMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"providers":   h.router.GetMetricsSnapshot(),
		"captured_at": time.Now().UTC(),
	})
}

// RouterHealth handles GET /v1/router/health. The service is healthy as long
// as at least one provider can take traffic.
func (h *Handler) RouterHealth(w http.ResponseWriter, r *http.Request) {
	statuses := h.router.GetHealthStatus()
	healthy := false
	for _, s := range statuses {
		if s.Healthy {
			healthy = true
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(map[string]any{
		"healthy":   healthy,
		"providers": statuses,
	})
}

// ResetRouterMetrics handles POST /v1/router/metrics/reset. Counters restart
// from zero and any open cooldowns are cleared.
func (h *Handler) ResetRouterMetrics(w http.ResponseWriter, r *http.Request) {
	h.router.ResetMetrics()

	reqID := w.Header().Get("X-Request-ID")
	slog.Info("router metrics reset", "request_id", reqID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "reset"})
}
