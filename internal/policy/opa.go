package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/rego"

	"github.com/jonathanprocter/therapyflow-router/internal/config"
)

// decisionQuery pins the rego entrypoint: policies answer with an
// [allow, reason] pair under data.therapyflow.policy.
const decisionQuery = "[data.therapyflow.policy.allow, data.therapyflow.policy.reason]"

// Input is the document handed to OPA for a dispatch decision.
type Input struct {
	Operation string    `json:"operation"`
	Time      TimeOfDay `json:"time"`
}

// TimeOfDay carries the evaluation wall clock, UTC.
type TimeOfDay struct {
	Hour int    `json:"hour"`
	Day  string `json:"day"`
}

// Evaluator gates dispatches through an OPA rego bundle. Policies are
// prepared once and swapped atomically on reload; evaluation fails closed
// whenever no policies are loaded or evaluation errors out.
type Evaluator struct {
	mu       sync.RWMutex
	prepared *rego.PreparedEvalQuery
	cfg      func() config.PolicyConfig
}

// NewEvaluator creates a policy evaluator. Call Load to compile policies.
func NewEvaluator(cfg func() config.PolicyConfig) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Load reads and compiles the bundle under the configured path. An empty
// bundle is not an error; the evaluator simply keeps denying.
func (e *Evaluator) Load() error {
	cfg := e.cfg()
	modules, err := LoadRegoFiles(cfg.BundlePath)
	if err != nil {
		return fmt.Errorf("load rego bundle: %w", err)
	}
	if len(modules) == 0 {
		slog.Warn("no rego policies found, dispatch will fail closed", "path", cfg.BundlePath)
		return nil
	}
	if err := e.LoadFromModules(modules); err != nil {
		return err
	}
	slog.Info("dispatch policies loaded", "modules", len(modules), "path", cfg.BundlePath)
	return nil
}

// LoadFromModules compiles the given module sources and swaps them in.
// Tests hand sources in directly instead of going through the bundle dir.
func (e *Evaluator) LoadFromModules(modules map[string]string) error {
	opts := []func(*rego.Rego){rego.Query(decisionQuery)}
	for name, src := range modules {
		opts = append(opts, rego.Module(name, src))
	}

	prepared, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("prepare rego: %w", err)
	}

	e.mu.Lock()
	e.prepared = &prepared
	e.mu.Unlock()
	return nil
}

func (e *Evaluator) query() *rego.PreparedEvalQuery {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.prepared
}

// Evaluate runs the dispatch policy against input. Anything malformed
// in the decision denies.
func (e *Evaluator) Evaluate(ctx context.Context, input Input) (bool, string, error) {
	pq := e.query()
	if pq == nil {
		return false, "no policies loaded", nil
	}

	timeout := e.cfg().EvaluationTimeout
	if timeout == 0 {
		timeout = 100 * time.Millisecond
	}
	evalCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results, err := pq.Eval(evalCtx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Sprintf("policy evaluation error: %v", err), err
	}
	return decodeDecision(results)
}

// decodeDecision unpacks the [allow, reason] pair from a result set.
func decodeDecision(results rego.ResultSet) (bool, string, error) {
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, "policy returned no result", nil
	}
	pair, ok := results[0].Expressions[0].Value.([]any)
	if !ok || len(pair) < 2 {
		return false, "malformed policy decision", nil
	}
	allowed, _ := pair[0].(bool)
	reason, _ := pair[1].(string)
	return allowed, reason, nil
}

// Allow implements the router gate: it evaluates the dispatch policy for the
// named operation at the current UTC wall clock.
func (e *Evaluator) Allow(ctx context.Context, operation string) (bool, string) {
	now := time.Now().UTC()
	allowed, reason, err := e.Evaluate(ctx, Input{
		Operation: operation,
		Time:      TimeOfDay{Hour: now.Hour(), Day: now.Weekday().String()},
	})
	if err != nil {
		slog.Error("policy evaluation failed", "operation", operation, "error", err)
		return false, "policy evaluation failed"
	}
	if !allowed {
		if reason == "" {
			reason = "denied by policy"
		}
		return false, reason
	}
	return true, ""
}
