// Package guard screens outbound dispatch content before it reaches any
// provider.
package guard

import (
	"context"

	"github.com/jonathanprocter/therapyflow-router/internal/types"
)

// Action is the screening decision.
type Action string

const (
	ActionPass  Action = "pass"
	ActionFlag  Action = "flag"
	ActionBlock Action = "block"
)

// Verdict is a single scanner's finding for one dispatch. Flag verdicts
// travel to the caller as warnings; a Block verdict stops the dispatch
// before provider selection even starts.
type Verdict struct {
	Action     Action
	Scanner    string
	Message    string
	Detections int
	Score      float64
}

// Scanner inspects the full message set of one dispatch. Enabled lets
// live config switch a scanner off without rebuilding the chain.
type Scanner interface {
	Name() string
	Enabled() bool
	Scan(ctx context.Context, messages []types.Message) Verdict
}

// Chain holds scanners in execution order.
type Chain struct {
	scanners []Scanner
}

// NewChain builds a chain that runs the given scanners in order.
func NewChain(scanners ...Scanner) *Chain {
	return &Chain{scanners: scanners}
}

// Inspect runs every enabled scanner and collects their verdicts. The
// second return is the first blocking verdict, nil when the dispatch may
// proceed; scanners after a block never run.
func (c *Chain) Inspect(ctx context.Context, messages []types.Message) ([]Verdict, *Verdict) {
	verdicts := make([]Verdict, 0, len(c.scanners))
	for _, s := range c.scanners {
		if !s.Enabled() {
			continue
		}
		v := s.Scan(ctx, messages)
		verdicts = append(verdicts, v)
		if v.Action == ActionBlock {
			return verdicts, &v
		}
	}
	return verdicts, nil
}
