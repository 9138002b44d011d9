package guard

import (
	"context"
	"fmt"

	"github.com/jonathanprocter/therapyflow-router/internal/config"
	"github.com/jonathanprocter/therapyflow-router/internal/types"
)

// RuleMatch records a matched injection rule.
type RuleMatch struct {
	RuleName string
	Severity float64
	Category string
	Start    int
	End      int
}

// InjectionScanner scores dispatch content against the injection rules.
// Thresholds are read from live config on every scan, so a reload moves
// them without restarting.
type InjectionScanner struct {
	rules []Rule
	cfg   func() config.InjectionGuardConfig
}

// NewInjectionScanner creates a prompt injection scanner.
func NewInjectionScanner(cfg func() config.InjectionGuardConfig) *InjectionScanner {
	return &InjectionScanner{rules: DefaultRules(), cfg: cfg}
}

func (s *InjectionScanner) Name() string  { return "injection" }
func (s *InjectionScanner) Enabled() bool { return s.cfg().Enabled }

// ScanText checks a single text string and returns all rule matches.
func (s *InjectionScanner) ScanText(text string) []RuleMatch {
	var matches []RuleMatch
	for _, r := range s.rules {
		for _, loc := range r.Regex.FindAllStringIndex(text, -1) {
			matches = append(matches, RuleMatch{
				RuleName: r.Name,
				Severity: r.Severity,
				Category: r.Category,
				Start:    loc[0],
				End:      loc[1],
			})
		}
	}
	return matches
}

// Scan implements Scanner. The verdict score is the worst severity seen
// across all messages, so a clean system prompt cannot dilute a poisoned
// intake form.
func (s *InjectionScanner) Scan(_ context.Context, messages []types.Message) Verdict {
	count := 0
	score := 0.0
	for _, m := range messages {
		for _, match := range s.ScanText(m.Content) {
			count++
			score = max(score, match.Severity)
		}
	}

	cfg := s.cfg()
	v := Verdict{Scanner: "injection", Detections: count, Score: score}
	switch {
	case score >= cfg.BlockThreshold:
		v.Action = ActionBlock
		v.Message = fmt.Sprintf("Dispatch blocked: prompt injection detected (score %.2f)", score)
	case score >= cfg.FlagThreshold:
		v.Action = ActionFlag
	default:
		v.Action = ActionPass
	}
	return v
}
