package guard

import (
	"context"
	"fmt"

	"github.com/jonathanprocter/therapyflow-router/internal/config"
	"github.com/jonathanprocter/therapyflow-router/internal/types"
)

// Detection represents a detected credential in text.
type Detection struct {
	PatternName string // e.g. "Anthropic API Key"
	Start       int    // byte offset
	End         int    // byte offset
}

// CredentialScanner screens dispatch content for credentials. Unlike the
// injection scanner there is no severity scale: one hit blocks.
type CredentialScanner struct {
	patterns []Pattern
	cfg      func() config.CredentialGuardConfig
}

// NewCredentialScanner creates a scanner with the default credential patterns.
func NewCredentialScanner(cfg func() config.CredentialGuardConfig) *CredentialScanner {
	return &CredentialScanner{patterns: DefaultPatterns(), cfg: cfg}
}

func (s *CredentialScanner) Name() string  { return "credentials" }
func (s *CredentialScanner) Enabled() bool { return s.cfg().Enabled }

// ScanText checks a single text string and returns all detections.
func (s *CredentialScanner) ScanText(text string) []Detection {
	var found []Detection
	for _, p := range s.patterns {
		for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
			found = append(found, Detection{PatternName: p.Name, Start: loc[0], End: loc[1]})
		}
	}
	return found
}

// Scan implements Scanner. The verdict message names only the first
// pattern; the rest would repeat what the caller already has to redact.
func (s *CredentialScanner) Scan(_ context.Context, messages []types.Message) Verdict {
	total := 0
	first := ""
	for _, m := range messages {
		for _, d := range s.ScanText(m.Content) {
			if first == "" {
				first = d.PatternName
			}
			total++
		}
	}

	if total == 0 {
		return Verdict{Action: ActionPass, Scanner: "credentials"}
	}
	return Verdict{
		Action:     ActionBlock,
		Scanner:    "credentials",
		Message:    fmt.Sprintf("Dispatch blocked: credential detected (%s)", first),
		Detections: total,
		Score:      1.0,
	}
}
