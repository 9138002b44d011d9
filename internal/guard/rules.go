package guard

import "regexp"

// Rule is one regex screen applied to inbound message content. Severity
// feeds the verdict score, so it ranges 0.0 (noise) to 1.0 (certain).
type Rule struct {
	Name     string
	Regex    *regexp.Regexp
	Severity float64
	Category string // "instruction_bypass", "role_override", "encoding_trick", "exfiltration"
}

// DefaultRules returns the built-in injection detection rules. Client intake
// forms and session transcripts are attacker-writable, so everything that
// flows into a dispatch gets screened.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "override_instructions",
			Regex:    regexp.MustCompile(`(?i)(ignore|disregard|forget)\s+(all\s+)?(previous|prior|earlier)\s+(instructions|context|rules|directions)`),
			Severity: 0.95,
			Category: "instruction_bypass",
		},
		{
			Name: "jailbreak",
			// DAN stays case-sensitive: lowercased it is a name, not a
			// jailbreak marker.
			Regex:    regexp.MustCompile(`(?:\bDAN\b|(?i:do\s+anything\s+now|jailbreak|unrestricted\s+mode))`),
			Severity: 0.9,
			Category: "role_override",
		},
		{
			Name:     "fenced_system_block",
			Regex:    regexp.MustCompile("(?i)```\\s*system"),
			Severity: 0.9,
			Category: "role_override",
		},
		{
			Name:     "system_role_prefix",
			Regex:    regexp.MustCompile(`(?im)^\s*system\s*:`),
			Severity: 0.85,
			Category: "role_override",
		},
		{
			Name:     "reveal_prompt",
			Regex:    regexp.MustCompile(`(?i)(reveal|print|repeat|show)\s+((your|the)\s+)?(system\s+prompt|hidden\s+instructions)`),
			Severity: 0.85,
			Category: "exfiltration",
		},
		{
			Name:     "bulk_record_probe",
			Regex:    regexp.MustCompile(`(?i)(show|list|dump|export)\s+(me\s+)?(all|every|other)\s+(client|patient)s?\b`),
			Severity: 0.85,
			Category: "exfiltration",
		},
		{
			Name:     "encoded_payload",
			Regex:    regexp.MustCompile(`(?i)(decode|execute|follow|run)\s+(the\s+|this\s+)?base64`),
			Severity: 0.85,
			Category: "encoding_trick",
		},
		{
			Name:     "new_instructions",
			Regex:    regexp.MustCompile(`(?i)(new|updated|revised|emergency)\s+instructions?\s*:`),
			Severity: 0.8,
			Category: "instruction_bypass",
		},
		{
			Name:     "you_are_now",
			Regex:    regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|the|my)\s+`),
			Severity: 0.7,
			Category: "role_override",
		},
	}
}
