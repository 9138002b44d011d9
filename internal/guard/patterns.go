package guard

import "regexp"

// Pattern names one credential shape worth blocking outright. Unlike
// injection rules there is no severity: any hit is a hard stop.
type Pattern struct {
	Name  string
	Regex *regexp.Regexp
}

// DefaultPatterns returns the built-in credential detection patterns. The
// provider key patterns matter most here: a leaked upstream key inside a
// clinical note would otherwise travel to a competing provider on failover.
func DefaultPatterns() []Pattern {
	return []Pattern{
		// Upstream provider keys.
		{
			Name:  "Anthropic API Key",
			Regex: regexp.MustCompile(`sk-ant-[A-Za-z0-9\-_]{24,}`),
		},
		{
			Name:  "OpenAI API Key",
			Regex: regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
		},
		{
			Name:  "Google API Key",
			Regex: regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`),
		},

		// Infrastructure secrets that tend to end up pasted into notes.
		{
			Name:  "AWS Access Key",
			Regex: regexp.MustCompile(`(?:AKIA|ASIA)[0-9A-Z]{16}`),
		},
		{
			Name:  "GitHub Token",
			Regex: regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),
		},
		{
			Name:  "Private Key",
			Regex: regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
		},
		{
			Name:  "Connection String",
			Regex: regexp.MustCompile(`(?:postgresql|postgres|mysql|mongodb(?:\+srv)?|rediss?|amqps?)://\S+`),
		},
		{
			Name:  "JWT Token",
			Regex: regexp.MustCompile(`eyJ[A-Za-z0-9\-_]+\.eyJ[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+`),
		},
	}
}
