package config

import "time"

type ProvidersConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
}

type ProviderConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Priority    int               `yaml:"priority"`
	Timeout     time.Duration     `yaml:"timeout"`
	MaxRetries  int               `yaml:"max_retries"`
	BaseURL     string            `yaml:"base_url"`
	APIKey      string            `yaml:"api_key"`
	APIVersion  string            `yaml:"api_version,omitempty"`
	Model       string            `yaml:"model"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	EgressRPM   int               `yaml:"egress_rpm,omitempty"`
	EgressBurst int               `yaml:"egress_burst,omitempty"`
}

// applyDefaults fills routing parameters a providers file may omit. Endpoint
// fields stay as written; the registry rejects anything still invalid.
func (p *ProvidersConfig) applyDefaults() {
	for name, pc := range p.Providers {
		if pc.Timeout == 0 {
			pc.Timeout = 30 * time.Second
		}
		if pc.MaxRetries == 0 {
			pc.MaxRetries = 3
		}
		p.Providers[name] = pc
	}
}
