package router

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jonathanprocter/therapyflow-router/internal/config"
)

// ProviderID identifies one of the supported upstream model providers. The
// set is closed: configuration naming anything else fails at startup.
type ProviderID string

const (
	ProviderAnthropic ProviderID = "anthropic"
	ProviderOpenAI    ProviderID = "openai"
	ProviderGemini    ProviderID = "gemini"
)

// ParseProviderID validates a configured provider name against the closed
// provider set.
func ParseProviderID(name string) (ProviderID, error) {
	switch id := ProviderID(name); id {
	case ProviderAnthropic, ProviderOpenAI, ProviderGemini:
		return id, nil
	default:
		return "", fmt.Errorf("unknown provider %q", name)
	}
}

func (id ProviderID) String() string { return string(id) }

// ProviderConfig holds the static routing parameters for one provider.
// Lower Priority wins when health scores are close.
type ProviderConfig struct {
	ID         ProviderID
	Enabled    bool
	Priority   int
	Timeout    time.Duration
	MaxRetries int
}

// Registry is the validated, immutable set of configured providers. It is
// safe for concurrent use because nothing mutates it after construction.
type Registry struct {
	byID  map[ProviderID]ProviderConfig
	order []ProviderID
}

// NewRegistry validates the provider set and freezes it. Unknown provider
// names, duplicates, non-positive timeouts, and retry budgets below one are
// all startup errors.
func NewRegistry(configs []ProviderConfig) (*Registry, error) {
	if len(configs) == 0 {
		return nil, errors.New("no providers configured")
	}
	r := &Registry{byID: make(map[ProviderID]ProviderConfig, len(configs))}
	for _, pc := range configs {
		if _, err := ParseProviderID(string(pc.ID)); err != nil {
			return nil, err
		}
		if _, dup := r.byID[pc.ID]; dup {
			return nil, fmt.Errorf("duplicate provider %q", pc.ID)
		}
		if pc.Timeout <= 0 {
			return nil, fmt.Errorf("provider %s: timeout must be positive, got %s", pc.ID, pc.Timeout)
		}
		if pc.MaxRetries < 1 {
			return nil, fmt.Errorf("provider %s: max_retries must be at least 1, got %d", pc.ID, pc.MaxRetries)
		}
		r.byID[pc.ID] = pc
		r.order = append(r.order, pc.ID)
	}
	return r, nil
}

// FromConfig builds a Registry from the configured provider map. Names are
// processed in sorted order so registry construction is deterministic.
func FromConfig(providers map[string]config.ProviderConfig) (*Registry, error) {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)

	configs := make([]ProviderConfig, 0, len(names))
	for _, name := range names {
		id, err := ParseProviderID(name)
		if err != nil {
			return nil, err
		}
		pc := providers[name]
		configs = append(configs, ProviderConfig{
			ID:         id,
			Enabled:    pc.Enabled,
			Priority:   pc.Priority,
			Timeout:    pc.Timeout,
			MaxRetries: pc.MaxRetries,
		})
	}
	return NewRegistry(configs)
}

// Get returns the configuration for id.
func (r *Registry) Get(id ProviderID) (ProviderConfig, bool) {
	pc, ok := r.byID[id]
	return pc, ok
}

// All returns every provider configuration in registration order.
func (r *Registry) All() []ProviderConfig {
	out := make([]ProviderConfig, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// IDs returns every registered provider ID in registration order.
func (r *Registry) IDs() []ProviderID {
	out := make([]ProviderID, len(r.order))
	copy(out, r.order)
	return out
}
