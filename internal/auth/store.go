package auth

import (
	"context"
	"sync"

	"github.com/jonathanprocter/therapyflow-router/internal/config"
)

// KeyStore looks up API key metadata by hash. A nil metadata with nil error
// means the key is unknown.
type KeyStore interface {
	Lookup(ctx context.Context, keyHash string) (*KeyMetadata, error)
}

// StaticKeyStore implements KeyStore over the keys declared in configuration.
// Reload swaps the whole index atomically.
type StaticKeyStore struct {
	mu     sync.RWMutex
	byHash map[string]*KeyMetadata
}

func NewStaticKeyStore(keys []config.APIKeyConfig) *StaticKeyStore {
	s := &StaticKeyStore{}
	s.Reload(keys)
	return s
}

func (s *StaticKeyStore) Reload(keys []config.APIKeyConfig) {
	byHash := make(map[string]*KeyMetadata, len(keys))
	for _, k := range keys {
		byHash[k.KeyHash] = &KeyMetadata{
			ID:                 k.ID,
			Name:               k.Name,
			RPMLimit:           k.RPMLimit,
			DailyDispatchLimit: k.DailyDispatchLimit,
		}
	}
	s.mu.Lock()
	s.byHash = byHash
	s.mu.Unlock()
}

func (s *StaticKeyStore) Lookup(_ context.Context, keyHash string) (*KeyMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.byHash[keyHash]
	if !ok {
		return nil, nil
	}
	return meta, nil
}
