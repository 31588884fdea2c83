package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GlacierEQ/llmbridge/services"
	"github.com/GlacierEQ/llmbridge/services/providers"
)

// RecordKey is the fixed secret-store record name for client settings.
const RecordKey = "llmbridge/settings"

// DefaultProvider is the active provider before any configuration is loaded.
const DefaultProvider = "openai"

// Settings is the persisted client configuration: which provider is active,
// per-provider API keys, and per-provider base URL overrides.
type Settings struct {
	ActiveProvider  string            `json:"active_provider"`
	Keys            map[string]string `json:"keys"`
	CustomEndpoints map[string]string `json:"custom_endpoints"`
}

func defaultSettings() Settings {
	return Settings{
		ActiveProvider:  DefaultProvider,
		Keys:            make(map[string]string),
		CustomEndpoints: make(map[string]string),
	}
}

// Service loads and persists Settings through a SecretStore, optionally
// encrypting API keys with a Cipher. Every mutation writes through to the
// store immediately.
type Service struct {
	store    SecretStore
	cipher   Cipher // nil means keys are stored in plaintext
	registry *providers.Registry
	logger   *zap.Logger

	mu       sync.RWMutex
	settings Settings
}

// NewService creates a Service with default settings; call Load to pick up
// persisted state.
func NewService(store SecretStore, cipher Cipher, registry *providers.Registry, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		cipher:   cipher,
		registry: registry,
		logger:   logger,
		settings: defaultSettings(),
	}
}

// Load reads the settings record and merges it over the defaults. Keys are
// decrypted individually: a decryption failure for one provider falls back to
// the stored value for that provider only and never fails the load.
func (s *Service) Load(ctx context.Context) error {
	blob, err := s.store.Read(ctx, RecordKey)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if blob == nil {
		return nil // first run, keep defaults
	}

	var stored Settings
	if err := json.Unmarshal(blob, &stored); err != nil {
		return fmt.Errorf("failed to parse settings record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if stored.ActiveProvider != "" {
		s.settings.ActiveProvider = stored.ActiveProvider
	}
	for provider, endpoint := range stored.CustomEndpoints {
		s.settings.CustomEndpoints[provider] = endpoint
	}
	for provider, key := range stored.Keys {
		s.settings.Keys[provider] = s.decryptKey(provider, key)
	}
	return nil
}

func (s *Service) decryptKey(provider, stored string) string {
	if s.cipher == nil {
		return stored
	}
	plain, err := s.cipher.Decrypt(stored, provider)
	if err != nil {
		s.logger.Warn("failed to decrypt stored API key, using raw value",
			zap.String("provider", provider),
			zap.Error(err))
		return stored
	}
	return plain
}

// Save serializes the current settings and writes them through to the store.
// Keys are encrypted individually when a cipher is present; a failure for one
// provider stores that provider's key as-is and does not block the others.
func (s *Service) Save(ctx context.Context) error {
	s.mu.RLock()
	record := Settings{
		ActiveProvider:  s.settings.ActiveProvider,
		Keys:            make(map[string]string, len(s.settings.Keys)),
		CustomEndpoints: make(map[string]string, len(s.settings.CustomEndpoints)),
	}
	for provider, endpoint := range s.settings.CustomEndpoints {
		record.CustomEndpoints[provider] = endpoint
	}
	for provider, key := range s.settings.Keys {
		record.Keys[provider] = s.encryptKey(provider, key)
	}
	s.mu.RUnlock()

	blob, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize settings: %w", err)
	}
	if err := s.store.Write(ctx, RecordKey, blob); err != nil {
		return fmt.Errorf("failed to persist settings: %w", err)
	}
	return nil
}

func (s *Service) encryptKey(provider, plain string) string {
	if s.cipher == nil {
		return plain
	}
	sealed, err := s.cipher.Encrypt(plain, provider)
	if err != nil {
		s.logger.Warn("failed to encrypt API key, storing raw value",
			zap.String("provider", provider),
			zap.Error(err))
		return plain
	}
	return sealed
}

// SetAPIKey stores the key for a provider and persists immediately.
func (s *Service) SetAPIKey(ctx context.Context, provider, key string) error {
	if !s.registry.Has(provider) {
		return &services.UnknownProviderError{Provider: provider}
	}

	s.mu.Lock()
	s.settings.Keys[provider] = key
	s.mu.Unlock()

	return s.Save(ctx)
}

// SetCustomEndpoint stores a base URL override for a provider and persists
// immediately.
func (s *Service) SetCustomEndpoint(ctx context.Context, provider, endpoint string) error {
	if !s.registry.Has(provider) {
		return &services.UnknownProviderError{Provider: provider}
	}

	s.mu.Lock()
	s.settings.CustomEndpoints[provider] = endpoint
	s.mu.Unlock()

	return s.Save(ctx)
}

// SetActiveProvider switches the default provider. Providers that require a
// user-supplied endpoint must have one set first.
func (s *Service) SetActiveProvider(ctx context.Context, provider string) error {
	desc, err := s.registry.Describe(provider)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if desc.RequiresEndpoint && s.settings.CustomEndpoints[provider] == "" {
		s.mu.Unlock()
		return &services.MissingConfigurationError{Provider: provider, Field: "custom endpoint"}
	}
	s.settings.ActiveProvider = provider
	s.mu.Unlock()

	return s.Save(ctx)
}

// ActiveProvider returns the currently selected provider id.
func (s *Service) ActiveProvider() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.ActiveProvider
}

// APIKey returns the stored key for a provider ("" when unset).
func (s *Service) APIKey(provider string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Keys[provider]
}

// CustomEndpoint returns the base URL override for a provider ("" when unset).
func (s *Service) CustomEndpoint(provider string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.CustomEndpoints[provider]
}

// IsConfigured reports whether the provider is fully usable with the current
// settings.
func (s *Service) IsConfigured(provider string) bool {
	s.mu.RLock()
	key := s.settings.Keys[provider]
	endpoint := s.settings.CustomEndpoints[provider]
	s.mu.RUnlock()
	return s.registry.IsConfigured(provider, key, endpoint)
}

// Snapshot returns a copy of the current settings with keys redacted, for
// reporting through the gateway.
func (s *Service) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := Settings{
		ActiveProvider:  s.settings.ActiveProvider,
		Keys:            make(map[string]string, len(s.settings.Keys)),
		CustomEndpoints: make(map[string]string, len(s.settings.CustomEndpoints)),
	}
	for provider, key := range s.settings.Keys {
		if key != "" {
			out.Keys[provider] = "********"
		}
	}
	for provider, endpoint := range s.settings.CustomEndpoints {
		out.CustomEndpoints[provider] = endpoint
	}
	return out
}
