package server

import (
	"context"
	"fmt"
	"sort"
	"sync"

	config "github.com/inference-gateway/menu-agents/server/config"
	zap "go.uber.org/zap"
)

// RepositoryFactory defines the interface for creating repository instances
type RepositoryFactory interface {
	// CreateRepository creates a repository with the given configuration
	CreateRepository(ctx context.Context, config config.StorageConfig, logger *zap.Logger) (Repository, error)

	// SupportedProvider returns the provider name this factory supports
	SupportedProvider() string

	// ValidateConfig validates the configuration for this provider
	ValidateConfig(config config.StorageConfig) error
}

// RepositoryFactoryRegistry manages registered repository providers
type RepositoryFactoryRegistry struct {
	mu        sync.RWMutex
	factories map[string]RepositoryFactory
}

// globalRegistry is the global repository factory registry
var globalRegistry = &RepositoryFactoryRegistry{
	factories: make(map[string]RepositoryFactory),
}

// RegisterRepositoryProvider registers a repository provider factory
func RegisterRepositoryProvider(provider string, factory RepositoryFactory) {
	globalRegistry.Register(provider, factory)
}

// GetRepositoryProvider retrieves a repository provider factory
func GetRepositoryProvider(provider string) (RepositoryFactory, error) {
	return globalRegistry.GetFactory(provider)
}

// GetSupportedProviders returns the sorted names of all registered providers
func GetSupportedProviders() []string {
	return globalRegistry.GetProviders()
}

// CreateRepository creates a repository using the registered factories. An
// empty provider selects the in-memory repository.
func CreateRepository(ctx context.Context, config config.StorageConfig, logger *zap.Logger) (Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if config.Provider == "" {
		config.Provider = "memory"
	}

	return globalRegistry.CreateRepository(ctx, config, logger)
}

// Register registers a factory for a provider
func (r *RepositoryFactoryRegistry) Register(provider string, factory RepositoryFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if factory.SupportedProvider() != provider {
		panic(fmt.Sprintf("factory provider mismatch: expected %s, got %s", provider, factory.SupportedProvider()))
	}

	r.factories[provider] = factory
}

// GetFactory retrieves a factory for a provider
func (r *RepositoryFactoryRegistry) GetFactory(provider string) (RepositoryFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.factories[provider]
	if !exists {
		return nil, fmt.Errorf("unsupported repository provider: %s (supported: %v)", provider, r.getProviderNames())
	}

	return factory, nil
}

// GetProviders returns a sorted list of all registered provider names
func (r *RepositoryFactoryRegistry) GetProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getProviderNames()
}

// getProviderNames returns provider names (must be called with read lock held)
func (r *RepositoryFactoryRegistry) getProviderNames() []string {
	providers := make([]string, 0, len(r.factories))
	for provider := range r.factories {
		providers = append(providers, provider)
	}
	sort.Strings(providers)
	return providers
}

// CreateRepository creates a repository using the appropriate factory
func (r *RepositoryFactoryRegistry) CreateRepository(ctx context.Context, config config.StorageConfig, logger *zap.Logger) (Repository, error) {
	factory, err := r.GetFactory(config.Provider)
	if err != nil {
		return nil, err
	}

	if err := factory.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration for provider %s: %w", config.Provider, err)
	}

	return factory.CreateRepository(ctx, config, logger)
}

// InMemoryRepositoryFactory implements RepositoryFactory for in-memory storage
type InMemoryRepositoryFactory struct{}

// SupportedProvider returns the provider name
func (f *InMemoryRepositoryFactory) SupportedProvider() string {
	return "memory"
}

// ValidateConfig accepts any configuration
func (f *InMemoryRepositoryFactory) ValidateConfig(config config.StorageConfig) error {
	return nil
}

// CreateRepository creates an in-memory repository
func (f *InMemoryRepositoryFactory) CreateRepository(ctx context.Context, config config.StorageConfig, logger *zap.Logger) (Repository, error) {
	return NewInMemoryRepository(logger), nil
}

func init() {
	RegisterRepositoryProvider("memory", &InMemoryRepositoryFactory{})
	RegisterRepositoryProvider("redis", &RedisRepositoryFactory{})
	RegisterRepositoryProvider("postgres", &PostgresRepositoryFactory{})
}
