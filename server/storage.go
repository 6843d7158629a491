package server

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	zap "go.uber.org/zap"
)

// ErrNotFound is returned by Repository.Get for a missing key
var ErrNotFound = errors.New("key not found")

// Entry is one key/value pair returned by Repository.List
type Entry struct {
	Key   string
	Value []byte
}

// Repository is the key/value store agents keep their state in. Values are
// opaque bytes; agents encode their own records.
type Repository interface {
	// Get returns the value stored under key or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key string, value []byte) error

	// List returns every entry whose key starts with prefix, sorted by key
	List(ctx context.Context, prefix string) ([]Entry, error)

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// Close releases the backend connection
	Close() error
}

var _ Repository = (*InMemoryRepository)(nil)

// InMemoryRepository is a map backed Repository for tests and single process deployments
type InMemoryRepository struct {
	logger *zap.Logger
	mu     sync.RWMutex
	data   map[string][]byte
}

// NewInMemoryRepository creates an empty in-memory repository
func NewInMemoryRepository(logger *zap.Logger) *InMemoryRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryRepository{
		logger: logger,
		data:   make(map[string][]byte),
	}
}

// Get returns a copy of the value stored under key
func (r *InMemoryRepository) Get(ctx context.Context, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	value, exists := r.data[key]
	if !exists {
		return nil, ErrNotFound
	}
	return cloneBytes(value), nil
}

// Set stores a copy of value under key
func (r *InMemoryRepository) Set(ctx context.Context, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[key] = cloneBytes(value)
	r.logger.Debug("repository key stored", zap.String("key", key), zap.Int("size", len(value)))
	return nil
}

// List returns entries under prefix sorted by key
func (r *InMemoryRepository) List(ctx context.Context, prefix string) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0)
	for key, value := range r.data {
		if strings.HasPrefix(key, prefix) {
			entries = append(entries, Entry{Key: key, Value: cloneBytes(value)})
		}
	}
	sortEntries(entries)
	return entries, nil
}

// Delete removes key
func (r *InMemoryRepository) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.data, key)
	return nil
}

// Close is a no-op for the in-memory repository
func (r *InMemoryRepository) Close() error {
	return nil
}

func cloneBytes(value []byte) []byte {
	if value == nil {
		return nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})
}
