package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	config "github.com/inference-gateway/menu-agents/server/config"
	pq "github.com/lib/pq"
	zap "go.uber.org/zap"
)

const defaultPostgresTable = "agent_kv"

// PostgresRepositoryFactory implements RepositoryFactory for PostgreSQL
type PostgresRepositoryFactory struct{}

// SupportedProvider returns the provider name
func (f *PostgresRepositoryFactory) SupportedProvider() string {
	return "postgres"
}

// ValidateConfig validates the configuration for PostgreSQL
func (f *PostgresRepositoryFactory) ValidateConfig(config config.StorageConfig) error {
	if config.URL == "" {
		return fmt.Errorf("URL is required for postgres repository provider")
	}
	return nil
}

// CreateRepository opens the database, creates the table when missing and
// returns a repository over it
func (f *PostgresRepositoryFactory) CreateRepository(ctx context.Context, config config.StorageConfig, logger *zap.Logger) (Repository, error) {
	db, err := sql.Open("postgres", config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if maxConnsStr, exists := config.Options["max_open_conns"]; exists {
		if maxConns, err := strconv.Atoi(maxConnsStr); err == nil && maxConns > 0 {
			db.SetMaxOpenConns(maxConns)
		}
	}
	if lifetimeStr, exists := config.Options["conn_max_lifetime"]; exists {
		if lifetime, err := time.ParseDuration(lifetimeStr); err == nil {
			db.SetConnMaxLifetime(lifetime)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	table := config.Options["table"]
	if table == "" {
		table = defaultPostgresTable
	}

	repo := NewPostgresRepository(db, table, config.KeyPrefix, logger)
	if err := repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("connected to postgres", zap.String("table", table))
	return repo, nil
}

// PostgresRepository implements Repository over a single key/value table
type PostgresRepository struct {
	db        *sql.DB
	table     string
	keyPrefix string
	logger    *zap.Logger
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository wraps an open database handle
func NewPostgresRepository(db *sql.DB, table, keyPrefix string, logger *zap.Logger) *PostgresRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresRepository{
		db:        db,
		table:     pq.QuoteIdentifier(table),
		keyPrefix: keyPrefix,
		logger:    logger,
	}
}

// Migrate creates the backing table when it does not exist
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		value BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`, r.table)

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", r.table, err)
	}
	return nil
}

// Get returns the value stored under key
func (r *PostgresRepository) Get(ctx context.Context, key string) ([]byte, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, r.table)

	var value []byte
	err := r.db.QueryRowContext(ctx, query, r.keyPrefix+key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, nil
}

// Set upserts value under key
func (r *PostgresRepository) Set(ctx context.Context, key string, value []byte) error {
	query := fmt.Sprintf(`INSERT INTO %s (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`, r.table)

	if _, err := r.db.ExecContext(ctx, query, r.keyPrefix+key, value); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	r.logger.Debug("repository key stored", zap.String("key", key), zap.Int("size", len(value)))
	return nil
}

// List returns entries under prefix ordered by key
func (r *PostgresRepository) List(ctx context.Context, prefix string) ([]Entry, error) {
	query := fmt.Sprintf(`SELECT key, value FROM %s WHERE key LIKE $1 ESCAPE '\' ORDER BY key`, r.table)

	rows, err := r.db.QueryContext(ctx, query, escapeLikePattern(r.keyPrefix+prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to list keys with prefix %s: %w", prefix, err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]Entry, 0)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		entries = append(entries, Entry{Key: strings.TrimPrefix(key, r.keyPrefix), Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	// collation order in the database may differ from byte order
	sortEntries(entries)
	return entries, nil
}

// Delete removes key
func (r *PostgresRepository) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, r.table)
	if _, err := r.db.ExecContext(ctx, query, r.keyPrefix+key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Close closes the database handle
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func escapeLikePattern(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}
