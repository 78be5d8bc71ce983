// Package postgres provides the Postgres-backed participant store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/browserbot-relay/internal/participant"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// StoreConfig controls the Postgres connection pool used for participant rows.
type StoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store reads participant rows from Postgres.
type Store struct {
	pool  rowQuerier
	table string
}

// NewStore creates a Postgres-backed Store using the provided config.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("participants.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "participants"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewStoreWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewStoreWithPool(pool rowQuerier, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "participants"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Get returns the participant with the given code, or participant.ErrNotFound.
func (s *Store) Get(ctx context.Context, code string) (participant.Participant, error) {
	query := fmt.Sprintf(
		"SELECT code, session_code, COALESCE(label, '') FROM %s WHERE code = $1",
		s.table,
	)
	var p participant.Participant
	err := s.pool.QueryRow(ctx, query, code).Scan(&p.Code, &p.SessionCode, &p.Label)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return participant.Participant{}, participant.ErrNotFound
		}
		return participant.Participant{}, fmt.Errorf("query participant %s: %w", code, err)
	}
	return p, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	s.pool.Close()
}
