package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/bimakw/nexus-orchestrator/internal/config"
)

// PostgresDB is the connection pool behind the intent journal
type PostgresDB struct {
	db      *sqlx.DB
	journal *IntentRepo
	logger  *zap.Logger
}

// OpenJournal connects to PostgreSQL, sizes the pool and ensures the intents
// schema. Any failure closes the pool so callers can run without a journal.
func OpenJournal(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*PostgresDB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	journal := NewIntentRepo(db)
	if err := journal.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("Intent journal ready",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Name),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)

	return &PostgresDB{
		db:      db,
		journal: journal,
		logger:  logger,
	}, nil
}

// Journal returns the intent repository on this pool
func (p *PostgresDB) Journal() *IntentRepo {
	return p.journal
}

// Close closes the pool
func (p *PostgresDB) Close() error {
	stats := p.db.Stats()
	p.logger.Debug("Closing intent journal",
		zap.Int("open_connections", stats.OpenConnections),
		zap.Int64("wait_count", stats.WaitCount),
	)
	return p.db.Close()
}

// HealthCheck reports whether the intents table is reachable
func (p *PostgresDB) HealthCheck(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, "SELECT 1 FROM intents LIMIT 1"); err != nil {
		return fmt.Errorf("intent journal unavailable: %w", err)
	}
	return nil
}
