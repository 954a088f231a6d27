package database

import (
	"context"
	"fmt"
)

// EnsureSchema creates the tables the engine needs when they do not exist.
// Deployments that predate some columns keep working: the engine detects
// column availability at startup and degrades through its fallback chains,
// so this bootstrap is only the schema new installs get.
func EnsureSchema(ctx context.Context, pool DBPool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT,
			total_capital NUMERIC NOT NULL DEFAULT 0,
			available_funds NUMERIC NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			entry_price NUMERIC NOT NULL,
			stop_loss NUMERIC,
			target_price NUMERIC,
			exit_price NUMERIC,
			position_percent NUMERIC NOT NULL DEFAULT 0,
			outcome TEXT NOT NULL DEFAULT 'OPEN',
			closed_at TIMESTAMP,
			deleted_at TIMESTAMP,
			pnl NUMERIC,
			pl_percent NUMERIC,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_user_id ON trades (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_user_outcome ON trades (user_id, outcome)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
