package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const createGameStatesTableQuery = `
    CREATE TABLE IF NOT EXISTS game_states (
        room_id              TEXT PRIMARY KEY,
        location             JSONB NOT NULL DEFAULT '{}'::jsonb,
        character_states     JSONB NOT NULL DEFAULT '{}'::jsonb,
        character_conditions JSONB NOT NULL DEFAULT '{}'::jsonb,
        world_context        JSONB NOT NULL DEFAULT '{}'::jsonb,
        active_encounters    JSONB NOT NULL DEFAULT '{}'::jsonb,
        last_updated         TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )
`

// NewPgxPool создает пул соединений PostgreSQL и проверяет доступность базы.
func NewPgxPool(ctx context.Context, dsn string, maxConns int, idleTimeout time.Duration, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора DSN: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}
	if idleTimeout > 0 {
		poolCfg.MaxConnIdleTime = idleTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула соединений: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("база данных недоступна: %w", err)
	}

	logger.Info("Подключение к PostgreSQL установлено")
	return pool, nil
}

// EnsureSchema создает таблицу состояний комнат, если ее еще нет.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if _, err := pool.Exec(ctx, createGameStatesTableQuery); err != nil {
		return fmt.Errorf("ошибка создания схемы game_states: %w", err)
	}
	logger.Info("Схема game_states готова")
	return nil
}
