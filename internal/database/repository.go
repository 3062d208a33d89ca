package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"quest-server/internal/model"
)

// DBTX - минимальный контракт исполнителя запросов (*pgxpool.Pool или pgx.Tx).
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GameStateRepository - долговременное хранилище состояний комнат.
type GameStateRepository interface {
	Save(ctx context.Context, state *model.GameState) error
	GetByRoomID(ctx context.Context, roomID string) (*model.GameState, error)
	Delete(ctx context.Context, roomID string) error
}

const (
	gameStateFields = `room_id, location, character_states, character_conditions, world_context, active_encounters, last_updated`

	upsertGameStateQuery = `
        INSERT INTO game_states
            (room_id, location, character_states, character_conditions, world_context, active_encounters, last_updated)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (room_id) DO UPDATE SET
            location = EXCLUDED.location,
            character_states = EXCLUDED.character_states,
            character_conditions = EXCLUDED.character_conditions,
            world_context = EXCLUDED.world_context,
            active_encounters = EXCLUDED.active_encounters,
            last_updated = EXCLUDED.last_updated
    `
	getGameStateByRoomIDQuery = `
        SELECT ` + gameStateFields + `
        FROM game_states
        WHERE room_id = $1
    `
	deleteGameStateQuery = `DELETE FROM game_states WHERE room_id = $1`
)

// Compile-time check to ensure pgGameStateRepository implements the interface
var _ GameStateRepository = (*pgGameStateRepository)(nil)

type pgGameStateRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgGameStateRepository создает PostgreSQL-реализацию GameStateRepository.
func NewPgGameStateRepository(db DBTX, logger *zap.Logger) GameStateRepository {
	return &pgGameStateRepository{
		db:     db,
		logger: logger.Named("PgGameStateRepo"),
	}
}

// Save создает или обновляет состояние комнаты целиком (upsert по room_id).
func (r *pgGameStateRepository) Save(ctx context.Context, state *model.GameState) error {
	state.Touch()

	_, err := r.db.Exec(ctx, upsertGameStateQuery,
		state.RoomID,
		state.Location,
		state.CharacterStates,
		state.CharacterConditions,
		state.WorldContext,
		state.ActiveEncounters,
		state.LastUpdated,
	)
	if err != nil {
		r.logger.Error("Ошибка сохранения состояния комнаты",
			zap.String("room_id", state.RoomID), zap.Error(err))
		return fmt.Errorf("ошибка сохранения состояния комнаты %s: %w", state.RoomID, err)
	}

	r.logger.Debug("Состояние комнаты сохранено", zap.String("room_id", state.RoomID))
	return nil
}

// GetByRoomID возвращает состояние комнаты или model.ErrNotFound.
func (r *pgGameStateRepository) GetByRoomID(ctx context.Context, roomID string) (*model.GameState, error) {
	var state model.GameState
	err := pgxscan.Get(ctx, r.db, &state, getGameStateByRoomIDQuery, roomID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("Состояние комнаты не найдено", zap.String("room_id", roomID))
			return nil, model.ErrNotFound
		}
		r.logger.Error("Ошибка чтения состояния комнаты",
			zap.String("room_id", roomID), zap.Error(err))
		return nil, fmt.Errorf("ошибка чтения состояния комнаты %s: %w", roomID, err)
	}
	return &state, nil
}

// Delete удаляет состояние комнаты. Отсутствие записи - model.ErrNotFound.
func (r *pgGameStateRepository) Delete(ctx context.Context, roomID string) error {
	cmdTag, err := r.db.Exec(ctx, deleteGameStateQuery, roomID)
	if err != nil {
		r.logger.Error("Ошибка удаления состояния комнаты",
			zap.String("room_id", roomID), zap.Error(err))
		return fmt.Errorf("ошибка удаления состояния комнаты %s: %w", roomID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	r.logger.Info("Состояние комнаты удалено", zap.String("room_id", roomID))
	return nil
}
