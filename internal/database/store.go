package database

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"quest-server/internal/model"
)

// GameStateStore - сквозное хранилище состояний: чтение через кэш с фолбэком
// в PostgreSQL, запись в базу с best-effort обновлением кэша.
type GameStateStore struct {
	repo   GameStateRepository
	cache  *GameStateCache
	logger *zap.Logger
}

// NewGameStateStore создает хранилище. cache может быть nil (без кэширования).
func NewGameStateStore(repo GameStateRepository, cache *GameStateCache, logger *zap.Logger) *GameStateStore {
	return &GameStateStore{
		repo:   repo,
		cache:  cache,
		logger: logger.Named("GameStateStore"),
	}
}

// Load возвращает состояние комнаты; при отсутствии - model.ErrNotFound.
func (s *GameStateStore) Load(ctx context.Context, roomID string) (*model.GameState, error) {
	if s.cache != nil {
		state, err := s.cache.Get(ctx, roomID)
		if err == nil {
			return state, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			s.logger.Warn("Кэш состояний недоступен, чтение из базы",
				zap.String("room_id", roomID), zap.Error(err))
		}
	}

	state, err := s.repo.GetByRoomID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, state); cacheErr != nil {
			s.logger.Warn("Не удалось прогреть кэш состояний",
				zap.String("room_id", roomID), zap.Error(cacheErr))
		}
	}
	return state, nil
}

// Save сохраняет состояние в базу и обновляет кэш.
func (s *GameStateStore) Save(ctx context.Context, state *model.GameState) error {
	if err := s.repo.Save(ctx, state); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, state); err != nil {
			s.logger.Warn("Не удалось обновить кэш состояний",
				zap.String("room_id", state.RoomID), zap.Error(err))
		}
	}
	return nil
}
