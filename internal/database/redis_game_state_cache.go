package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quest-server/internal/model"
)

// GameStateCache - Redis-кэш состояний комнат поверх PostgreSQL.
// Кэш работает по принципу best-effort: его недоступность не должна
// приводить к ошибкам пайплайна, только к походу в базу.
type GameStateCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewGameStateCache создает кэш с заданным TTL записей.
func NewGameStateCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *GameStateCache {
	return &GameStateCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("GameStateCache"),
	}
}

func gameStateKey(roomID string) string {
	return fmt.Sprintf("game_state:%s", roomID)
}

// Get возвращает состояние из кэша или model.ErrNotFound при промахе.
func (c *GameStateCache) Get(ctx context.Context, roomID string) (*model.GameState, error) {
	data, err := c.client.Get(ctx, gameStateKey(roomID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения состояния из Redis: %w", err)
	}

	var state model.GameState
	if err := json.Unmarshal(data, &state); err != nil {
		// Битая запись равносильна промаху.
		c.logger.Warn("Поврежденная запись в кэше состояний",
			zap.String("room_id", roomID), zap.Error(err))
		return nil, model.ErrNotFound
	}
	return &state, nil
}

// Set записывает состояние в кэш с TTL.
func (c *GameStateCache) Set(ctx context.Context, state *model.GameState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("ошибка сериализации состояния для кэша: %w", err)
	}
	if err := c.client.Set(ctx, gameStateKey(state.RoomID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("ошибка записи состояния в Redis: %w", err)
	}
	return nil
}

// Invalidate удаляет запись комнаты из кэша.
func (c *GameStateCache) Invalidate(ctx context.Context, roomID string) error {
	if err := c.client.Del(ctx, gameStateKey(roomID)).Err(); err != nil {
		return fmt.Errorf("ошибка инвалидации кэша состояния: %w", err)
	}
	return nil
}
