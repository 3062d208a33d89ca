package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"quest-server/internal/dice"
	"quest-server/internal/model"
	"quest-server/pkg/ai"
)

// ErrActionNotAllowed возвращается, когда гейт хода не пропускает действие.
var ErrActionNotAllowed = errors.New("действие сейчас недоступно")

// StateStore - контракт хранилища состояний комнат (PostgreSQL + кэш).
type StateStore interface {
	Load(ctx context.Context, roomID string) (*model.GameState, error)
	Save(ctx context.Context, state *model.GameState) error
}

// EventSink публикует события раунда во внешнюю шину.
type EventSink interface {
	PublishSessionEvent(ctx context.Context, roomID string, event model.SessionEvent) error
}

// Емкость буфера подписчика SSE. Отстающий подписчик теряет события, а не
// блокирует раунд.
const subscriberBufferSize = 64

type roomRuntime struct {
	mu          sync.Mutex
	session     *GameSession
	sctx        *SessionContext
	pending     []model.PlayerAction
	subscribers map[int]chan model.SessionEvent
	nextSubID   int
}

// SessionManager - владелец всех активных комнат процесса: поднимает сессию
// из хранилища по первому обращению, собирает действия раунда, запускает
// обработку при закрытии гейта и раздает события подписчикам и шине.
type SessionManager struct {
	client    ai.ChatClient
	roller    dice.Roller
	store     StateStore
	sink      EventSink
	modelName string
	logger    *zap.Logger

	mu    sync.Mutex
	rooms map[string]*roomRuntime
}

// NewSessionManager создает менеджер. sink может быть nil (без внешней шины).
func NewSessionManager(client ai.ChatClient, roller dice.Roller, store StateStore, sink EventSink, modelName string, logger *zap.Logger) *SessionManager {
	return &SessionManager{
		client:    client,
		roller:    roller,
		store:     store,
		sink:      sink,
		modelName: modelName,
		logger:    logger.Named("SessionManager"),
		rooms:     make(map[string]*roomRuntime),
	}
}

// getOrCreateRoom возвращает рантайм комнаты, поднимая сессию из хранилища
// при первом обращении. Отсутствие сохранения означает новую комнату.
func (m *SessionManager) getOrCreateRoom(ctx context.Context, roomID string) (*roomRuntime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rt, ok := m.rooms[roomID]; ok {
		return rt, nil
	}

	state, err := m.store.Load(ctx, roomID)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		state = model.NewGameState(roomID)
		m.logger.Info("Создана новая комната", zap.String("room_id", roomID))
	} else {
		m.logger.Info("Комната восстановлена из хранилища", zap.String("room_id", roomID))
	}

	sctx := &SessionContext{State: state}
	mechanics := NewMechanicsAgent(m.roller, m.logger)
	updater := NewWorldContextUpdater(m.client, m.logger)
	builder := NewPromptContextBuilder(m.modelName)
	narrator := NewNarratorAgent(m.client, mechanics, updater, builder, sctx, m.logger)

	rt := &roomRuntime{
		session:     NewGameSession(sctx, narrator, m.logger),
		sctx:        sctx,
		subscribers: make(map[int]chan model.SessionEvent),
	}
	m.rooms[roomID] = rt
	return rt, nil
}

// SubmitAction принимает действие игрока. Участник комнаты регистрируется
// по факту подачи. Если после приема действия гейт позволяет закрыть раунд,
// раунд обрабатывается немедленно, до возврата из вызова.
// Возвращает признак того, что раунд был обработан.
func (m *SessionManager) SubmitAction(ctx context.Context, roomID string, action model.PlayerAction) (bool, error) {
	rt, err := m.getOrCreateRoom(ctx, roomID)
	if err != nil {
		return false, err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	upsertMember(rt.sctx, action)

	if !rt.session.CanAct(action.UserID, action.CharacterID) {
		return false, ErrActionNotAllowed
	}
	rt.pending = append(rt.pending, action)

	if !rt.session.CanAdvance(rt.pending) {
		return false, nil
	}
	return true, m.runRound(ctx, roomID, rt)
}

// runRound обрабатывает собранный раунд под блокировкой комнаты: события
// уходят подписчикам и в шину по мере генерации, состояние сохраняется
// после завершения независимо от исхода.
func (m *SessionManager) runRound(ctx context.Context, roomID string, rt *roomRuntime) error {
	actions := rt.pending
	rt.pending = nil

	emit := func(event model.SessionEvent) {
		rt.broadcast(event)
		if m.sink != nil {
			if err := m.sink.PublishSessionEvent(ctx, roomID, event); err != nil {
				m.logger.Warn("Не удалось опубликовать событие в шину",
					zap.String("room_id", roomID), zap.Error(err))
			}
		}
	}

	roundErr := rt.session.ProcessActions(ctx, actions, emit)

	// Частично обновленное состояние (например, после удачных проверок)
	// сохраняется даже при ошибке раунда.
	if err := m.store.Save(ctx, rt.sctx.State); err != nil {
		m.logger.Error("Не удалось сохранить состояние комнаты после раунда",
			zap.String("room_id", roomID), zap.Error(err))
		if roundErr == nil {
			roundErr = err
		}
	}
	return roundErr
}

// Subscribe подписывает на события комнаты. Возвращает канал и функцию отписки.
func (m *SessionManager) Subscribe(ctx context.Context, roomID string) (<-chan model.SessionEvent, func(), error) {
	rt, err := m.getOrCreateRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}

	rt.mu.Lock()
	id := rt.nextSubID
	rt.nextSubID++
	ch := make(chan model.SessionEvent, subscriberBufferSize)
	rt.subscribers[id] = ch
	rt.mu.Unlock()

	cancel := func() {
		rt.mu.Lock()
		if sub, ok := rt.subscribers[id]; ok {
			delete(rt.subscribers, id)
			close(sub)
		}
		rt.mu.Unlock()
	}
	return ch, cancel, nil
}

// Snapshot возвращает состояние комнаты и статус гейта для HTTP-слоя.
func (m *SessionManager) Snapshot(ctx context.Context, roomID string) (*model.GameState, GateStatus, error) {
	rt, err := m.getOrCreateRoom(ctx, roomID)
	if err != nil {
		return nil, GateStatus{}, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.sctx.State, rt.session.GateStatus(), nil
}

// broadcast рассылает событие подписчикам без блокировки: переполненный
// буфер подписчика означает потерю события для него.
func (rt *roomRuntime) broadcast(event model.SessionEvent) {
	for _, ch := range rt.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// upsertMember регистрирует или обновляет участника ростера по user_id.
func upsertMember(sctx *SessionContext, action model.PlayerAction) {
	for i, m := range sctx.Members {
		if m.UserID == action.UserID {
			sctx.Members[i] = model.RoomMember{
				UserID:        action.UserID,
				Username:      action.Username,
				CharacterID:   action.CharacterID,
				CharacterName: action.CharacterName,
			}
			return
		}
	}
	sctx.Members = append(sctx.Members, model.RoomMember{
		UserID:        action.UserID,
		Username:      action.Username,
		CharacterID:   action.CharacterID,
		CharacterName: action.CharacterName,
	})
}
