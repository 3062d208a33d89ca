package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"quest-server/internal/model"
)

// ErrBehaviorNotImplemented возвращается при запросе перехода в режим,
// который зарезервирован, но еще не реализован (сейчас - боевой).
var ErrBehaviorNotImplemented = errors.New("режим обработки не реализован")

// GameSession - координатор одной игровой комнаты: владеет гейтом хода,
// текущим поведением и контекстом сессии. Перехватывает управляющие события
// раунда (переходы режима, ограничения действий) и применяет их к себе,
// пропуская все события дальше наблюдателю без изменений.
//
// Координатор не потокобезопасен: синхронизацию по комнате обеспечивает
// вызывающая сторона (SessionManager держит по одной горутине на комнату).
type GameSession struct {
	sctx     *SessionContext
	gate     TurnGate
	behavior Behavior
	logger   *zap.Logger
}

// NewGameSession создает сессию в режиме исследования с гейтом по умолчанию.
func NewGameSession(sctx *SessionContext, behavior Behavior, logger *zap.Logger) *GameSession {
	return &GameSession{
		sctx:     sctx,
		gate:     NewAllActorsGate(),
		behavior: behavior,
		logger:   logger.Named("GameSession").With(zap.String("room_id", sctx.State.RoomID)),
	}
}

// State возвращает состояние мира сессии.
func (s *GameSession) State() *model.GameState {
	return s.sctx.State
}

// Members возвращает текущий ростер комнаты.
func (s *GameSession) Members() []model.RoomMember {
	return s.sctx.Members
}

// SetMembers обновляет ростер (вход/выход игроков между раундами).
func (s *GameSession) SetMembers(members []model.RoomMember) {
	s.sctx.Members = members
}

// CanAct сообщает, может ли участник подать действие в текущий раунд.
func (s *GameSession) CanAct(userID, characterID string) bool {
	return s.gate.CanAct(userID, characterID)
}

// CanAdvance сообщает, достаточно ли собранных действий для закрытия раунда.
func (s *GameSession) CanAdvance(actions []model.PlayerAction) bool {
	return s.gate.CanAdvance(actions, len(s.sctx.Members))
}

// GateStatus возвращает описательный статус гейта для HTTP-слоя.
func (s *GameSession) GateStatus() GateStatus {
	return s.gate.Status()
}

// ProcessActions прогоняет собранный раунд через текущее поведение.
// События перехватываются на лету: ограничение действий заменяет гейт,
// запрос перехода переключает поведение. Все события, включая управляющие,
// доходят до emit в исходном порядке.
//
// Запрос нереализованного режима не срывает раунд: оставшиеся события
// доставляются, ход закрывается, а ErrBehaviorNotImplemented возвращается
// после завершения.
func (s *GameSession) ProcessActions(ctx context.Context, actions []model.PlayerAction, emit EmitFunc) error {
	var transitionErr error

	intercept := func(event model.SessionEvent) {
		switch event.Type {
		case model.EventActionRestriction:
			s.applyRestriction(event.Restriction)
		case model.EventStateTransition:
			if err := s.switchBehavior(ctx, event.Transition); err != nil {
				transitionErr = err
			}
		}
		emit(event)
	}

	if err := s.behavior.ProcessActions(ctx, actions, intercept); err != nil {
		return err
	}
	return transitionErr
}

// applyRestriction заменяет гейт согласно событию: пустой список снимает
// все ограничения, непустой сужает круг действующих персонажей.
func (s *GameSession) applyRestriction(restriction *model.ActionRestrictionEvent) {
	if restriction == nil {
		return
	}
	if len(restriction.AllowedCharacterIDs) == 0 {
		s.gate = NewAllActorsGate()
		s.logger.Info("Ограничения действий сняты")
		return
	}
	s.gate = NewRestrictedGate(restriction.AllowedCharacterIDs, restriction.Reason)
	s.logger.Info("Действия ограничены",
		zap.Strings("allowed_character_ids", restriction.AllowedCharacterIDs),
		zap.String("reason", restriction.Reason),
	)
}

// switchBehavior выполняет запрошенный переход режима. Переход в боевой режим
// зарезервирован и возвращает ErrBehaviorNotImplemented; возврат в режим
// исследования сбрасывает гейт к значению по умолчанию.
func (s *GameSession) switchBehavior(ctx context.Context, transition *model.StateTransitionEvent) error {
	if transition == nil {
		return nil
	}
	switch transition.To {
	case BehaviorCombat:
		s.logger.Warn("Запрошен переход в боевой режим",
			zap.String("reason", transition.Reason))
		return fmt.Errorf("переход в режим '%s': %w", transition.To, ErrBehaviorNotImplemented)
	case BehaviorExploration:
		if s.behavior.Name() == BehaviorExploration {
			return nil
		}
		if err := s.behavior.OnExit(ctx); err != nil {
			s.logger.Warn("Ошибка выхода из режима", zap.String("mode", s.behavior.Name()), zap.Error(err))
		}
		s.gate = NewAllActorsGate()
		s.logger.Info("Возврат в режим исследования", zap.String("reason", transition.Reason))
		return nil
	default:
		return fmt.Errorf("переход в режим '%s': %w", transition.To, ErrBehaviorNotImplemented)
	}
}
