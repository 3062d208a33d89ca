package session

import (
	"context"

	"go.uber.org/zap"

	"quest-server/internal/model"
	"quest-server/pkg/ai"
)

// Имена режимов обработки хода.
const (
	BehaviorExploration = "exploration"
	BehaviorCombat      = "combat"
)

// Жесткий потолок раундов tool calling внутри одного хода. Достижение потолка -
// мягкая защита, а не ошибка: накопленный нарратив остается как есть.
const maxToolRounds = 5

// EmitFunc принимает события сессии по мере их возникновения.
type EmitFunc func(model.SessionEvent)

// Behavior - поведение обработки хода для одного режима (state machine по имени
// режима). Контракт рассчитан на добавление боевого режима без изменения
// вызывающей стороны.
type Behavior interface {
	Name() string
	OnEnter(ctx context.Context) error
	OnExit(ctx context.Context) error
	ProcessActions(ctx context.Context, actions []model.PlayerAction, emit EmitFunc) error
}

// NarratorAgent - поведение режима исследования: собирает контекст генерации,
// ведет ограниченный цикл tool calling с MechanicsAgent и по завершении
// обновляет память мира.
type NarratorAgent struct {
	client         ai.ChatClient
	mechanics      *MechanicsAgent
	updater        *WorldContextUpdater
	contextBuilder ContextBuilder
	sctx           *SessionContext
	logger         *zap.Logger
}

// NewNarratorAgent создает поведение режима исследования.
func NewNarratorAgent(
	client ai.ChatClient,
	mechanics *MechanicsAgent,
	updater *WorldContextUpdater,
	contextBuilder ContextBuilder,
	sctx *SessionContext,
	logger *zap.Logger,
) *NarratorAgent {
	return &NarratorAgent{
		client:         client,
		mechanics:      mechanics,
		updater:        updater,
		contextBuilder: contextBuilder,
		sctx:           sctx,
		logger:         logger.Named("NarratorAgent"),
	}
}

func (n *NarratorAgent) Name() string { return BehaviorExploration }

func (n *NarratorAgent) OnEnter(ctx context.Context) error {
	n.logger.Debug("Вход в режим исследования", zap.String("room_id", n.sctx.State.RoomID))
	return nil
}

func (n *NarratorAgent) OnExit(ctx context.Context) error {
	n.logger.Debug("Выход из режима исследования", zap.String("room_id", n.sctx.State.RoomID))
	return nil
}

// ProcessActions обрабатывает один раунд. Ошибки выполнения отдельных tool
// call'ов гасятся и возвращаются генератору как error-payload; ошибка самого
// вызова бэкенда пробрасывается вызывающей стороне - нарратива в этом случае нет.
func (n *NarratorAgent) ProcessActions(ctx context.Context, actions []model.PlayerAction, emit EmitFunc) error {
	history := n.contextBuilder.Build(n.sctx.State, n.sctx.Members)
	history = append(history, ai.Message{
		Role:    ai.RoleUser,
		Content: FormatActions(actions),
	})

	opts := &ai.ChatOptions{
		Tools:      ToolDefinitions(),
		ToolChoice: "auto",
	}

	var narrative string

	for round := 0; round < maxToolRounds; round++ {
		resp, err := n.client.Chat(ctx, history, opts)
		if err != nil {
			turnsProcessedTotal.WithLabelValues("error").Inc()
			return err
		}

		if !resp.HasToolCalls() {
			// Финальный нарратив раунда. Пустой контент допустим и ничего не излучает.
			if resp.Content != "" {
				narrative += resp.Content
				emit(model.NewNarrativeEvent(resp.Content))
			}
			break
		}

		// Сообщение ассистента с tool call'ами попадает в историю даже при
		// пустом контенте - иначе следующий вызов бэкенда будет бессвязным.
		history = append(history, ai.Message{
			Role:      ai.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			payload, event, err := n.mechanics.Execute(call, n.sctx)
			if err != nil {
				// Ошибка одного вызова не срывает раунд: генератор получает
				// error-payload и может отреагировать следующим ответом.
				n.logger.Warn("Ошибка выполнения tool call",
					zap.String("tool", call.Name),
					zap.String("call_id", call.ID),
					zap.Error(err),
				)
				payload = errorPayload(err.Error())
				event = nil
			}
			// Событие излучается до записи результата в историю: бросок виден
			// наблюдателю раньше, чем бэкенд увидит его результат.
			if event != nil {
				emit(*event)
			}
			history = append(history, ai.Message{
				Role:       ai.RoleTool,
				Content:    string(payload),
				ToolCallID: call.ID,
			})
		}

		if round == maxToolRounds-1 {
			n.logger.Warn("Достигнут потолок раундов tool calling",
				zap.String("room_id", n.sctx.State.RoomID),
				zap.Int("max_rounds", maxToolRounds),
			)
		}
	}

	// Обновление памяти мира идет после всего пользовательского вывода и
	// не способно провалить ход.
	n.updater.Update(ctx, narrative, actions, n.sctx.State, n.sctx.Members)

	turnsProcessedTotal.WithLabelValues("success").Inc()
	emit(model.NewTurnEndEvent())
	return nil
}
