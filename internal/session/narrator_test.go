package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"quest-server/internal/mocks"
	"quest-server/internal/model"
	"quest-server/pkg/ai"
)

// stubBuilder отдает фиксированный префикс истории, чтобы тесты не зависели
// от сборки промпта.
type stubBuilder struct{}

func (stubBuilder) Build(state *model.GameState, members []model.RoomMember) []ai.Message {
	return []ai.Message{{Role: ai.RoleSystem, Content: "тестовый промпт"}}
}

func newTestNarrator(t *testing.T, client ai.ChatClient, roller *scriptedRoller, sctx *SessionContext) *NarratorAgent {
	t.Helper()
	mechanics := NewMechanicsAgent(roller, zap.NewNop())
	updater := NewWorldContextUpdater(client, zap.NewNop())
	return NewNarratorAgent(client, mechanics, updater, stubBuilder{}, sctx, zap.NewNop())
}

func collectEvents() (*[]model.SessionEvent, EmitFunc) {
	events := &[]model.SessionEvent{}
	return events, func(e model.SessionEvent) { *events = append(*events, e) }
}

func eventTypes(events []model.SessionEvent) []model.SessionEventType {
	types := make([]model.SessionEventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func TestNarrator_PlainNarrativeRound(t *testing.T) {
	client := mocks.NewMockChatClient(t)
	sctx := newTestContext()
	narrator := newTestNarrator(t, client, &scriptedRoller{rolls: []int{10}}, sctx)

	client.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return(&ai.ChatResponse{Content: "Вы входите в сумрачный зал."}, nil).Once()
	// Вызов экстракции памяти мира после раунда.
	client.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return(&ai.ChatResponse{Content: `{"world_memory":{"recent_events":["группа вошла в зал"]}}`}, nil).Once()

	events, emit := collectEvents()
	err := narrator.ProcessActions(context.Background(), []model.PlayerAction{action("u1", "c1")}, emit)
	require.NoError(t, err)

	assert.Equal(t, []model.SessionEventType{model.EventNarrative, model.EventTurnEnd}, eventTypes(*events))
	assert.Equal(t, "Вы входите в сумрачный зал.", (*events)[0].Text)
	assert.Equal(t, []string{"группа вошла в зал"}, sctx.State.WorldContext.RecentEvents)
	client.AssertExpectations(t)
}

func TestNarrator_ChainedChecks(t *testing.T) {
	client := mocks.NewMockChatClient(t)
	sctx := newTestContext()
	// Первый бросок проваливается (5), второй успешен (18).
	narrator := newTestNarrator(t, client, &scriptedRoller{rolls: []int{5, 18}}, sctx)

	// Раунд 1: запрос проверки ловкости.
	client.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return(&ai.ChatResponse{ToolCalls: []ai.ToolCall{{
			ID: "call_1", Name: ToolAbilityCheck,
			Arguments: `{"character_id":"c1","ability":"dexterity","dc":15,"reason":"перепрыгнуть провал"}`,
		}}}, nil).Once()
	// Раунд 2: после провала - спасбросок.
	client.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return(&ai.ChatResponse{ToolCalls: []ai.ToolCall{{
			ID: "call_2", Name: ToolSavingThrow,
			Arguments: `{"character_id":"c1","ability":"dexterity","dc":12,"reason":"уцепиться за край"}`,
		}}}, nil).Once()
	// Раунд 3: финальный нарратив.
	var finalHistory []ai.Message
	client.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			finalHistory = args.Get(1).([]ai.Message)
		}).
		Return(&ai.ChatResponse{Content: "Арина срывается, но в последний миг цепляется за выступ."}, nil).Once()
	// Экстракция памяти мира.
	client.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return(&ai.ChatResponse{Content: `{}`}, nil).Once()

	events, emit := collectEvents()
	err := narrator.ProcessActions(context.Background(), []model.PlayerAction{action("u1", "c1")}, emit)
	require.NoError(t, err)

	// Каждый бросок виден наблюдателю до следующего обращения к бэкенду,
	// нарратив - перед turn_end.
	assert.Equal(t, []model.SessionEventType{
		model.EventDiceRoll,
		model.EventDiceRoll,
		model.EventNarrative,
		model.EventTurnEnd,
	}, eventTypes(*events))
	assert.False(t, (*events)[0].DiceRoll.Success)
	assert.True(t, (*events)[1].DiceRoll.Success)

	// История финального вызова содержит оба tool call'а и их результаты.
	require.Len(t, finalHistory, 6)
	assert.Equal(t, ai.RoleAssistant, finalHistory[2].Role)
	assert.Equal(t, ai.RoleTool, finalHistory[3].Role)
	assert.Equal(t, "call_1", finalHistory[3].ToolCallID)
	assert.Equal(t, ai.RoleTool, finalHistory[5].Role)
	assert.Equal(t, "call_2", finalHistory[5].ToolCallID)
	client.AssertExpectations(t)
}

func TestNarrator_ToolErrorFedBackAsPayload(t *testing.T) {
	client := mocks.NewMockChatClient(t)
	sctx := newTestContext()
	narrator := newTestNarrator(t, client, &scriptedRoller{rolls: []int{10}}, sctx)

	client.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return(&ai.ChatResponse{ToolCalls: []ai.ToolCall{{
			ID: "call_1", Name: ToolAbilityCheck,
			Arguments: `{"character_id":"призрак","ability":"strength","dc":10,"reason":"x"}`,
		}}}, nil).Once()
	var secondHistory []ai.Message
	client.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			secondHistory = args.Get(1).([]ai.Message)
		}).
		Return(&ai.ChatResponse{Content: "Никого с таким именем здесь нет."}, nil).Once()
	client.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return(&ai.ChatResponse{Content: `{}`}, nil).Once()

	events, emit := collectEvents()
	err := narrator.ProcessActions(context.Background(), []model.PlayerAction{action("u1", "c1")}, emit)
	require.NoError(t, err)

	// Ошибка разрешения персонажа не излучает dice_roll.
	assert.Equal(t, []model.SessionEventType{model.EventNarrative, model.EventTurnEnd}, eventTypes(*events))

	require.Len(t, secondHistory, 4)
	assert.Equal(t, ai.RoleTool, secondHistory[3].Role)
	assert.Contains(t, secondHistory[3].Content, "error")
	client.AssertExpectations(t)
}

func TestNarrator_BackendErrorAbortsRound(t *testing.T) {
	client := mocks.NewMockChatClient(t)
	sctx := newTestContext()
	narrator := newTestNarrator(t, client, &scriptedRoller{rolls: []int{10}}, sctx)

	client.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("backend unavailable")).Once()

	events, emit := collectEvents()
	err := narrator.ProcessActions(context.Background(), []model.PlayerAction{action("u1", "c1")}, emit)
	require.Error(t, err)

	// Ни нарратива, ни turn_end: раунд не состоялся.
	assert.Empty(t, *events)
	client.AssertExpectations(t)
}

func TestNarrator_ToolRoundCap(t *testing.T) {
	client := mocks.NewMockChatClient(t)
	sctx := newTestContext()
	narrator := newTestNarrator(t, client, &scriptedRoller{rolls: []int{10}}, sctx)

	// Бэкенд бесконечно запрашивает проверки: цикл должен остановиться сам.
	for i := 0; i < maxToolRounds; i++ {
		client.On("Chat", mock.Anything, mock.Anything, mock.Anything).
			Return(&ai.ChatResponse{ToolCalls: []ai.ToolCall{{
				ID: "call_x", Name: ToolAbilityCheck,
				Arguments: `{"character_id":"c1","ability":"dexterity","dc":10,"reason":"x"}`,
			}}}, nil).Once()
	}

	events, emit := collectEvents()
	err := narrator.ProcessActions(context.Background(), []model.PlayerAction{action("u1", "c1")}, emit)
	require.NoError(t, err)

	types := eventTypes(*events)
	require.Len(t, types, maxToolRounds+1)
	for i := 0; i < maxToolRounds; i++ {
		assert.Equal(t, model.EventDiceRoll, types[i])
	}
	assert.Equal(t, model.EventTurnEnd, types[maxToolRounds])
	client.AssertExpectations(t)
}
