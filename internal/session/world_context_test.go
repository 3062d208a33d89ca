package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"quest-server/internal/mocks"
	"quest-server/internal/model"
	"quest-server/pkg/ai"
)

func newTestUpdater(t *testing.T) (*WorldContextUpdater, *mocks.MockChatClient) {
	t.Helper()
	client := mocks.NewMockChatClient(t)
	return NewWorldContextUpdater(client, zap.NewNop()), client
}

func TestWorldContext_AppliesPatch(t *testing.T) {
	updater, client := newTestUpdater(t)
	sctx := newTestContext()
	sctx.State.CharacterConditions["c1"] = []model.ActiveCondition{
		{ID: "cond-1", Name: "отравлен", Expires: "end_of_scene"},
	}

	client.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return(&ai.ChatResponse{Content: "```json\n" + `{
            "world_memory": {
                "recent_events": ["Арина перепрыгнула провал"],
                "world_facts": ["Мост через провал разрушен"],
                "flags": {"time": "ночь"}
            },
            "character_conditions": [{
                "character_id": "c1",
                "add": [{"name": "вывихнута лодыжка", "expires": "end_of_day"}],
                "remove": ["отравлен"]
            }]
        }` + "\n```"}, nil).Once()

	updater.Update(context.Background(), "Арина перепрыгнула провал.", nil, sctx.State, sctx.Members)

	assert.Equal(t, []string{"Арина перепрыгнула провал"}, sctx.State.WorldContext.RecentEvents)
	assert.Equal(t, []string{"Мост через провал разрушен"}, sctx.State.WorldContext.WorldFacts)
	assert.Equal(t, "ночь", sctx.State.WorldContext.Flags["time"])

	conditions := sctx.State.CharacterConditions["c1"]
	require.Len(t, conditions, 1)
	assert.Equal(t, "вывихнута лодыжка", conditions[0].Name)
	assert.NotEmpty(t, conditions[0].ID, "новому состоянию присваивается id")
	client.AssertExpectations(t)
}

func TestWorldContext_RecentEventsEvictedFIFO(t *testing.T) {
	updater, client := newTestUpdater(t)
	sctx := newTestContext()
	for i := 0; i < model.MaxRecentEvents; i++ {
		sctx.State.WorldContext.RecentEvents = append(
			sctx.State.WorldContext.RecentEvents, fmt.Sprintf("событие %d", i))
	}

	client.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return(&ai.ChatResponse{Content: `{"world_memory":{"recent_events":["новое событие"]}}`}, nil).Once()

	updater.Update(context.Background(), "нарратив", nil, sctx.State, sctx.Members)

	events := sctx.State.WorldContext.RecentEvents
	require.Len(t, events, model.MaxRecentEvents)
	assert.Equal(t, "событие 1", events[0], "старейшее событие вытеснено")
	assert.Equal(t, "новое событие", events[len(events)-1])
}

func TestWorldContext_MalformedJSONIsNoOp(t *testing.T) {
	updater, client := newTestUpdater(t)
	sctx := newTestContext()
	sctx.State.WorldContext.WorldFacts = []string{"старый факт"}

	client.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return(&ai.ChatResponse{Content: "Извините, не могу структурировать ответ."}, nil).Once()

	before := sctx.State.LastUpdated
	updater.Update(context.Background(), "нарратив", nil, sctx.State, sctx.Members)

	assert.Equal(t, []string{"старый факт"}, sctx.State.WorldContext.WorldFacts)
	assert.Equal(t, before, sctx.State.LastUpdated, "состояние не тронуто")
}

func TestWorldContext_BackendErrorIsNoOp(t *testing.T) {
	updater, client := newTestUpdater(t)
	sctx := newTestContext()

	client.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("timeout")).Once()

	updater.Update(context.Background(), "нарратив", nil, sctx.State, sctx.Members)

	assert.Empty(t, sctx.State.WorldContext.RecentEvents)
}

func TestWorldContext_EmptyNarrativeSkipsExtraction(t *testing.T) {
	updater, client := newTestUpdater(t)
	sctx := newTestContext()

	updater.Update(context.Background(), "   ", nil, sctx.State, sctx.Members)

	client.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything, mock.Anything)
}

func TestWorldContext_RemoveConditionByID(t *testing.T) {
	updater, client := newTestUpdater(t)
	sctx := newTestContext()
	sctx.State.CharacterConditions["c2"] = []model.ActiveCondition{
		{ID: "cond-7", Name: "испуган"},
		{ID: "cond-8", Name: "вдохновлен"},
	}

	client.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return(&ai.ChatResponse{Content: `{"character_conditions":[{"character_id":"c2","remove":["cond-7"]}]}`}, nil).Once()

	updater.Update(context.Background(), "нарратив", nil, sctx.State, sctx.Members)

	conditions := sctx.State.CharacterConditions["c2"]
	require.Len(t, conditions, 1)
	assert.Equal(t, "вдохновлен", conditions[0].Name)
}
