package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"quest-server/internal/dice"
	"quest-server/internal/model"
	"quest-server/pkg/ai"
)

// scriptedRoller выдает заранее заданную последовательность значений d20.
type scriptedRoller struct {
	rolls []int
	i     int
}

func (s *scriptedRoller) RollD20(rt dice.RollType) dice.Roll {
	v := s.rolls[s.i%len(s.rolls)]
	s.i++
	return dice.Roll{Rolls: []int{v}, Used: v}
}

func newTestContext() *SessionContext {
	state := model.NewGameState("room-1")
	state.CharacterStates["c1"] = &model.CharacterState{
		CurrentHP:         20,
		MaxHP:             20,
		AbilityModifiers:  map[string]int{"dexterity": 3, "strength": 1},
		SaveProficiencies: []string{"dexterity"},
		ProficiencyBonus:  2,
	}
	state.CharacterStates["c2"] = &model.CharacterState{
		CurrentHP:        15,
		MaxHP:            15,
		AbilityModifiers: map[string]int{"dexterity": -1},
	}
	return &SessionContext{
		State: state,
		Members: []model.RoomMember{
			{UserID: "u1", Username: "alice", CharacterID: "c1", CharacterName: "Arina"},
			{UserID: "u2", Username: "bob", CharacterID: "c2", CharacterName: "Boris"},
		},
	}
}

func toolCall(name, args string) ai.ToolCall {
	return ai.ToolCall{ID: "call_1", Name: name, Arguments: args}
}

func TestMechanics_AbilityCheck_Success(t *testing.T) {
	agent := NewMechanicsAgent(&scriptedRoller{rolls: []int{12}}, zap.NewNop())
	sctx := newTestContext()

	payload, event, err := agent.Execute(toolCall(ToolAbilityCheck,
		`{"character_id":"c1","ability":"dexterity","dc":15,"reason":"уклониться от ловушки"}`), sctx)
	require.NoError(t, err)
	require.NotNil(t, event)

	var result checkResultPayload
	require.NoError(t, json.Unmarshal(payload, &result))
	assert.True(t, result.Success)
	assert.Equal(t, 15, result.Total, "12 + модификатор ловкости 3")
	assert.Equal(t, "Arina", result.Character)

	assert.Equal(t, model.EventDiceRoll, event.Type)
	require.NotNil(t, event.DiceRoll)
	assert.Equal(t, model.CheckAbility, event.DiceRoll.CheckType)
	assert.Equal(t, "c1", event.DiceRoll.CharacterID)
	assert.Equal(t, 15, event.DiceRoll.Total)
	assert.True(t, event.DiceRoll.Success)
	assert.Equal(t, "уклониться от ловушки", event.DiceRoll.Reason)
}

func TestMechanics_AbilityCheck_NoProficiencyBonus(t *testing.T) {
	agent := NewMechanicsAgent(&scriptedRoller{rolls: []int{10}}, zap.NewNop())
	sctx := newTestContext()

	payload, _, err := agent.Execute(toolCall(ToolAbilityCheck,
		`{"character_id":"c1","ability":"dexterity","dc":14,"reason":"x"}`), sctx)
	require.NoError(t, err)

	var result checkResultPayload
	require.NoError(t, json.Unmarshal(payload, &result))
	// Бонус мастерства не добавляется к обычной проверке характеристики.
	assert.Equal(t, 13, result.Total)
	assert.False(t, result.Success)
}

func TestMechanics_SavingThrow_AddsProficiencyBonus(t *testing.T) {
	agent := NewMechanicsAgent(&scriptedRoller{rolls: []int{10}}, zap.NewNop())
	sctx := newTestContext()

	payload, event, err := agent.Execute(toolCall(ToolSavingThrow,
		`{"character_id":"c1","ability":"dexterity","dc":15,"reason":"огненный шар"}`), sctx)
	require.NoError(t, err)

	var result checkResultPayload
	require.NoError(t, json.Unmarshal(payload, &result))
	assert.Equal(t, 15, result.Total, "10 + 3 ловкость + 2 мастерство")
	assert.True(t, result.Success)
	assert.Equal(t, model.CheckSavingThrow, event.DiceRoll.CheckType)
}

func TestMechanics_ResolveByCharacterName(t *testing.T) {
	agent := NewMechanicsAgent(&scriptedRoller{rolls: []int{10}}, zap.NewNop())
	sctx := newTestContext()

	_, event, err := agent.Execute(toolCall(ToolAbilityCheck,
		`{"character_id":"arina","ability":"strength","dc":10,"reason":"x"}`), sctx)
	require.NoError(t, err)
	assert.Equal(t, "c1", event.DiceRoll.CharacterID)
}

func TestMechanics_UnknownCharacter(t *testing.T) {
	agent := NewMechanicsAgent(&scriptedRoller{rolls: []int{10}}, zap.NewNop())
	sctx := newTestContext()

	payload, event, err := agent.Execute(toolCall(ToolAbilityCheck,
		`{"character_id":"nobody","ability":"strength","dc":10,"reason":"x"}`), sctx)
	assert.Error(t, err)
	assert.Nil(t, payload)
	assert.Nil(t, event)
}

func TestMechanics_MalformedArguments(t *testing.T) {
	agent := NewMechanicsAgent(&scriptedRoller{rolls: []int{10}}, zap.NewNop())
	sctx := newTestContext()

	payload, event, err := agent.Execute(toolCall(ToolAbilityCheck, `{не json`), sctx)
	require.NoError(t, err)
	assert.Nil(t, event)

	var errResult map[string]string
	require.NoError(t, json.Unmarshal(payload, &errResult))
	assert.Contains(t, errResult, "error")
}

func TestMechanics_UnknownTool(t *testing.T) {
	agent := NewMechanicsAgent(&scriptedRoller{rolls: []int{10}}, zap.NewNop())
	sctx := newTestContext()

	payload, event, err := agent.Execute(toolCall("summon_dragon", `{}`), sctx)
	require.NoError(t, err)
	assert.Nil(t, event)

	var errResult map[string]string
	require.NoError(t, json.Unmarshal(payload, &errResult))
	assert.Contains(t, errResult["error"], "summon_dragon")
}

func TestMechanics_GroupCheck_MajorityRequired(t *testing.T) {
	// c1: 20 (успех), c2: 1 (провал) -> 1 из 2, не больше половины.
	agent := NewMechanicsAgent(&scriptedRoller{rolls: []int{20, 1}}, zap.NewNop())
	sctx := newTestContext()

	payload, event, err := agent.Execute(toolCall(ToolGroupCheck,
		`{"ability":"dexterity","dc":10,"reason":"переправа"}`), sctx)
	require.NoError(t, err)

	var result groupResultPayload
	require.NoError(t, json.Unmarshal(payload, &result))
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 2, result.TotalCount)
	require.Len(t, result.Results, 2)

	assert.Equal(t, model.CheckGroup, event.DiceRoll.CheckType)
	assert.False(t, event.DiceRoll.Success)
	assert.Equal(t, 1, event.DiceRoll.SuccessCount)
	assert.Equal(t, 2, event.DiceRoll.TotalCount)
}

func TestMechanics_GroupCheck_MajoritySucceeds(t *testing.T) {
	// Оба успеха: 2 из 2 - строго больше половины.
	agent := NewMechanicsAgent(&scriptedRoller{rolls: []int{20, 18}}, zap.NewNop())
	sctx := newTestContext()

	payload, _, err := agent.Execute(toolCall(ToolGroupCheck,
		`{"ability":"dexterity","dc":10,"reason":"переправа"}`), sctx)
	require.NoError(t, err)

	var result groupResultPayload
	require.NoError(t, json.Unmarshal(payload, &result))
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.SuccessCount)
}

func TestMechanics_GroupCheck_UnresolvableMemberCountsAsFailure(t *testing.T) {
	agent := NewMechanicsAgent(&scriptedRoller{rolls: []int{20}}, zap.NewNop())
	sctx := newTestContext()

	payload, _, err := agent.Execute(toolCall(ToolGroupCheck,
		`{"ability":"dexterity","dc":10,"reason":"x","character_ids":["c1","ghost"]}`), sctx)
	require.NoError(t, err)

	var result groupResultPayload
	require.NoError(t, json.Unmarshal(payload, &result))
	assert.Equal(t, 2, result.TotalCount)
	assert.Equal(t, 1, result.SuccessCount)
	require.Len(t, result.Results, 2)
	assert.NotEmpty(t, result.Results[1].Error)
	assert.False(t, result.Results[1].Success)
}

func TestMechanics_StartCombat(t *testing.T) {
	agent := NewMechanicsAgent(&scriptedRoller{rolls: []int{10}}, zap.NewNop())
	sctx := newTestContext()

	_, event, err := agent.Execute(toolCall(ToolStartCombat,
		`{"reason":"засада гоблинов","enemies":["гоблин","гоблин"]}`), sctx)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, model.EventStateTransition, event.Type)
	assert.Equal(t, BehaviorCombat, event.Transition.To)
	assert.Equal(t, "засада гоблинов", event.Transition.Reason)
}

func TestMechanics_RestrictAction(t *testing.T) {
	agent := NewMechanicsAgent(&scriptedRoller{rolls: []int{10}}, zap.NewNop())
	sctx := newTestContext()

	_, event, err := agent.Execute(toolCall(ToolRestrictAction,
		`{"character_ids":["c1"],"reason":"только Арина у рычага"}`), sctx)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, model.EventActionRestriction, event.Type)
	assert.Equal(t, []string{"c1"}, event.Restriction.AllowedCharacterIDs)
}

func TestMechanics_RestrictAction_EmptyListLiftsRestrictions(t *testing.T) {
	agent := NewMechanicsAgent(&scriptedRoller{rolls: []int{10}}, zap.NewNop())
	sctx := newTestContext()

	_, event, err := agent.Execute(toolCall(ToolRestrictAction,
		`{"character_ids":[],"reason":"опасность миновала"}`), sctx)
	require.NoError(t, err)
	require.NotNil(t, event.Restriction)
	assert.Empty(t, event.Restriction.AllowedCharacterIDs)
}
